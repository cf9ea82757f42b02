//
// Copyright (c) 2020-2024 Sketchburn Contributors
// All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Package teensy handles Teensy boards with the HalfKay HID bootloader.
//
// The actual HalfKay write protocol is NOT implemented: flashing reports
// simulated progress and returns OutcomeSimulated so no caller can mistake
// it for a real write. Prepare only verifies that a device is present at
// the bootloader VID:PID.
package teensy

import (
	"time"

	"github.com/cesanta/hid"
	"github.com/golang/glog"
	"github.com/google/gousb"
	"github.com/juju/errors"

	"github.com/sketchburn/sketchburn/cli/flash/boards"
	"github.com/sketchburn/sketchburn/cli/flash/common"
	"github.com/sketchburn/sketchburn/cli/ourutil"
)

// HalfKay enumerates at this fixed VID:PID.
const (
	BootloaderVID = 0x16C0
	BootloaderPID = 0x0478
)

// simulatedPageDelay paces the fake transfer so progress looks like a real
// upload in UIs instead of jumping straight to 100.
const simulatedPageDelay = 10 * time.Millisecond

type Strategy struct {
	table *boards.Table
}

func New(table *boards.Table) *Strategy {
	return &Strategy{table: table}
}

func (s *Strategy) Name() string { return "teensy" }

// findBootloaderHID looks for the HalfKay device on the HID bus.
func findBootloaderHID() (bool, error) {
	devs, err := hid.Devices()
	if err != nil {
		return false, errors.Annotatef(err, "failed to enumerate HID devices")
	}
	for i, di := range devs {
		glog.V(1).Infof("%d: %04x:%04x %s", i, di.VendorID, di.ProductID, di.Path)
		if di.VendorID == BootloaderVID && di.ProductID == BootloaderPID {
			return true, nil
		}
	}
	return false, nil
}

// findBootloaderUSB is the fallback presence check for hosts where the HID
// backend is unavailable (e.g. missing hidraw permissions).
func findBootloaderUSB() bool {
	uctx := gousb.NewContext()
	defer uctx.Close()
	devs, err := uctx.OpenDevices(func(dd *gousb.DeviceDesc) bool {
		glog.V(1).Infof("usb dev %+v", dd)
		return dd.Vendor == gousb.ID(BootloaderVID) && dd.Product == gousb.ID(BootloaderPID)
	})
	for _, d := range devs {
		d.Close()
	}
	if err != nil && len(devs) == 0 {
		glog.V(1).Infof("usb enumeration failed: %s", err)
		return false
	}
	return len(devs) > 0
}

// Prepare checks that the bootloader is present. Absence is a warning, not
// an error: pressing the program button after the upload starts is the
// normal Teensy workflow.
func (s *Strategy) Prepare(t common.Transport, fqbn string) error {
	found, err := findBootloaderHID()
	if err != nil {
		glog.Warningf("%s: HID enumeration failed (%s), trying libusb", fqbn, err)
		found = findBootloaderUSB()
	}
	if found {
		ourutil.Reportf("Found HalfKay bootloader at %04x:%04x", BootloaderVID, BootloaderPID)
	} else {
		glog.Warningf("%s: no device at %04x:%04x; press the program button", fqbn, BootloaderVID, BootloaderPID)
	}
	return nil
}

// Flash is a simulated transfer: progress is reported page by page but no
// bytes are written to the device.
func (s *Strategy) Flash(t common.Transport, fw []byte, progress common.ProgressFunc, fqbn string) (common.Outcome, error) {
	progress = common.MonotonicProgress(progress)
	cfg := s.table.Lookup(fqbn)
	if max := cfg.Memory.FlashSize; max > 0 && len(fw) > max {
		return common.OutcomeSimulated, errors.Errorf(
			"sketch of %d bytes does not fit in %d bytes of flash", len(fw), max)
	}
	pageSize := cfg.ChunkOrPageSize()

	ourutil.Reportf("WARNING: Teensy flashing is SIMULATED, no bytes are written to the device.")
	ourutil.Reportf("Use the Teensy Loader application to program the staged image.")

	progress(0, "simulating")
	for off := 0; off < len(fw); off += pageSize {
		end := off + pageSize
		if end > len(fw) {
			end = len(fw)
		}
		time.Sleep(simulatedPageDelay)
		progress(end*100/len(fw), "simulating")
	}
	progress(100, "simulated")
	return common.OutcomeSimulated, nil
}
