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
// Package samba uploads to boards whose USB-CDC bootloader is entered via
// the 1200bps touch: open the port briefly at 1200 baud, close it, and the
// device re-enumerates into programming mode (SAM-BA / BOSSA class,
// including the UNO R4 family).
package samba

import (
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/sketchburn/sketchburn/cli/flash/boards"
	"github.com/sketchburn/sketchburn/cli/flash/common"
	"github.com/sketchburn/sketchburn/cli/flash/stk500"
)

const (
	// How long the port stays open at the touch baud rate.
	touchHoldTime = 200 * time.Millisecond
	// How long the device gets to drop off the bus and come back.
	reenumerationSettleTime = 500 * time.Millisecond
)

type Strategy struct {
	table *boards.Table
}

func New(table *boards.Table) *Strategy {
	return &Strategy{table: table}
}

func (s *Strategy) Name() string { return "samba" }

// Prepare performs the touch sequence. Transport errors are warnings: if the
// device already re-enumerated into its bootloader the port open can fail,
// and the upload should proceed regardless.
func (s *Strategy) Prepare(t common.Transport, fqbn string) error {
	cfg := s.table.Lookup(fqbn)
	if !cfg.Uses1200bpsTouch() {
		glog.V(1).Infof("%s: no touch baud configured, skipping touch", fqbn)
		return nil
	}
	if err := t.Reopen(cfg.Serial.TouchBaud); err != nil {
		glog.Warningf("%s: 1200bps touch open failed: %s", fqbn, err)
		return nil
	}
	time.Sleep(touchHoldTime)
	if err := t.Close(); err != nil {
		glog.Warningf("%s: 1200bps touch close failed: %s", fqbn, err)
	}
	time.Sleep(reenumerationSettleTime)
	return nil
}

// Flash reopens the port at the family's upload baud rate and runs the page
// programming protocol. Unlike Prepare, transport failures here are fatal.
func (s *Strategy) Flash(t common.Transport, fw []byte, progress common.ProgressFunc, fqbn string) (common.Outcome, error) {
	cfg := s.table.Lookup(fqbn)
	if max := cfg.Memory.FlashSize; max > 0 && len(fw) > max {
		return common.OutcomeFlashed, errors.Errorf(
			"sketch of %d bytes does not fit in %d bytes of flash", len(fw), max)
	}
	if err := t.Reopen(cfg.Serial.UploadBaud); err != nil {
		return common.OutcomeFlashed, errors.Annotatef(err, "failed to reopen port for upload")
	}
	cl := stk500.NewClient(t, cfg)
	if err := cl.Flash(fw, progress); err != nil {
		return common.OutcomeFlashed, errors.Trace(err)
	}
	return common.OutcomeFlashed, nil
}
