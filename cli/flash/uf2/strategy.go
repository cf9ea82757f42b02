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
package uf2

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/sketchburn/sketchburn/cli/flash/boards"
	"github.com/sketchburn/sketchburn/cli/flash/common"
	"github.com/sketchburn/sketchburn/cli/ourutil"
)

const (
	touchHoldTime           = 200 * time.Millisecond
	reenumerationSettleTime = 500 * time.Millisecond

	// How long to wait for the OS/device to consume the file dropped onto
	// the mass-storage volume.
	copyCompleteTimeout = 30 * time.Second
)

type Opts struct {
	// Mount is the mass-storage volume (e.g. the RPI-RP2 drive). If empty,
	// the image is staged on disk and handed off to the user to copy.
	Mount string
	// StagingDir is where the .uf2 is written. Defaults to a temp dir.
	StagingDir string
}

type Strategy struct {
	table *boards.Table
	opts  Opts
}

func New(table *boards.Table, opts Opts) *Strategy {
	return &Strategy{table: table, opts: opts}
}

func (s *Strategy) Name() string { return "uf2" }

// Prepare performs the 1200bps touch so the board re-enumerates as a
// mass-storage volume. Warnings only: the volume may already be mounted.
func (s *Strategy) Prepare(t common.Transport, fqbn string) error {
	cfg := s.table.Lookup(fqbn)
	if !cfg.Uses1200bpsTouch() {
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

// Flash does not transfer a single byte over the wire: it packages the image
// as a UF2 file and either drops it onto the configured mount or stages it
// for the user. The outcome makes the difference visible to the caller.
func (s *Strategy) Flash(t common.Transport, fw []byte, progress common.ProgressFunc, fqbn string) (common.Outcome, error) {
	progress = common.MonotonicProgress(progress)
	cfg := s.table.Lookup(fqbn)
	if max := cfg.Memory.FlashSize; max > 0 && len(fw) > max {
		return common.OutcomeManualHandoff, errors.Errorf(
			"sketch of %d bytes does not fit in %d bytes of flash", len(fw), max)
	}

	progress(0, "packaging")
	img := Encode(fw, cfg.Memory.FlashBase, FamilyRP2040)

	dir := s.opts.StagingDir
	if dir == "" {
		var err error
		dir, err = ioutil.TempDir("", "sketchburn-uf2-")
		if err != nil {
			return common.OutcomeManualHandoff, errors.Trace(err)
		}
	}
	fname := filepath.Join(dir, "sketch.uf2")
	if err := ioutil.WriteFile(fname, img, 0644); err != nil {
		return common.OutcomeManualHandoff, errors.Annotatef(err, "failed to stage UF2 image")
	}
	progress(50, "staged")

	if s.opts.Mount == "" {
		ourutil.Reportf("UF2 image staged at %s", fname)
		ourutil.Reportf("Copy it onto the device's mass-storage volume to complete the upload.")
		progress(100, "handed off")
		return common.OutcomeManualHandoff, nil
	}

	dst := filepath.Join(s.opts.Mount, "sketch.uf2")
	ourutil.Reportf("Copying UF2 image to %s...", s.opts.Mount)
	if err := ioutil.WriteFile(dst, img, 0644); err != nil {
		return common.OutcomeManualHandoff, errors.Annotatef(err, "failed to copy to %s", s.opts.Mount)
	}

	// The bootloader consumes the file and reboots, which makes the file
	// (or the whole volume) disappear. Treat that as completion.
	start := time.Now()
	for {
		if _, err := os.Stat(dst); err != nil {
			if !os.IsNotExist(err) {
				// Spurious errors here usually mean the volume already went
				// away mid-Stat, which is what we are waiting for.
				glog.Infof("stat error during copy wait (most likely benign): %s", err)
			}
			break
		}
		if time.Since(start) > copyCompleteTimeout {
			return common.OutcomeFlashed, errors.Timeoutf("device did not consume the UF2 image")
		}
		time.Sleep(time.Second)
	}
	progress(100, "done")
	return common.OutcomeFlashed, nil
}
