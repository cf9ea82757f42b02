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
// Package esptool uploads to ESP-class boards by delegating to the
// Espressif esptool, which brings its own ROM-loader protocol and reset
// dance. We only stage the image, release the port and run the tool.
package esptool

import (
	"fmt"
	"io/ioutil"
	"os/exec"
	"path/filepath"

	"github.com/golang/glog"
	"github.com/juju/errors"
	shellwords "github.com/mattn/go-shellwords"

	"github.com/sketchburn/sketchburn/cli/flash/boards"
	"github.com/sketchburn/sketchburn/cli/flash/common"
	"github.com/sketchburn/sketchburn/cli/ourutil"
)

type Opts struct {
	// Port is the serial port name to hand to esptool.
	Port string
	// Path of the esptool binary; looked up in PATH if relative.
	Path string
	// ExtraArgs is appended to the write_flash invocation, split
	// shell-style.
	ExtraArgs string
}

type Strategy struct {
	table *boards.Table
	opts  Opts
}

func New(table *boards.Table, opts Opts) *Strategy {
	if opts.Path == "" {
		opts.Path = "esptool.py"
	}
	return &Strategy{table: table, opts: opts}
}

func (s *Strategy) Name() string { return "esptool" }

// Prepare is a no-op: esptool performs its own DTR/RTS boot-mode dance.
func (s *Strategy) Prepare(t common.Transport, fqbn string) error {
	glog.V(1).Infof("%s: bootloader entry delegated to esptool", fqbn)
	return nil
}

func (s *Strategy) Flash(t common.Transport, fw []byte, progress common.ProgressFunc, fqbn string) (common.Outcome, error) {
	progress = common.MonotonicProgress(progress)
	cfg := s.table.Lookup(fqbn)
	if max := cfg.Memory.FlashSize; max > 0 && len(fw) > max {
		return common.OutcomeFlashed, errors.Errorf(
			"image of %d bytes does not fit in %d bytes of flash", len(fw), max)
	}

	path, err := exec.LookPath(s.opts.Path)
	if err != nil {
		return common.OutcomeFlashed, errors.Annotatef(err, "esptool not found")
	}

	progress(0, "staging")
	dir, err := ioutil.TempDir("", "sketchburn-esp-")
	if err != nil {
		return common.OutcomeFlashed, errors.Trace(err)
	}
	fname := filepath.Join(dir, "sketch.bin")
	if err := ioutil.WriteFile(fname, fw, 0644); err != nil {
		return common.OutcomeFlashed, errors.Annotatef(err, "failed to stage image")
	}

	// esptool opens the port itself; ours has to go. The session's own
	// deferred close is idempotent, so closing here is safe.
	if err := t.Close(); err != nil {
		return common.OutcomeFlashed, errors.Annotatef(err, "failed to release port for esptool")
	}

	args := []string{path}
	if s.opts.Port != "" {
		args = append(args, "--port", s.opts.Port)
	}
	args = append(args,
		"--baud", fmt.Sprintf("%d", cfg.Serial.UploadBaud),
		"write_flash", fmt.Sprintf("0x%x", cfg.Memory.SketchOffset), fname)
	if s.opts.ExtraArgs != "" {
		extra, err := shellwords.Parse(s.opts.ExtraArgs)
		if err != nil {
			return common.OutcomeFlashed, errors.Annotatef(err, "invalid esptool extra args")
		}
		args = append(args, extra...)
	}

	progress(10, "running esptool")
	if err := ourutil.RunCmd(ourutil.CmdOutOnError, args...); err != nil {
		return common.OutcomeFlashed, errors.Annotatef(err, "esptool failed")
	}
	progress(100, "done")
	return common.OutcomeFlashed, nil
}
