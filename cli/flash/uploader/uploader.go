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
// Package uploader dispatches an upload to the right device-family strategy
// and runs it: prepare (enter bootloader), then flash.
package uploader

import (
	"strings"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/sketchburn/sketchburn/cli/flash/avr"
	"github.com/sketchburn/sketchburn/cli/flash/boards"
	"github.com/sketchburn/sketchburn/cli/flash/common"
	"github.com/sketchburn/sketchburn/cli/flash/esptool"
	"github.com/sketchburn/sketchburn/cli/flash/samba"
	"github.com/sketchburn/sketchburn/cli/flash/teensy"
	"github.com/sketchburn/sketchburn/cli/flash/uf2"
	"github.com/sketchburn/sketchburn/cli/ourutil"
)

// Entry binds an FQBN prefix to a strategy. Order matters: the first
// matching prefix wins.
type Entry struct {
	Prefix   string
	Strategy common.Strategy
}

// Registry is an ordered prefix-to-strategy table plus a fallback. It is
// built once and passed around as a value, so tests can substitute
// strategies without touching process-wide state.
type Registry struct {
	entries  []Entry
	fallback common.Strategy
}

func New(entries []Entry, fallback common.Strategy) *Registry {
	return &Registry{entries: entries, fallback: fallback}
}

// SelectStrategy resolves fqbn to a strategy. An empty or unknown
// identifier gets the fallback (AVR) strategy.
func (r *Registry) SelectStrategy(fqbn string) common.Strategy {
	for _, e := range r.entries {
		if strings.HasPrefix(fqbn, e.Prefix) {
			return e.Strategy
		}
	}
	return r.fallback
}

// Upload runs one upload session: select the strategy, prepare, flash.
// The registry owns the session, so the transport is closed here on every
// path; Close is idempotent because strategies may legitimately release the
// port early (touch sequences, external tools).
func (r *Registry) Upload(t common.Transport, fw []byte, progress common.ProgressFunc, fqbn string) (common.Outcome, error) {
	s := r.SelectStrategy(fqbn)
	progress = common.MonotonicProgress(progress)
	ourutil.Reportf("Uploading to %q using the %s strategy (%d bytes)...", fqbn, s.Name(), len(fw))
	defer func() {
		if err := t.Close(); err != nil {
			glog.Warningf("transport close: %s", err)
		}
	}()

	progress(0, "preparing")
	if err := s.Prepare(t, fqbn); err != nil {
		return common.OutcomeFlashed, errors.Annotatef(err, "%s %q: prepare phase", s.Name(), fqbn)
	}
	outcome, err := s.Flash(t, fw, progress, fqbn)
	if err != nil {
		return outcome, errors.Annotatef(err, "%s %q: flash phase", s.Name(), fqbn)
	}
	progress(100, outcome.String())
	return outcome, nil
}

// Options carries the knobs of the non-serial strategies.
type Options struct {
	Port             string
	UF2Mount         string
	UF2StagingDir    string
	ESPToolPath      string
	ESPToolExtraArgs string
}

// DefaultRegistry wires the built-in device families in dispatch order.
func DefaultRegistry(table *boards.Table, opts Options) *Registry {
	avrStrategy := avr.New(table)
	sambaStrategy := samba.New(table)
	uf2Strategy := uf2.New(table, uf2.Opts{Mount: opts.UF2Mount, StagingDir: opts.UF2StagingDir})
	espStrategy := esptool.New(table, esptool.Opts{
		Port: opts.Port, Path: opts.ESPToolPath, ExtraArgs: opts.ESPToolExtraArgs,
	})
	return New([]Entry{
		{"arduino:avr", avrStrategy},
		{"arduino:renesas_uno", sambaStrategy},
		{"arduino:sam", sambaStrategy},
		{"arduino:mbed_rp2040", uf2Strategy},
		{"rp2040", uf2Strategy},
		{"teensy", teensy.New(table)},
		{"esp32", espStrategy},
		{"esp8266", espStrategy},
	}, avrStrategy)
}
