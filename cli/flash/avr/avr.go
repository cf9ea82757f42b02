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
// Package avr uploads to AVR-class boards: DTR/RTS reset pulse into the
// serial bootloader, then STK500v1 page programming.
package avr

import (
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/sketchburn/sketchburn/cli/flash/boards"
	"github.com/sketchburn/sketchburn/cli/flash/common"
	"github.com/sketchburn/sketchburn/cli/flash/stk500"
)

const (
	resetPulseWidth = 250 * time.Millisecond
	resetSettleTime = 50 * time.Millisecond
)

type Strategy struct {
	table *boards.Table
}

func New(table *boards.Table) *Strategy {
	return &Strategy{table: table}
}

func (s *Strategy) Name() string { return "avr" }

// Prepare pulses the reset line: assert low, hold, release, settle. Signal
// errors are warnings only, the board may already be sitting in its
// bootloader and a retried Prepare is harmless.
func (s *Strategy) Prepare(t common.Transport, fqbn string) error {
	for _, sig := range []common.Signal{common.SignalDTR, common.SignalRTS} {
		if err := t.SetControlSignal(sig, false); err != nil {
			glog.Warningf("%s: failed to assert %s: %s", fqbn, sig, err)
		}
	}
	time.Sleep(resetPulseWidth)
	for _, sig := range []common.Signal{common.SignalDTR, common.SignalRTS} {
		if err := t.SetControlSignal(sig, true); err != nil {
			glog.Warningf("%s: failed to release %s: %s", fqbn, sig, err)
		}
	}
	time.Sleep(resetSettleTime)
	return nil
}

func (s *Strategy) Flash(t common.Transport, fw []byte, progress common.ProgressFunc, fqbn string) (common.Outcome, error) {
	cfg := s.table.Lookup(fqbn)
	if max := cfg.Memory.FlashSize; max > 0 && len(fw) > max {
		return common.OutcomeFlashed, errors.Errorf(
			"sketch of %d bytes does not fit in %d bytes of flash", len(fw), max)
	}
	cl := stk500.NewClient(t, cfg)
	if err := cl.Flash(fw, progress); err != nil {
		return common.OutcomeFlashed, errors.Trace(err)
	}
	return common.OutcomeFlashed, nil
}
