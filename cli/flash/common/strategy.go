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
package common

// Outcome tells the caller what kind of "success" a flash was. Some families
// have no in-band programming protocol here; pretending their hand-off or
// simulation equals a real write would be lying to the user.
type Outcome int

const (
	// OutcomeFlashed means bytes were actually written to the device.
	OutcomeFlashed Outcome = iota
	// OutcomeManualHandoff means the image was staged for the user to copy
	// onto the mass-storage volume the device exposes.
	OutcomeManualHandoff
	// OutcomeSimulated means the transfer was only simulated; nothing was
	// written to the device.
	OutcomeSimulated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFlashed:
		return "flashed"
	case OutcomeManualHandoff:
		return "manual-handoff"
	case OutcomeSimulated:
		return "simulated"
	}
	return "unknown"
}

// Strategy is the per-device-family upload implementation. Prepare forces
// the target into its bootloader, Flash transfers the firmware. Prepare
// failures caused by transport/signal calls are warnings, not fatal: the
// device may already be in bootloader mode and retrying Prepare is harmless.
type Strategy interface {
	// Name identifies the strategy in logs and errors.
	Name() string
	Prepare(t Transport, fqbn string) error
	Flash(t Transport, fw []byte, progress ProgressFunc, fqbn string) (Outcome, error)
}
