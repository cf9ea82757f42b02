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
package teensy

import (
	"testing"

	"github.com/sketchburn/sketchburn/cli/flash/boards"
	"github.com/sketchburn/sketchburn/cli/flash/common"
	"github.com/sketchburn/sketchburn/cli/flash/common/commontest"
)

// Prepare needs real HID/USB enumeration, so only Flash is covered here.

func TestFlashIsSimulated(t *testing.T) {
	s := New(boards.DefaultTable())
	ft := &commontest.FakeTransport{}
	var percents []int
	outcome, err := s.Flash(ft, make([]byte, 4096), func(p int, status string) {
		percents = append(percents, p)
	}, "teensy:avr:teensy40")
	if err != nil {
		t.Fatalf("Flash: %s", err)
	}
	if outcome != common.OutcomeSimulated {
		t.Fatalf("outcome %s, want simulated", outcome)
	}
	// Nothing must be written to the device.
	if len(ft.Writes) != 0 {
		t.Errorf("simulated flash wrote %d frames to the transport", len(ft.Writes))
	}
	if len(percents) == 0 || percents[0] != 0 || percents[len(percents)-1] != 100 {
		t.Errorf("progress %v, want 0..100", percents)
	}
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Fatalf("progress went backwards: %v", percents)
		}
	}
}

func TestFlashRejectsOversizedImage(t *testing.T) {
	s := New(boards.DefaultTable())
	_, err := s.Flash(&commontest.FakeTransport{}, make([]byte, 16*1024*1024), nil, "teensy:avr:teensy40")
	if err == nil {
		t.Fatalf("oversized image accepted")
	}
}
