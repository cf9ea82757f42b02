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
package boards

import (
	"testing"
)

func TestLookup(t *testing.T) {
	tbl := DefaultTable()
	cases := []struct {
		fqbn     string
		protocol ProtocolKind
		name     string
	}{
		{"arduino:avr:uno", ProtocolSTK500, "arduino:avr"},
		{"arduino:avr:uno:cpu=atmega328p", ProtocolSTK500, "arduino:avr"},
		// Exact entry wins over the arduino:avr prefix.
		{"arduino:avr:mega", ProtocolSTK500, "arduino:avr:mega"},
		{"arduino:renesas_uno:unor4wifi", ProtocolBOSSA, "arduino:renesas_uno"},
		{"arduino:samd:mkr1000", ProtocolBOSSA, "arduino:samd"},
		{"rp2040:rp2040:rpipico", ProtocolMassStorage, "rp2040:rp2040"},
		{"teensy:avr:teensy40", ProtocolHIDBoot, "teensy:avr"},
		{"esp32:esp32:esp32", ProtocolESPTool, "esp32:esp32"},
		// Unknown boards fall back to the AVR default.
		{"foo:bar:baz", ProtocolSTK500, ""},
		{"", ProtocolSTK500, ""},
	}
	for _, c := range cases {
		cfg := tbl.Lookup(c.fqbn)
		if cfg == nil {
			t.Fatalf("%q: nil config", c.fqbn)
		}
		if cfg.Protocol != c.protocol {
			t.Errorf("%q: protocol %s, want %s", c.fqbn, cfg.Protocol, c.protocol)
		}
		if cfg.Name != c.name {
			t.Errorf("%q: resolved to %q, want %q", c.fqbn, cfg.Name, c.name)
		}
	}
}

func TestLookupMegaPageSize(t *testing.T) {
	tbl := DefaultTable()
	if ps := tbl.Lookup("arduino:avr:mega").Memory.PageSize; ps != 256 {
		t.Errorf("mega page size %d, want 256", ps)
	}
	if ps := tbl.Lookup("arduino:avr:uno").Memory.PageSize; ps != 128 {
		t.Errorf("uno page size %d, want 128", ps)
	}
}

func TestChunkOrPageSize(t *testing.T) {
	cases := []struct {
		mem  MemoryParams
		want int
	}{
		{MemoryParams{ChunkSize: 4096, PageSize: 256}, 4096},
		{MemoryParams{PageSize: 128}, 128},
		{MemoryParams{}, FallbackChunkSize},
	}
	for i, c := range cases {
		cfg := &Config{Memory: c.mem}
		if got := cfg.ChunkOrPageSize(); got != c.want {
			t.Errorf("%d: ChunkOrPageSize %d, want %d", i, got, c.want)
		}
	}
}

func TestUses1200bpsTouch(t *testing.T) {
	tbl := DefaultTable()
	if tbl.Lookup("arduino:avr:uno").Uses1200bpsTouch() {
		t.Errorf("AVR should not use touch")
	}
	if !tbl.Lookup("arduino:renesas_uno:unor4wifi").Uses1200bpsTouch() {
		t.Errorf("renesas_uno should use touch")
	}
}

func TestLoadOverrides(t *testing.T) {
	tbl := DefaultTable()
	err := tbl.LoadOverrides([]byte(`
boards:
  - prefix: mycorp:custom
    protocol: stk500
    serial:
      upload_baud: 57600
    memory:
      page_size: 64
      flash_size: 16384
  - prefix: arduino:avr
    protocol: bossa
    serial:
      touch_baud: 1200
`))
	if err != nil {
		t.Fatalf("LoadOverrides: %s", err)
	}
	cfg := tbl.Lookup("mycorp:custom:widget")
	if cfg.Serial.UploadBaud != 57600 || cfg.Memory.PageSize != 64 {
		t.Errorf("custom board not applied: %+v", cfg)
	}
	// An override for an existing prefix shadows the built-in.
	if p := tbl.Lookup("arduino:avr:uno").Protocol; p != ProtocolBOSSA {
		t.Errorf("override did not shadow built-in, got %s", p)
	}
}

func TestLoadOverridesErrors(t *testing.T) {
	tbl := DefaultTable()
	if err := tbl.LoadOverrides([]byte("boards:\n  - protocol: stk500\n")); err == nil {
		t.Errorf("missing prefix accepted")
	}
	if err := tbl.LoadOverrides([]byte("boards:\n  - prefix: a:b\n    protocol: nope\n")); err == nil {
		t.Errorf("unknown protocol accepted")
	}
	if err := tbl.LoadOverrides([]byte(":::")); err == nil {
		t.Errorf("malformed yaml accepted")
	}
}

func TestMaxFlashSize(t *testing.T) {
	tbl := DefaultTable()
	if got := tbl.MaxFlashSize(); got < 2*1024*1024 {
		t.Errorf("MaxFlashSize %d, want at least 2M", got)
	}
}
