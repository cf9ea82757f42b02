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
package stk500

import (
	"bytes"
	"testing"
	"time"

	"github.com/sketchburn/sketchburn/cli/flash/boards"
	"github.com/sketchburn/sketchburn/cli/flash/common"
	"github.com/sketchburn/sketchburn/cli/flash/common/commontest"
)

func testConfig() *boards.Config {
	cfg := boards.DefaultTable().Lookup("arduino:avr:uno")
	// Shrink the waits so failure cases return quickly.
	c := *cfg
	c.Timing.SyncTimeout = 10 * time.Millisecond
	c.Timing.CommandTimeout = 10 * time.Millisecond
	c.Timing.RetryDelay = time.Millisecond
	return &c
}

// ackStream returns n INSYNC/OK pairs.
func ackStream(n int) []byte {
	var s []byte
	for i := 0; i < n; i++ {
		s = append(s, 0x14, 0x10)
	}
	return s
}

func TestSyncToleratesNoise(t *testing.T) {
	ft := &commontest.FakeTransport{Inbound: []byte{0x00, 0x14, 0x10}}
	c := NewClient(ft, testConfig())
	if err := c.Sync(5); err != nil {
		t.Fatalf("Sync: %s", err)
	}
	if len(ft.Writes) != 1 {
		t.Errorf("expected 1 sync frame, got %d", len(ft.Writes))
	}
	if !bytes.Equal(ft.Writes[0], []byte{0x30, 0x20}) {
		t.Errorf("sync frame % x, want 30 20", ft.Writes[0])
	}
}

func TestSyncResetsScannerOnNoise(t *testing.T) {
	// INSYNC followed by junk must restart the scan, not accept the next OK
	// half-pair blindly. 0x14 0x55 0x14 0x10 still syncs; 0x14 0x55 0x10 not.
	ft := &commontest.FakeTransport{Inbound: []byte{0x14, 0x55, 0x14, 0x10}}
	if err := NewClient(ft, testConfig()).Sync(1); err != nil {
		t.Fatalf("Sync: %s", err)
	}
	ft = &commontest.FakeTransport{Inbound: []byte{0x14, 0x55, 0x10}}
	if err := NewClient(ft, testConfig()).Sync(1); err == nil {
		t.Fatalf("Sync accepted a broken ack sequence")
	}
}

func TestSyncExhaustion(t *testing.T) {
	ft := &commontest.FakeTransport{Inbound: []byte{0x42, 0x42, 0x42}}
	c := NewClient(ft, testConfig())
	err := c.Sync(5)
	if err == nil {
		t.Fatalf("Sync succeeded on garbage")
	}
	if !common.IsTimeout(err) {
		t.Errorf("want timeout error, got %s", err)
	}
	if len(ft.Writes) != 5 {
		t.Errorf("expected exactly 5 sync attempts, got %d", len(ft.Writes))
	}
}

func TestSyncFatalOnClosedTransport(t *testing.T) {
	ft := &commontest.FakeTransport{CloseOnDrained: true}
	err := NewClient(ft, testConfig()).Sync(5)
	if err == nil {
		t.Fatalf("Sync succeeded on closed transport")
	}
	if !common.IsClosed(err) {
		t.Errorf("want closed error, got %s", err)
	}
	if len(ft.Writes) != 1 {
		t.Errorf("closed transport should not be retried, got %d attempts", len(ft.Writes))
	}
}

func TestCommandAckMismatch(t *testing.T) {
	ft := &commontest.FakeTransport{Inbound: []byte{0x15, 0x10}} // NOSYNC
	err := NewClient(ft, testConfig()).EnterProgMode()
	if err == nil {
		t.Fatalf("EnterProgMode accepted NOSYNC")
	}
	// Diagnostics must carry the raw bytes.
	if want := "15 10"; !bytes.Contains([]byte(err.Error()), []byte(want)) {
		t.Errorf("error %q does not carry received bytes", err)
	}
}

func TestLoadAddressWireFormat(t *testing.T) {
	ft := &commontest.FakeTransport{Inbound: ackStream(1)}
	if err := NewClient(ft, testConfig()).LoadAddress(0x1234); err != nil {
		t.Fatalf("LoadAddress: %s", err)
	}
	// Word address goes out little-endian, CRC_EOP terminated.
	want := []byte{0x55, 0x34, 0x12, 0x20}
	if !bytes.Equal(ft.Writes[0], want) {
		t.Errorf("frame % x, want % x", ft.Writes[0], want)
	}
}

func TestProgramPageWireFormat(t *testing.T) {
	page := bytes.Repeat([]byte{0xAB}, 128)
	ft := &commontest.FakeTransport{Inbound: ackStream(1)}
	if err := NewClient(ft, testConfig()).ProgramPage(page); err != nil {
		t.Fatalf("ProgramPage: %s", err)
	}
	w := ft.Writes[0]
	// Length is big-endian, memory type is flash ('F').
	if w[0] != 0x64 || w[1] != 0x00 || w[2] != 0x80 || w[3] != 'F' {
		t.Errorf("header % x", w[:4])
	}
	if !bytes.Equal(w[4:4+128], page) {
		t.Errorf("page payload mismatch")
	}
	if w[len(w)-1] != 0x20 {
		t.Errorf("missing CRC_EOP terminator")
	}
}

func TestProgramPageTooLarge(t *testing.T) {
	ft := &commontest.FakeTransport{Inbound: ackStream(1)}
	err := NewClient(ft, testConfig()).ProgramPage(make([]byte, 256))
	if err == nil {
		t.Fatalf("oversized page accepted")
	}
}

func TestFlashPageChunking(t *testing.T) {
	fw := make([]byte, 128*3+64) // 3.5 pages
	for i := range fw {
		fw[i] = byte(i)
	}
	// sync + enter + 4 x (load + page) + leave = 10 acked commands.
	ft := &commontest.FakeTransport{Inbound: ackStream(11)}
	if err := NewClient(ft, testConfig()).Flash(fw, nil); err != nil {
		t.Fatalf("Flash: %s", err)
	}

	var loads, pages [][]byte
	for _, w := range ft.Writes {
		switch w[0] {
		case 0x55:
			loads = append(loads, w)
		case 0x64:
			pages = append(pages, w)
		}
	}
	if len(pages) != 4 {
		t.Fatalf("expected 4 program page commands, got %d", len(pages))
	}
	if len(loads) != 4 {
		t.Fatalf("expected 4 load address commands, got %d", len(loads))
	}
	wantWordAddrs := []uint16{0, 64, 128, 192} // byte offsets 0,128,256,384 / 2
	for i, l := range loads {
		got := uint16(l[1]) | uint16(l[2])<<8
		if got != wantWordAddrs[i] {
			t.Errorf("load %d: word addr %d, want %d", i, got, wantWordAddrs[i])
		}
	}
	wantLens := []int{128, 128, 128, 64}
	for i, p := range pages {
		plen := int(p[1])<<8 | int(p[2])
		if plen != wantLens[i] {
			t.Errorf("page %d: length %d, want %d", i, plen, wantLens[i])
		}
		off := i * 128
		if !bytes.Equal(p[4:4+plen], fw[off:off+plen]) {
			t.Errorf("page %d: payload mismatch", i)
		}
	}
}

func TestFlashProgressMonotonic(t *testing.T) {
	fw := make([]byte, 128*5)
	ft := &commontest.FakeTransport{Inbound: ackStream(13)}
	var percents []int
	err := NewClient(ft, testConfig()).Flash(fw, func(p int, status string) {
		percents = append(percents, p)
	})
	if err != nil {
		t.Fatalf("Flash: %s", err)
	}
	if len(percents) == 0 || percents[0] != 0 {
		t.Fatalf("progress must start at 0, got %v", percents)
	}
	if percents[len(percents)-1] != 100 {
		t.Fatalf("progress must end at 100, got %v", percents)
	}
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Fatalf("progress went backwards: %v", percents)
		}
	}
}

func TestFlashFailsMidway(t *testing.T) {
	fw := make([]byte, 128*4)
	// Enough acks for sync, enter and the first page pair only.
	ft := &commontest.FakeTransport{Inbound: ackStream(4)}
	err := NewClient(ft, testConfig()).Flash(fw, nil)
	if err == nil {
		t.Fatalf("Flash succeeded without acks")
	}
	if !common.IsTimeout(err) {
		t.Errorf("want timeout error, got %s", err)
	}
}
