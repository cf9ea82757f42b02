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
// Package boards maps fully-qualified board names (vendor:arch:board[:variant])
// to the upload protocol family and its serial, timing and memory constants.
package boards

import (
	"strings"
	"time"
)

type ProtocolKind string

const (
	ProtocolSTK500      ProtocolKind = "stk500"
	ProtocolBOSSA       ProtocolKind = "bossa"
	ProtocolESPTool     ProtocolKind = "esptool"
	ProtocolMassStorage ProtocolKind = "mass-storage"
	ProtocolHIDBoot     ProtocolKind = "hid-bootloader"
)

// TouchBaudRate is the magic baud rate that makes USB-CDC bootloaders
// re-enumerate into programming mode when the port is opened and closed at it.
const TouchBaudRate = 1200

// FallbackChunkSize is used when a family declares neither a chunk nor a
// page size.
const FallbackChunkSize = 2048

type SerialParams struct {
	TouchBaud  uint
	UploadBaud uint
	DataBits   uint
	Parity     string
}

type TimingParams struct {
	SyncTimeout    time.Duration
	CommandTimeout time.Duration
	WriteTimeout   time.Duration
	RetryCount     int
	RetryDelay     time.Duration
}

type MemoryParams struct {
	PageSize     int
	ChunkSize    int
	FlashSize    int
	FlashBase    uint32
	SketchOffset uint32
}

// STK500Commands are the command and status byte values of the STK500v1-class
// wire protocol. Families that speak a dialect can override individual bytes.
type STK500Commands struct {
	GetSync       byte
	EnterProgMode byte
	LeaveProgMode byte
	LoadAddress   byte
	ProgramPage   byte
	CRCEOP        byte
	InSync        byte
	OK            byte
	MemTypeFlash  byte
}

func DefaultSTK500Commands() STK500Commands {
	return STK500Commands{
		GetSync:       0x30,
		EnterProgMode: 0x50,
		LeaveProgMode: 0x51,
		LoadAddress:   0x55,
		ProgramPage:   0x64,
		CRCEOP:        0x20,
		InSync:        0x14,
		OK:            0x10,
		MemTypeFlash:  'F',
	}
}

type Config struct {
	// Name is the table key: either a vendor:arch prefix or a full FQBN.
	Name     string
	Protocol ProtocolKind
	Serial   SerialParams
	Timing   TimingParams
	Memory   MemoryParams
	Commands STK500Commands
}

// ChunkOrPageSize returns the transfer stride for families that move data in
// chunks rather than flash pages.
func (c *Config) ChunkOrPageSize() int {
	if c.Memory.ChunkSize > 0 {
		return c.Memory.ChunkSize
	}
	if c.Memory.PageSize > 0 {
		return c.Memory.PageSize
	}
	return FallbackChunkSize
}

// Uses1200bpsTouch reports whether the family enters its bootloader via the
// 1200 baud open/close sequence.
func (c *Config) Uses1200bpsTouch() bool {
	return c.Serial.TouchBaud == TouchBaudRate
}

type entry struct {
	key string
	cfg *Config
}

// Table is an ordered board parameter table. Lookup never fails: unknown
// boards resolve to the AVR default. The table is built once and read-only
// afterwards.
type Table struct {
	entries []entry
	def     *Config
}

func (t *Table) Register(key string, cfg *Config) {
	cfg.Name = key
	if cfg.Commands == (STK500Commands{}) {
		cfg.Commands = DefaultSTK500Commands()
	}
	t.entries = append(t.entries, entry{key: key, cfg: cfg})
}

// vendorArch returns the first two colon-delimited segments of an FQBN.
func vendorArch(fqbn string) string {
	parts := strings.SplitN(fqbn, ":", 3)
	if len(parts) < 2 {
		return fqbn
	}
	return parts[0] + ":" + parts[1]
}

// Lookup resolves fqbn to a board config: exact match first, then the first
// registered entry whose key equals the fqbn's vendor:arch prefix, then the
// AVR default.
func (t *Table) Lookup(fqbn string) *Config {
	for _, e := range t.entries {
		if e.key == fqbn {
			return e.cfg
		}
	}
	va := vendorArch(fqbn)
	for _, e := range t.entries {
		if e.key == va {
			return e.cfg
		}
	}
	return t.def
}

// Default returns the fallback config used for unrecognized boards.
func (t *Table) Default() *Config {
	return t.def
}

// Configs returns all registered configs in registration order.
func (t *Table) Configs() []*Config {
	cc := make([]*Config, 0, len(t.entries))
	for _, e := range t.entries {
		cc = append(cc, e.cfg)
	}
	return cc
}

// MaxFlashSize returns the largest flash size declared by any entry.
// The hex decoder sizes its working buffer off this.
func (t *Table) MaxFlashSize() int {
	max := t.def.Memory.FlashSize
	for _, e := range t.entries {
		if e.cfg.Memory.FlashSize > max {
			max = e.cfg.Memory.FlashSize
		}
	}
	return max
}

func avrDefault() *Config {
	return &Config{
		Protocol: ProtocolSTK500,
		Serial:   SerialParams{UploadBaud: 115200, DataBits: 8, Parity: "none"},
		Timing: TimingParams{
			SyncTimeout:    250 * time.Millisecond,
			CommandTimeout: 400 * time.Millisecond,
			WriteTimeout:   500 * time.Millisecond,
			RetryCount:     10,
			RetryDelay:     50 * time.Millisecond,
		},
		Memory:   MemoryParams{PageSize: 128, FlashSize: 32 * 1024},
		Commands: DefaultSTK500Commands(),
	}
}

// DefaultTable builds the built-in board table. Order matters: dispatch and
// prefix resolution follow registration order.
func DefaultTable() *Table {
	t := &Table{def: avrDefault()}

	// Mega boards carry bigger pages than the rest of the AVR family, so the
	// exact entry has to precede the arduino:avr prefix entry.
	mega := avrDefault()
	mega.Memory = MemoryParams{PageSize: 256, FlashSize: 256 * 1024}
	t.Register("arduino:avr:mega", mega)

	t.Register("arduino:avr", avrDefault())

	t.Register("arduino:renesas_uno", &Config{
		Protocol: ProtocolBOSSA,
		Serial:   SerialParams{TouchBaud: 1200, UploadBaud: 115200, DataBits: 8, Parity: "none"},
		Timing: TimingParams{
			SyncTimeout:    500 * time.Millisecond,
			CommandTimeout: 1000 * time.Millisecond,
			WriteTimeout:   1000 * time.Millisecond,
			RetryCount:     5,
			RetryDelay:     100 * time.Millisecond,
		},
		Memory: MemoryParams{PageSize: 256, ChunkSize: 4096, FlashSize: 256 * 1024},
	})

	t.Register("arduino:sam", &Config{
		Protocol: ProtocolBOSSA,
		Serial:   SerialParams{TouchBaud: 1200, UploadBaud: 115200, DataBits: 8, Parity: "none"},
		Timing: TimingParams{
			SyncTimeout:    500 * time.Millisecond,
			CommandTimeout: 1000 * time.Millisecond,
			WriteTimeout:   1000 * time.Millisecond,
			RetryCount:     5,
			RetryDelay:     100 * time.Millisecond,
		},
		Memory: MemoryParams{PageSize: 256, FlashSize: 512 * 1024, FlashBase: 0x80000},
	})

	t.Register("arduino:samd", &Config{
		Protocol: ProtocolBOSSA,
		Serial:   SerialParams{TouchBaud: 1200, UploadBaud: 115200, DataBits: 8, Parity: "none"},
		Timing: TimingParams{
			SyncTimeout:    500 * time.Millisecond,
			CommandTimeout: 1000 * time.Millisecond,
			WriteTimeout:   1000 * time.Millisecond,
			RetryCount:     5,
			RetryDelay:     100 * time.Millisecond,
		},
		Memory: MemoryParams{PageSize: 256, FlashSize: 256 * 1024, SketchOffset: 0x2000},
	})

	t.Register("arduino:mbed_rp2040", &Config{
		Protocol: ProtocolMassStorage,
		Serial:   SerialParams{TouchBaud: 1200, UploadBaud: 115200, DataBits: 8, Parity: "none"},
		Timing: TimingParams{
			SyncTimeout:    500 * time.Millisecond,
			CommandTimeout: 1000 * time.Millisecond,
			WriteTimeout:   1000 * time.Millisecond,
			RetryCount:     3,
			RetryDelay:     100 * time.Millisecond,
		},
		Memory: MemoryParams{ChunkSize: 256, FlashSize: 2 * 1024 * 1024, FlashBase: 0x10000000},
	})

	t.Register("rp2040:rp2040", &Config{
		Protocol: ProtocolMassStorage,
		Serial:   SerialParams{TouchBaud: 1200, UploadBaud: 115200, DataBits: 8, Parity: "none"},
		Timing: TimingParams{
			SyncTimeout:    500 * time.Millisecond,
			CommandTimeout: 1000 * time.Millisecond,
			WriteTimeout:   1000 * time.Millisecond,
			RetryCount:     3,
			RetryDelay:     100 * time.Millisecond,
		},
		Memory: MemoryParams{ChunkSize: 256, FlashSize: 2 * 1024 * 1024, FlashBase: 0x10000000},
	})

	t.Register("teensy:avr", &Config{
		Protocol: ProtocolHIDBoot,
		Serial:   SerialParams{UploadBaud: 115200, DataBits: 8, Parity: "none"},
		Timing: TimingParams{
			SyncTimeout:    500 * time.Millisecond,
			CommandTimeout: 1000 * time.Millisecond,
			WriteTimeout:   1000 * time.Millisecond,
			RetryCount:     3,
			RetryDelay:     100 * time.Millisecond,
		},
		Memory: MemoryParams{PageSize: 1024, FlashSize: 2 * 1024 * 1024},
	})

	t.Register("esp32:esp32", &Config{
		Protocol: ProtocolESPTool,
		Serial:   SerialParams{UploadBaud: 921600, DataBits: 8, Parity: "none"},
		Timing: TimingParams{
			SyncTimeout:    1000 * time.Millisecond,
			CommandTimeout: 3000 * time.Millisecond,
			WriteTimeout:   3000 * time.Millisecond,
			RetryCount:     3,
			RetryDelay:     100 * time.Millisecond,
		},
		Memory: MemoryParams{ChunkSize: 4096, FlashSize: 4 * 1024 * 1024, SketchOffset: 0x10000},
	})

	t.Register("esp8266:esp8266", &Config{
		Protocol: ProtocolESPTool,
		Serial:   SerialParams{UploadBaud: 460800, DataBits: 8, Parity: "none"},
		Timing: TimingParams{
			SyncTimeout:    1000 * time.Millisecond,
			CommandTimeout: 3000 * time.Millisecond,
			WriteTimeout:   3000 * time.Millisecond,
			RetryCount:     3,
			RetryDelay:     100 * time.Millisecond,
		},
		Memory: MemoryParams{ChunkSize: 4096, FlashSize: 4 * 1024 * 1024},
	})

	return t
}
