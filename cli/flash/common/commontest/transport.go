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
// Package commontest provides a scripted in-memory Transport for protocol
// and strategy tests.
package commontest

import (
	"time"

	"github.com/juju/errors"

	"github.com/sketchburn/sketchburn/cli/flash/common"
)

// SignalChange records one SetControlSignal call.
type SignalChange struct {
	Sig   common.Signal
	Level bool
}

// FakeTransport replays a scripted inbound byte stream and records
// everything the code under test does to it.
type FakeTransport struct {
	// Inbound is consumed by ReadExact. When it runs dry, reads time out
	// (or report closure if CloseOnDrained is set).
	Inbound        []byte
	CloseOnDrained bool

	// WriteErr, if set, fails the n-th Write call (1-based) and all later ones.
	WriteErr       error
	WriteErrAfter  int
	writeCallCount int

	Writes     [][]byte
	Signals    []SignalChange
	Reopens    []uint
	Drains     int
	CloseCount int
}

var _ common.Transport = (*FakeTransport)(nil)

func (t *FakeTransport) Write(data []byte) error {
	t.writeCallCount++
	if t.WriteErr != nil && t.writeCallCount > t.WriteErrAfter {
		return t.WriteErr
	}
	d := make([]byte, len(data))
	copy(d, data)
	t.Writes = append(t.Writes, d)
	return nil
}

func (t *FakeTransport) ReadExact(n int, timeout time.Duration) ([]byte, error) {
	if len(t.Inbound) < n {
		got := t.Inbound
		t.Inbound = nil
		if t.CloseOnDrained {
			return got, errors.Trace(common.ErrClosed)
		}
		return got, errors.Timeoutf("read %d of %d bytes", len(got), n)
	}
	res := t.Inbound[:n]
	t.Inbound = t.Inbound[n:]
	return res, nil
}

func (t *FakeTransport) SetControlSignal(sig common.Signal, level bool) error {
	t.Signals = append(t.Signals, SignalChange{Sig: sig, Level: level})
	return nil
}

func (t *FakeTransport) Reopen(baud uint) error {
	t.Reopens = append(t.Reopens, baud)
	return nil
}

func (t *FakeTransport) Drain() {
	t.Drains++
}

func (t *FakeTransport) Close() error {
	t.CloseCount++
	return nil
}

// AllWrites returns the concatenation of everything written.
func (t *FakeTransport) AllWrites() []byte {
	var all []byte
	for _, w := range t.Writes {
		all = append(all, w...)
	}
	return all
}
