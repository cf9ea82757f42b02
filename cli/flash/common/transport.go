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
// Package common holds the pieces shared by all upload strategies: the
// byte transport over the device connection, the progress contract and the
// strategy interface itself.
package common

import (
	"time"

	"github.com/juju/errors"
)

// Signal names a hardware control line of the transport.
type Signal string

const (
	SignalDTR Signal = "dtr"
	SignalRTS Signal = "rts"
)

// ErrClosed is returned (as the cause) when the underlying connection is
// gone. Timeouts are reported via errors satisfying errors.IsTimeout.
var ErrClosed = errors.New("transport closed")

// Transport is one exclusively-owned device connection. A single upload owns
// the transport for its whole duration; it must be closed exactly once on
// every exit path. Closing it out-of-band is the only way to abort an upload
// in flight.
type Transport interface {
	// Write sends all of data or fails.
	Write(data []byte) error
	// ReadExact reads exactly n bytes, failing with a timeout error if they
	// do not arrive within timeout, or with ErrClosed if the connection ends.
	ReadExact(n int, timeout time.Duration) ([]byte, error)
	// SetControlSignal drives a control line (reset wiring differs per board).
	SetControlSignal(sig Signal, level bool) error
	// Reopen closes and reopens the connection at the given baud rate.
	// Used for the 1200bps touch sequence and for switching to upload speed.
	Reopen(baud uint) error
	// Drain discards stale unread bootloader output.
	Drain()
	Close() error
}

// IsTimeout reports whether err is a read/response timeout.
func IsTimeout(err error) bool {
	return errors.IsTimeout(errors.Cause(err))
}

// IsClosed reports whether err means the connection is gone.
func IsClosed(err error) bool {
	return errors.Cause(err) == ErrClosed
}
