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

import (
	"io"
	"sync"
	"time"

	"github.com/cesanta/go-serial/serial"
	"github.com/golang/glog"
	"github.com/juju/errors"
)

const (
	// Per-read poll granularity; ReadExact loops on this until its deadline.
	interCharacterTimeout = 50 * time.Millisecond
)

type SerialOptions struct {
	BaudRate uint
	DataBits uint
	Parity   string
}

// SerialTransport is the Transport implementation over a serial port.
type SerialTransport struct {
	portName string
	opts     SerialOptions

	// Underlying serial port allows concurrent Read/Write, but Close during
	// either is a race. Reads/writes take the lock for reading, Close takes
	// it for writing.
	closeLock sync.RWMutex
	conn      serial.Serial
	isClosed  bool
}

func parityMode(parity string) serial.ParityMode {
	switch parity {
	case "even":
		return serial.PARITY_EVEN
	case "odd":
		return serial.PARITY_ODD
	default:
		return serial.PARITY_NONE
	}
}

// OpenSerial opens portName and returns a transport over it.
func OpenSerial(portName string, opts SerialOptions) (*SerialTransport, error) {
	t := &SerialTransport{portName: portName, opts: opts}
	if t.opts.DataBits == 0 {
		t.opts.DataBits = 8
	}
	conn, err := openPort(portName, t.opts)
	if err != nil {
		return nil, errors.Trace(err)
	}
	t.conn = conn
	return t, nil
}

func openPort(portName string, opts SerialOptions) (serial.Serial, error) {
	glog.V(1).Infof("opening %s @ %d", portName, opts.BaudRate)
	oo := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              opts.BaudRate,
		DataBits:              opts.DataBits,
		ParityMode:            parityMode(opts.Parity),
		StopBits:              1,
		InterCharacterTimeout: uint(interCharacterTimeout / time.Millisecond),
		MinimumReadSize:       0,
	}
	conn, err := serial.Open(oo)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to open %s", portName)
	}
	return conn, nil
}

func (t *SerialTransport) Write(data []byte) error {
	t.closeLock.RLock()
	defer t.closeLock.RUnlock()
	if t.isClosed {
		return errors.Trace(ErrClosed)
	}
	written := 0
	for written < len(data) {
		n, err := t.conn.Write(data[written:])
		written += n
		if err != nil {
			return errors.Annotatef(err, "wrote %d of %d bytes", written, len(data))
		}
	}
	glog.V(4).Infof("=> (%d) % x", len(data), data)
	return nil
}

func (t *SerialTransport) ReadExact(n int, timeout time.Duration) ([]byte, error) {
	buf := make([]byte, n)
	got := 0
	deadline := time.Now().Add(timeout)
	for got < n {
		t.closeLock.RLock()
		if t.isClosed {
			t.closeLock.RUnlock()
			return buf[:got], errors.Trace(ErrClosed)
		}
		nn, err := t.conn.Read(buf[got:])
		t.closeLock.RUnlock()
		got += nn
		if err != nil && err != io.EOF {
			// A hard read error means the port is gone.
			glog.V(1).Infof("%s: read error: %s", t.portName, err)
			return buf[:got], errors.Trace(ErrClosed)
		}
		if got < n && time.Now().After(deadline) {
			return buf[:got], errors.Timeoutf("read %d of %d bytes in %s", got, n, timeout)
		}
	}
	glog.V(4).Infof("<= (%d) % x", got, buf[:got])
	return buf, nil
}

func (t *SerialTransport) SetControlSignal(sig Signal, level bool) error {
	t.closeLock.RLock()
	defer t.closeLock.RUnlock()
	if t.isClosed {
		return errors.Trace(ErrClosed)
	}
	glog.V(2).Infof("%s: %s -> %t", t.portName, sig, level)
	switch sig {
	case SignalDTR:
		t.conn.SetDTR(level)
	case SignalRTS:
		t.conn.SetRTS(level)
	default:
		return errors.Errorf("unknown control signal %q", sig)
	}
	return nil
}

func (t *SerialTransport) Reopen(baud uint) error {
	t.closeLock.Lock()
	defer t.closeLock.Unlock()
	if !t.isClosed {
		t.conn.Close()
	}
	t.opts.BaudRate = baud
	conn, err := openPort(t.portName, t.opts)
	if err != nil {
		t.isClosed = true
		return errors.Trace(err)
	}
	t.conn = conn
	t.isClosed = false
	return nil
}

func (t *SerialTransport) Drain() {
	t.closeLock.RLock()
	defer t.closeLock.RUnlock()
	if t.isClosed {
		return
	}
	t.conn.Flush()
}

// Close is idempotent: the upload path and its cleanup may both reach it.
func (t *SerialTransport) Close() error {
	t.closeLock.Lock()
	defer t.closeLock.Unlock()
	if t.isClosed {
		return nil
	}
	t.isClosed = true
	return errors.Trace(t.conn.Close())
}
