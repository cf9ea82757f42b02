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
// Package stk500 talks the STK500v1 protocol spoken by AVR-class serial
// bootloaders (optiboot and friends).
//
// Every command is a few command/parameter bytes terminated by CRC_EOP; an
// accepted command is answered with INSYNC followed by OK. Anything else,
// or silence past the timeout, is fatal to the upload: the protocol has no
// partial-success state.
package stk500

import (
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/sketchburn/sketchburn/cli/flash/boards"
	"github.com/sketchburn/sketchburn/cli/flash/common"
)

// Sync attempt limits. The post-reset sync gets more attempts since the
// bootloader window is easy to miss by a few hundred ms.
const (
	DefaultSyncAttempts = 10
	FlashSyncAttempts   = 20
)

// Client runs the protocol over a borrowed transport. It owns no state
// beyond the borrow and never closes the transport: the upload session
// owns that.
type Client struct {
	t    common.Transport
	cfg  *boards.Config
	cmds boards.STK500Commands
}

func NewClient(t common.Transport, cfg *boards.Config) *Client {
	return &Client{t: t, cfg: cfg, cmds: cfg.Commands}
}

// Sync establishes communication with the bootloader. The inbound stream may
// still carry stale bytes from before the reset, so instead of expecting a
// clean two-byte answer we scan the stream with a two-state matcher that
// falls back to the start on any unexpected byte.
func (c *Client) Sync(maxAttempts int) error {
	getSync := []byte{c.cmds.GetSync, c.cmds.CRCEOP}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		glog.V(2).Infof("sync attempt %d/%d", attempt, maxAttempts)
		if err := c.t.Write(getSync); err != nil {
			return errors.Annotatef(err, "sync: write failed")
		}
		ok, err := c.scanForAck(c.cfg.Timing.SyncTimeout)
		if err != nil {
			return errors.Annotatef(err, "sync")
		}
		if ok {
			glog.V(1).Infof("in sync after %d attempt(s)", attempt)
			return nil
		}
		time.Sleep(c.cfg.Timing.RetryDelay)
	}
	return errors.Timeoutf("no sync from bootloader after %d attempts", maxAttempts)
}

// scanForAck reads the stream byte-by-byte within the window, looking for
// INSYNC immediately followed by OK. Returns false on window expiry; only
// transport closure is an error.
func (c *Client) scanForAck(window time.Duration) (bool, error) {
	deadline := time.Now().Add(window)
	sawInSync := false
	for {
		remain := time.Until(deadline)
		if remain <= 0 {
			return false, nil
		}
		b, err := c.t.ReadExact(1, remain)
		if err != nil {
			if common.IsTimeout(err) {
				return false, nil
			}
			return false, errors.Trace(err)
		}
		switch {
		case !sawInSync && b[0] == c.cmds.InSync:
			sawInSync = true
		case sawInSync && b[0] == c.cmds.OK:
			return true, nil
		default:
			glog.V(3).Infof("sync noise: 0x%02x", b[0])
			sawInSync = false
		}
	}
}

// command sends body followed by CRC_EOP and expects the INSYNC/OK ack.
func (c *Client) command(name string, body ...byte) error {
	frame := append(append([]byte{}, body...), c.cmds.CRCEOP)
	if err := c.t.Write(frame); err != nil {
		return errors.Annotatef(err, "%s: write failed", name)
	}
	resp, err := c.t.ReadExact(2, c.cfg.Timing.CommandTimeout)
	if err != nil {
		if common.IsTimeout(err) {
			return errors.Annotatef(err, "%s: no response", name)
		}
		return errors.Annotatef(err, "%s", name)
	}
	if resp[0] != c.cmds.InSync || resp[1] != c.cmds.OK {
		return errors.Errorf("%s: unexpected response % x (want %02x %02x)",
			name, resp, c.cmds.InSync, c.cmds.OK)
	}
	return nil
}

func (c *Client) EnterProgMode() error {
	return errors.Trace(c.command("enter prog mode", c.cmds.EnterProgMode))
}

func (c *Client) LeaveProgMode() error {
	return errors.Trace(c.command("leave prog mode", c.cmds.LeaveProgMode))
}

// LoadAddress sets the write pointer. AVR flash is word-addressed, so addr
// is the byte address divided by two, sent little-endian.
func (c *Client) LoadAddress(wordAddr uint16) error {
	return errors.Trace(c.command("load address",
		c.cmds.LoadAddress, byte(wordAddr&0xff), byte(wordAddr>>8)))
}

// ProgramPage writes one page of flash. The length travels big-endian,
// unlike the address.
func (c *Client) ProgramPage(page []byte) error {
	pageSize := c.cfg.Memory.PageSize
	if pageSize > 0 && len(page) > pageSize {
		return errors.Errorf("page of %d bytes exceeds page size %d", len(page), pageSize)
	}
	body := make([]byte, 0, 4+len(page))
	body = append(body, c.cmds.ProgramPage, byte(len(page)>>8), byte(len(page)&0xff), c.cmds.MemTypeFlash)
	body = append(body, page...)
	return errors.Trace(c.command("program page", body...))
}

// Flash transfers fw to the device: sync, enter programming mode, write
// page-sized strides in ascending address order, leave programming mode.
// The final stride may be short. Any failure is terminal.
func (c *Client) Flash(fw []byte, progress common.ProgressFunc) error {
	progress = common.MonotonicProgress(progress)
	pageSize := c.cfg.Memory.PageSize
	if pageSize <= 0 {
		pageSize = 128
	}

	c.t.Drain()
	progress(0, "syncing")
	if err := c.Sync(FlashSyncAttempts); err != nil {
		return errors.Trace(err)
	}
	if err := c.EnterProgMode(); err != nil {
		return errors.Trace(err)
	}
	progress(0, "writing")
	for off := 0; off < len(fw); off += pageSize {
		end := off + pageSize
		if end > len(fw) {
			end = len(fw)
		}
		if err := c.LoadAddress(uint16(off / 2)); err != nil {
			return errors.Annotatef(err, "at offset 0x%04x", off)
		}
		if err := c.ProgramPage(fw[off:end]); err != nil {
			return errors.Annotatef(err, "at offset 0x%04x", off)
		}
		progress(end*100/len(fw), "writing")
	}
	if err := c.LeaveProgMode(); err != nil {
		return errors.Trace(err)
	}
	progress(100, "done")
	return nil
}
