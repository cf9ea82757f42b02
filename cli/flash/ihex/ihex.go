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
// Package ihex decodes Intel HEX firmware images into flat binary buffers.
//
// The decoder is deliberately lenient, matching the bootloaders it feeds:
// per-line checksums are not validated, and record types other than 0 (data)
// are ignored. In particular extended segment/linear address records (types
// 2 and 4) are skipped, so images that need more than the initial 64K
// address window are not supported and will be truncated or misplaced.
package ihex

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/juju/errors"
)

const (
	recordMark = ':'

	// recData is the only record type that contributes bytes to the image.
	recData = 0
	recEOF  = 1

	// Working buffer size. Has to cover the flash of the largest supported
	// family (4M for the ESP32 class); with extended addressing ignored the
	// data records themselves cannot reach beyond 64K + 255 anyway.
	bufferSize = 4 * 1024 * 1024
)

// Decode parses Intel HEX text into a flat binary buffer. Lines that do not
// start with ':' are skipped; data bytes land at the 16-bit address carried
// by their record; the result is truncated to the highest address+count seen.
// An input yielding zero data bytes is an error.
func Decode(text string) ([]byte, error) {
	buf := make([]byte, bufferSize)
	maxEnd := 0
	lineNo := 0
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		lineNo++
		l := strings.TrimSpace(scanner.Text())
		if len(l) == 0 || l[0] != recordMark {
			continue
		}
		if len(l) < 11 {
			glog.V(2).Infof("line %d: short record (%d chars), skipped", lineNo, len(l))
			continue
		}
		count, err1 := strconv.ParseUint(l[1:3], 16, 8)
		addr, err2 := strconv.ParseUint(l[3:7], 16, 16)
		typ, err3 := strconv.ParseUint(l[7:9], 16, 8)
		if err1 != nil || err2 != nil || err3 != nil {
			glog.V(2).Infof("line %d: unparseable record header, skipped", lineNo)
			continue
		}
		if typ != recData {
			// EOF, extended address etc. contribute nothing.
			glog.V(3).Infof("line %d: record type %d ignored", lineNo, typ)
			continue
		}
		for i := 0; i < int(count); i++ {
			o := 9 + i*2
			if o+2 > len(l) {
				break
			}
			b, err := strconv.ParseUint(l[o:o+2], 16, 8)
			if err != nil {
				break
			}
			end := int(addr) + i + 1
			if end > bufferSize {
				break
			}
			buf[int(addr)+i] = byte(b)
			if end > maxEnd {
				maxEnd = end
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	if maxEnd == 0 {
		return nil, errors.Errorf("no data records found in hex input")
	}
	return buf[:maxEnd], nil
}

// Encode renders data as Intel HEX data records of up to recordLen bytes,
// terminated by an EOF record. Unlike Decode, it emits valid checksums.
func Encode(data []byte, recordLen int) string {
	if recordLen <= 0 {
		recordLen = 16
	}
	var sb strings.Builder
	for off := 0; off < len(data); off += recordLen {
		end := off + recordLen
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]
		sum := byte(len(chunk)) + byte(off>>8) + byte(off) + recData
		fmt.Fprintf(&sb, ":%02X%04X%02X", len(chunk), off, recData)
		for _, b := range chunk {
			fmt.Fprintf(&sb, "%02X", b)
			sum += b
		}
		fmt.Fprintf(&sb, "%02X\n", ^sum+1)
	}
	sb.WriteString(":00000001FF\n")
	return sb.String()
}
