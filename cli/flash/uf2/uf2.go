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
// Package uf2 handles RP2040-class boards whose bootloader is a USB
// mass-storage volume: the image is packaged as a UF2 file and dropped onto
// the volume. There is no in-band programming protocol to speak here.
package uf2

import (
	"bytes"
	"encoding/binary"
)

// https://github.com/microsoft/uf2
const (
	magicStart0 = 0x0A324655 // "UF2\n"
	magicStart1 = 0x9E5D5157
	magicEnd    = 0x0AB16F30

	flagFamilyIDPresent = 0x00002000

	// FamilyRP2040 is the UF2 family ID the RP2040 ROM bootloader accepts.
	FamilyRP2040 = 0xE48BFF56

	blockSize   = 512
	payloadSize = 256
)

// Encode packages data into UF2 blocks targeted at baseAddr. Each block
// carries 256 payload bytes; the final block is zero-padded.
func Encode(data []byte, baseAddr uint32, familyID uint32) []byte {
	numBlocks := (len(data) + payloadSize - 1) / payloadSize
	if numBlocks == 0 {
		numBlocks = 1
	}
	out := bytes.NewBuffer(make([]byte, 0, numBlocks*blockSize))
	for i := 0; i < numBlocks; i++ {
		off := i * payloadSize
		end := off + payloadSize
		if end > len(data) {
			end = len(data)
		}
		var payload [476]byte
		copy(payload[:], data[off:end])

		binary.Write(out, binary.LittleEndian, uint32(magicStart0))
		binary.Write(out, binary.LittleEndian, uint32(magicStart1))
		binary.Write(out, binary.LittleEndian, uint32(flagFamilyIDPresent))
		binary.Write(out, binary.LittleEndian, baseAddr+uint32(off))
		binary.Write(out, binary.LittleEndian, uint32(payloadSize))
		binary.Write(out, binary.LittleEndian, uint32(i))
		binary.Write(out, binary.LittleEndian, uint32(numBlocks))
		binary.Write(out, binary.LittleEndian, familyID)
		out.Write(payload[:])
		binary.Write(out, binary.LittleEndian, uint32(magicEnd))
	}
	return out.Bytes()
}
