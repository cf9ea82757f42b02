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
	"io/ioutil"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"
	yaml "gopkg.in/yaml.v2"
)

type overrideEntry struct {
	Prefix   string `yaml:"prefix"`
	Protocol string `yaml:"protocol"`
	Serial   struct {
		TouchBaud  uint   `yaml:"touch_baud"`
		UploadBaud uint   `yaml:"upload_baud"`
		DataBits   uint   `yaml:"data_bits"`
		Parity     string `yaml:"parity"`
	} `yaml:"serial"`
	Timing struct {
		SyncTimeoutMs    int `yaml:"sync_timeout_ms"`
		CommandTimeoutMs int `yaml:"command_timeout_ms"`
		WriteTimeoutMs   int `yaml:"write_timeout_ms"`
		RetryCount       int `yaml:"retry_count"`
		RetryDelayMs     int `yaml:"retry_delay_ms"`
	} `yaml:"timing"`
	Memory struct {
		PageSize     int    `yaml:"page_size"`
		ChunkSize    int    `yaml:"chunk_size"`
		FlashSize    int    `yaml:"flash_size"`
		FlashBase    uint32 `yaml:"flash_base"`
		SketchOffset uint32 `yaml:"sketch_offset"`
	} `yaml:"memory"`
}

type overrideFile struct {
	Boards []overrideEntry `yaml:"boards"`
}

// LoadOverrides merges user-supplied board entries into the table. Overrides
// are prepended so they win over the built-ins for both exact and prefix
// resolution.
func (t *Table) LoadOverrides(data []byte) error {
	var of overrideFile
	if err := yaml.Unmarshal(data, &of); err != nil {
		return errors.Annotatef(err, "invalid boards file")
	}
	var oe []entry
	for _, o := range of.Boards {
		if o.Prefix == "" {
			return errors.Errorf("boards file entry without a prefix")
		}
		cfg := avrDefault()
		cfg.Name = o.Prefix
		if o.Protocol != "" {
			switch ProtocolKind(o.Protocol) {
			case ProtocolSTK500, ProtocolBOSSA, ProtocolESPTool, ProtocolMassStorage, ProtocolHIDBoot:
				cfg.Protocol = ProtocolKind(o.Protocol)
			default:
				return errors.Errorf("%s: unknown protocol %q", o.Prefix, o.Protocol)
			}
		}
		if o.Serial.TouchBaud != 0 {
			cfg.Serial.TouchBaud = o.Serial.TouchBaud
		}
		if o.Serial.UploadBaud != 0 {
			cfg.Serial.UploadBaud = o.Serial.UploadBaud
		}
		if o.Serial.DataBits != 0 {
			cfg.Serial.DataBits = o.Serial.DataBits
		}
		if o.Serial.Parity != "" {
			cfg.Serial.Parity = o.Serial.Parity
		}
		if o.Timing.SyncTimeoutMs != 0 {
			cfg.Timing.SyncTimeout = time.Duration(o.Timing.SyncTimeoutMs) * time.Millisecond
		}
		if o.Timing.CommandTimeoutMs != 0 {
			cfg.Timing.CommandTimeout = time.Duration(o.Timing.CommandTimeoutMs) * time.Millisecond
		}
		if o.Timing.WriteTimeoutMs != 0 {
			cfg.Timing.WriteTimeout = time.Duration(o.Timing.WriteTimeoutMs) * time.Millisecond
		}
		if o.Timing.RetryCount != 0 {
			cfg.Timing.RetryCount = o.Timing.RetryCount
		}
		if o.Timing.RetryDelayMs != 0 {
			cfg.Timing.RetryDelay = time.Duration(o.Timing.RetryDelayMs) * time.Millisecond
		}
		if o.Memory.PageSize != 0 {
			cfg.Memory.PageSize = o.Memory.PageSize
		}
		if o.Memory.ChunkSize != 0 {
			cfg.Memory.ChunkSize = o.Memory.ChunkSize
		}
		if o.Memory.FlashSize != 0 {
			cfg.Memory.FlashSize = o.Memory.FlashSize
		}
		cfg.Memory.FlashBase = o.Memory.FlashBase
		cfg.Memory.SketchOffset = o.Memory.SketchOffset
		glog.V(1).Infof("board override: %s -> %s", o.Prefix, cfg.Protocol)
		oe = append(oe, entry{key: o.Prefix, cfg: cfg})
	}
	t.entries = append(oe, t.entries...)
	return nil
}

// LoadOverridesFile is LoadOverrides reading from a file.
func (t *Table) LoadOverridesFile(fname string) error {
	data, err := ioutil.ReadFile(fname)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(t.LoadOverrides(data))
}
