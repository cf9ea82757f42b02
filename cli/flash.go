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
package main

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/juju/errors"
	"github.com/schollz/progressbar/v3"
	flag "github.com/spf13/pflag"

	"github.com/sketchburn/sketchburn/cli/flash/boards"
	"github.com/sketchburn/sketchburn/cli/flash/common"
	"github.com/sketchburn/sketchburn/cli/flash/ihex"
	"github.com/sketchburn/sketchburn/cli/flash/uploader"
)

func loadBoardsTable() (*boards.Table, error) {
	table := boards.DefaultTable()
	if *boardsFile != "" {
		if err := table.LoadOverridesFile(*boardsFile); err != nil {
			return nil, errors.Annotatef(err, "loading %s", *boardsFile)
		}
	}
	return table, nil
}

// loadFirmware reads fname and returns the flat flash image: Intel HEX files
// are decoded, anything else is taken as a raw binary image.
func loadFirmware(fname string) ([]byte, error) {
	data, err := ioutil.ReadFile(fname)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if strings.ToLower(filepath.Ext(fname)) == ".hex" {
		fw, err := ihex.Decode(string(data))
		if err != nil {
			return nil, errors.Annotatef(err, "decoding %s", fname)
		}
		return fw, nil
	}
	return data, nil
}

func flashSketch() error {
	fname := flag.Arg(1)
	if fname == "" {
		return errors.Errorf("firmware file is required, e.g. sketchburn flash --port ... --fqbn ... fw.hex")
	}

	table, err := loadBoardsTable()
	if err != nil {
		return errors.Trace(err)
	}
	cfg := table.Lookup(*fqbn)

	fw, err := loadFirmware(fname)
	if err != nil {
		return errors.Trace(err)
	}

	t, err := common.OpenSerial(*port, common.SerialOptions{
		BaudRate: cfg.Serial.UploadBaud,
		DataBits: cfg.Serial.DataBits,
		Parity:   cfg.Serial.Parity,
	})
	if err != nil {
		return errors.Trace(err)
	}

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Uploading"),
		progressbar.OptionOnCompletion(func() { fmt.Println() }),
	)
	progress := func(percent int, status string) {
		bar.Describe(status)
		bar.Set(percent)
	}

	registry := uploader.DefaultRegistry(table, uploader.Options{
		Port:             *port,
		UF2Mount:         *uf2Mount,
		ESPToolPath:      *esptoolPath,
		ESPToolExtraArgs: *esptoolExtraArgs,
	})
	outcome, err := registry.Upload(t, fw, progress, *fqbn)
	if err != nil {
		return errors.Trace(err)
	}

	switch outcome {
	case common.OutcomeFlashed:
		color.New(color.FgGreen).Printf("Done: %d bytes written to %s\n", len(fw), *port)
	case common.OutcomeManualHandoff:
		color.New(color.FgYellow).Printf("Image staged, finish the upload by hand (see above)\n")
	case common.OutcomeSimulated:
		color.New(color.FgYellow).Printf("Simulated only, the device was NOT flashed\n")
	}
	return nil
}
