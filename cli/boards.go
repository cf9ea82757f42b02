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
	"os"
	"text/tabwriter"

	"github.com/juju/errors"
)

func listBoards() error {
	table, err := loadBoardsTable()
	if err != nil {
		return errors.Trace(err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "BOARD\tPROTOCOL\tBAUD\tPAGE/CHUNK\tFLASH\n")
	for _, cfg := range table.Configs() {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%dK\n",
			cfg.Name, cfg.Protocol, cfg.Serial.UploadBaud,
			cfg.ChunkOrPageSize(), cfg.Memory.FlashSize/1024)
	}
	return errors.Trace(w.Flush())
}
