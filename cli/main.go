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
	goflag "flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/golang/glog"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/sketchburn/sketchburn/cli/pflagenv"
	"github.com/sketchburn/sketchburn/version"
)

const envPrefix = "SKETCHBURN_"

var (
	port             = flag.String("port", "", "Serial port the board is connected to")
	fqbn             = flag.String("fqbn", "", "Fully-qualified board name, e.g. arduino:avr:uno")
	boardsFile       = flag.String("boards-file", "", "YAML file with board parameter overrides")
	uf2Mount         = flag.String("uf2-mount", "", "Mount point of a UF2 bootloader volume")
	esptoolPath      = flag.String("esptool-path", "", "Path to the esptool.py binary")
	esptoolExtraArgs = flag.String("esptool-extra-args", "", "Extra arguments passed to esptool.py")

	versionFlag = flag.Bool("version", false, "Print version and exit")
	helpFull    = flag.Bool("helpfull", false, "Show full help, including advanced flags")
)

var commands = []command{
	{"flash", flashSketch, `Upload a compiled sketch (.hex or .bin) to the board`,
		[]string{"port", "fqbn"}, []string{"boards-file", "uf2-mount", "esptool-path", "esptool-extra-args"}},
	{"boards", listBoards, `List the built-in board parameter table`,
		[]string{}, []string{"boards-file"}},
}

type command struct {
	name     string
	handler  handler
	short    string
	required []string
	optional []string
}

type handler func() error

// glog registers its flags on the stdlib flag set; pull them in but keep
// them out of the default help.
var hiddenFlags = []string{
	"alsologtostderr",
	"log_backtrace_at",
	"log_dir",
	"logtostderr",
	"stderrthreshold",
	"v",
	"vmodule",
}

func initFlags() {
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	for _, f := range hiddenFlags {
		flag.CommandLine.MarkHidden(f)
	}
	flag.Usage = usage
}

func unhideFlags() {
	for _, name := range hiddenFlags {
		if f := flag.Lookup(name); f != nil {
			f.Hidden = false
		}
	}
}

func checkFlags(names []string) error {
	for _, req := range names {
		f := flag.Lookup(req)
		if f == nil || !f.Changed {
			return errors.Errorf("--%s is required", req)
		}
	}
	return nil
}

func printFlag(w io.Writer, opt string, name string) {
	f := flag.Lookup(name)
	arg := "<string>"
	if f.Value.Type() == "bool" {
		arg = ""
	}
	fmt.Fprintf(w, "  --%s %s\t%s. %s, default value: %q\n", name, arg, f.Usage, opt, f.DefValue)
}

func usage() {
	w := tabwriter.NewWriter(os.Stderr, 0, 0, 1, ' ', 0)

	if len(os.Args) == 3 && os.Args[1] == "help" {
		for _, c := range commands {
			if c.name == os.Args[2] {
				fmt.Fprintf(w, "%s %s FLAGS\n", os.Args[0], os.Args[2])
				fmt.Fprintf(w, "\nFlags:\n")
				for _, name := range c.required {
					printFlag(w, "Required", name)
				}
				for _, name := range c.optional {
					printFlag(w, "Optional", name)
				}
				w.Flush()
				os.Exit(1)
			}
		}
	}

	fmt.Fprintf(w, "The sketchburn firmware upload tool %s.\n", version.Version)
	fmt.Fprintf(w, "\nUsage:\n")
	fmt.Fprintf(w, "  %s <command> [flags]\n", os.Args[0])
	fmt.Fprintf(w, "\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(w, "  %s\t\t%s\n", c.name, c.short)
	}
	fmt.Fprintf(w, "\nRun \"%s help <command>\" for command-specific flags.\n", os.Args[0])
	w.Flush()
	os.Exit(1)
}

func run() error {
	for _, c := range commands {
		if c.name == flag.Arg(0) {
			if err := checkFlags(c.required); err != nil {
				return errors.Trace(err)
			}
			return errors.Trace(c.handler())
		}
	}
	usage()
	return nil
}

func main() {
	initFlags()
	flag.Parse()
	pflagenv.Parse(envPrefix)

	if *helpFull {
		unhideFlags()
		usage()
	} else if *versionFlag {
		fmt.Printf("sketchburn\nVersion: %s\nBuild ID: %s\n", version.Version, version.BuildId)
		return
	}

	if err := run(); err != nil {
		glog.Infof("Error: %+v", err)
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
