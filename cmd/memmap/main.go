// Copyright 2022 Intel Corporation. All Rights Reserved.
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

package main

import (
	"flag"
	"fmt"
	"os"

	logger "github.com/intel/memexp/pkg/log"
	"github.com/intel/memexp/pkg/procmaps"
	"github.com/intel/memexp/pkg/rusage"
	_ "github.com/intel/memexp/pkg/version"
)

var log = logger.NewLogger("memmap")

func exit(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, "memmap: "+format+"\n", a...)
	logger.Flush()
	os.Exit(1)
}

func main() {
	optPid := flag.Int("pid", procmaps.Self, "-pid=PID print the memory map of this process instead of our own")
	optParsed := flag.Bool("parsed", false, "-parsed print the memory map as a table")
	optRusage := flag.Bool("rusage", false, "-rusage print our own resource usage")

	flag.Parse()
	defer logger.Flush()

	if *optPid < 0 {
		exit("invalid -pid %d", *optPid)
	}

	if *optParsed {
		regions, err := procmaps.Read(*optPid)
		if err != nil {
			exit("%v", err)
		}
		if err := procmaps.Table(os.Stdout, regions); err != nil {
			exit("%v", err)
		}
	} else if err := procmaps.Dump(*optPid, os.Stdout); err != nil {
		exit("%v", err)
	}

	if *optRusage {
		snapshot, err := rusage.Take()
		if err != nil {
			log.Warn("no resource usage: %v", err)
			return
		}
		if err := snapshot.Dump(os.Stdout); err != nil {
			exit("%v", err)
		}
	}
}
