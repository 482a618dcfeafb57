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
	"path/filepath"

	"github.com/intel/memexp/pkg/affinity"
	"github.com/intel/memexp/pkg/experiment"
	logger "github.com/intel/memexp/pkg/log"
	"github.com/intel/memexp/pkg/metrics"
	"github.com/intel/memexp/pkg/oserr"
	"github.com/intel/memexp/pkg/report"
	"github.com/intel/memexp/pkg/sysfs"
	_ "github.com/intel/memexp/pkg/version"
)

var log = logger.NewLogger("memexp")

func exit(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, "memexp: "+format+"\n", a...)
	logger.Flush()
	os.Exit(1)
}

// fail exits with a diagnostic naming the failed operation, if known.
func fail(err error) {
	if op := oserr.Op(err); op != "" && oserr.IsFatal(err) {
		exit("%s failed: %v", op, err)
	}
	exit("%v", err)
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "usage: %s [options] [random] [mmap [shared] [prefault] [filebacked [msync]]] [debug]\n\n",
		filepath.Base(os.Args[0]))
	fmt.Fprintf(out, "Arguments:\n")
	fmt.Fprintf(out, "  random       visit working sets in pseudo-random order\n")
	fmt.Fprintf(out, "  mmap         allocate the buffer with mmap instead of from the heap\n")
	fmt.Fprintf(out, "  shared       create a shared mapping\n")
	fmt.Fprintf(out, "  prefault     populate the mapping up front\n")
	fmt.Fprintf(out, "  filebacked   map the -file instead of anonymous memory\n")
	fmt.Fprintf(out, "  msync        fill the file-backed mapping and flush it before the workload\n")
	fmt.Fprintf(out, "  debug        dump resource usage and the buffer mapping of every trial\n\n")
	fmt.Fprintf(out, "Options:\n")
	flag.PrintDefaults()
}

func main() {
	opts := experiment.DefaultOptions()
	opts.Bind(flag.CommandLine)
	optConfig := flag.String("config", "", "-config=FILE read options from a YAML file")
	optSysRoot := flag.String("sysfs-root", sysfs.DefaultSysRoot, "-sysfs-root=DIR discover CPUs and caches under DIR")

	flag.Usage = usage
	flag.Parse()

	if *optConfig != "" {
		o, err := experiment.LoadFile(*optConfig)
		if err != nil {
			exit("%v", err)
		}
		if err := o.Reapply(flag.CommandLine); err != nil {
			exit("%v", err)
		}
		opts = o
	}
	if err := opts.ParseTokens(flag.Args()); err != nil {
		flag.Usage()
		exit("%v", err)
	}
	if err := opts.Validate(); err != nil {
		exit("invalid options: %v", err)
	}
	format, _ := report.ParseFormat(opts.Output)

	sys := sysfs.NewSystem(*optSysRoot)
	cpus, _ := opts.CPUSet()
	if online, err := sys.OnlineCPUs(); err != nil {
		log.Warn("failed to discover online CPUs: %v", err)
	} else if err := affinity.Check(cpus, online); err != nil {
		exit("invalid -cpu: %v", err)
	}

	// Both affinity and the hardware counters act on the thread, so main
	// stays on the thread it pins for the rest of its life.
	if err := affinity.Pin(cpus); err != nil {
		fail(err)
	}
	opts.ResolveCacheSize(sys, cpus)

	log.DebugBlock("  <options> ", "%s", opts.String())

	store, err := experiment.NewRunner(opts, os.Stdout).Run(opts.Trials)
	if err != nil {
		fail(err)
	}

	if err := report.Write(os.Stdout, format, store); err != nil {
		exit("%v", err)
	}
	if opts.MetricsFile != "" {
		if err := metrics.WriteTextfile(opts.MetricsFile, store); err != nil {
			exit("%v", err)
		}
	}

	logger.Flush()
}
