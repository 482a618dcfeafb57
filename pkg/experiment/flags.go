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

package experiment

import (
	"flag"

	"github.com/pkg/errors"
)

// Bind registers command line flags for the options on fs.
func (o *Options) Bind(fs *flag.FlagSet) {
	fs.IntVar(&o.Trials, "trials", o.Trials, "number of trials to run")
	fs.StringVar(&o.CPUs, "cpu", o.CPUs, "CPUs to pin to, in cpuset notation")
	fs.Var(&o.Size, "size", "size of the buffer allocated for each trial")
	fs.Var(&o.CacheSize, "cache-size", "memory touched to clear the cache, 0 to use the L1 data cache size")
	fs.IntVar(&o.Workload.Iterations, "iterations", o.Workload.Iterations, "number of working sets visited per trial")
	fs.StringVar(&o.Memory.Path, "file", o.Memory.Path, "backing file of file-backed mappings")
	fs.StringVar(&o.Output, "output", o.Output, "summary format, text or json")
	fs.StringVar(&o.MetricsFile, "metrics-file", o.MetricsFile, "write the summary as Prometheus metrics to this file")
}

// Reapply sets the flags explicitly given on the command line parsed by
// parsed again on o. It is used to let flags take precedence over a
// configuration file loaded after parsing.
func (o *Options) Reapply(parsed *flag.FlagSet) error {
	fs := flag.NewFlagSet("reapply", flag.ContinueOnError)
	o.Bind(fs)

	var err error
	parsed.Visit(func(f *flag.Flag) {
		if err != nil || fs.Lookup(f.Name) == nil {
			return
		}
		if e := fs.Set(f.Name, f.Value.String()); e != nil {
			err = errors.Wrapf(e, "failed to apply flag -%s", f.Name)
		}
	})

	return err
}
