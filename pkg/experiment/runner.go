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

// Package experiment runs repeated trials of the memory workload and
// collects their metrics.
//
// A trial clears the CPU cache, allocates a fresh buffer, runs the workload
// on it while counting hardware events, takes a resource usage snapshot and
// merges all of it into a statistics store. A fatal error in any trial
// aborts the whole run. A recoverable one is logged and the trial carries on
// without the affected metrics.
package experiment

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	logger "github.com/intel/memexp/pkg/log"
	"github.com/intel/memexp/pkg/memory"
	"github.com/intel/memexp/pkg/oserr"
	"github.com/intel/memexp/pkg/perf"
	"github.com/intel/memexp/pkg/procmaps"
	"github.com/intel/memexp/pkg/procstats"
	"github.com/intel/memexp/pkg/rusage"
	"github.com/intel/memexp/pkg/stats"
	"github.com/intel/memexp/pkg/utils/cpuset"
	"github.com/intel/memexp/pkg/workload"
)

const (
	// WallTime is the wall-clock time of the workload, in seconds.
	WallTime = "wall_seconds"
	// WorkingSets is the number of working sets the workload visited.
	WorkingSets = "working_sets"
	// CPUBusy is how busy the pinned CPUs were during the workload, in percent.
	CPUBusy = "cpu_busy_pct"
)

var log = logger.NewLogger("experiment")

// State is the state of a Runner.
type State int

const (
	// NotStarted is the state of a fresh Runner.
	NotStarted State = iota
	// Running is the state while trials are run.
	Running
	// Done is the state after the last trial or a fatal error.
	Done
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Running:
		return "running"
	case Done:
		return "done"
	}
	return fmt.Sprintf("<unknown state %d>", int(s))
}

// buffer is the memory a trial runs its workload on.
type buffer interface {
	Bytes() []byte
	Addr() uintptr
	Kind() string
	Release() error
}

// Runner runs the trials of an experiment.
type Runner struct {
	opts   *Options
	out    io.Writer
	groups []perf.Group
	cpus   cpuset.CPUSet
	state  State
	trial  int

	// steps of a trial, replaced in tests
	clearCache func(size int) int
	allocate   func(size int, opts memory.Options) (buffer, error)
	measure    func(fn func(), groups ...perf.Group) (stats.Samples, error)
	usage      func() (*rusage.Snapshot, error)
	regions    func(pid int) ([]procmaps.Region, error)
	cpuTimes   func() (procstats.CPUTimes, error)
}

// NewRunner creates a runner for the given options. Debug dumps are
// written to out.
func NewRunner(opts *Options, out io.Writer) *Runner {
	cpus, err := opts.CPUSet()
	if err != nil {
		log.Warn("not tracking CPU usage: %v", err)
	}
	return &Runner{
		opts:       opts,
		out:        out,
		groups:     perf.DefaultGroups(),
		cpus:       cpus,
		clearCache: memory.ClearCache,
		allocate: func(size int, opts memory.Options) (buffer, error) {
			return memory.Allocate(size, opts)
		},
		measure:  perf.Measure,
		usage:    rusage.Take,
		regions:  procmaps.Read,
		cpuTimes: procstats.Read,
	}
}

// State returns the current state of the runner.
func (r *Runner) State() State {
	return r.state
}

// Trial returns the number of the trial being run, starting at 1.
func (r *Runner) Trial() int {
	return r.trial
}

// Run runs the given number of trials and returns the collected statistics.
// A Runner can only be run once.
func (r *Runner) Run(trials int) (*stats.Store, error) {
	if r.state != NotStarted {
		return nil, experimentError("runner is %s", r.state)
	}
	if trials < 1 {
		return nil, experimentError("invalid number of trials %d", trials)
	}

	r.state = Running
	defer func() { r.state = Done }()

	log.Info("running %d trials: %d byte %s buffer, %s pattern, %d iterations",
		trials, int(r.opts.Size), r.opts.Memory.Kind(), r.opts.Workload.Pattern(),
		r.opts.Workload.Iterations)

	store := stats.NewStore()
	for r.trial = 1; r.trial <= trials; r.trial++ {
		samples, err := r.runTrial()
		if err != nil {
			return nil, errors.Wrapf(err, "trial %d", r.trial)
		}

		for _, name := range store.Names() {
			if _, ok := samples[name]; !ok {
				log.Warn("trial %d: no %s sample", r.trial, name)
			}
		}
		for _, name := range store.Add(samples) {
			log.Warn("trial %d: metric %s first seen, it has fewer samples than trials", r.trial, name)
		}
	}
	r.trial = trials

	return store, nil
}

// runTrial runs a single trial.
func (r *Runner) runTrial() (stats.Samples, error) {
	lines := r.clearCache(int(r.opts.CacheSize))
	log.Debug("trial %d: touched %d cache lines", r.trial, lines)

	buf, err := r.allocate(int(r.opts.Size), r.opts.Memory)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := buf.Release(); err != nil {
			log.Error("trial %d: failed to release buffer: %v", r.trial, err)
		}
	}()

	if r.opts.Debug {
		r.dumpMapping(buf)
	}

	samples := stats.Samples{}
	before := r.readCPUTimes()

	var runErr error
	counters, err := r.measure(func() {
		defer stats.StartTimer(WallTime, samples.Sink(WallTime)).Stop()
		runErr = workload.Run(buf.Bytes(), r.opts.Workload, samples.Sink(WorkingSets))
	}, r.groups...)
	if err != nil {
		return nil, err
	}
	if runErr != nil {
		return nil, runErr
	}
	samples.Merge(counters)
	r.addCPUBusy(samples, before)

	snapshot, err := r.usage()
	switch {
	case err == nil:
		samples.Merge(snapshot.Samples())
		if r.opts.Debug {
			fmt.Fprintf(r.out, "trial %d resource usage:\n", r.trial)
			if err := snapshot.Dump(r.out); err != nil {
				log.Warn("trial %d: failed to dump resource usage: %v", r.trial, err)
			}
		}
	case oserr.IsRecoverable(err):
		log.Warn("trial %d: skipping resource usage: %v", r.trial, err)
	default:
		return nil, err
	}

	return samples, nil
}

// readCPUTimes reads the CPU time accounting, nil if it is not available.
func (r *Runner) readCPUTimes() procstats.CPUTimes {
	if r.cpus.IsEmpty() {
		return nil
	}
	times, err := r.cpuTimes()
	if err != nil {
		log.Warn("trial %d: skipping CPU usage: %v", r.trial, err)
		return nil
	}
	return times
}

// addCPUBusy adds how busy the pinned CPUs have been since before.
func (r *Runner) addCPUBusy(samples stats.Samples, before procstats.CPUTimes) {
	if before == nil {
		return
	}
	after := r.readCPUTimes()
	if after == nil {
		return
	}
	busy, err := after.BusyPercent(before, r.cpus)
	switch {
	case errors.Is(err, procstats.ErrNoTicks):
		log.Debug("trial %d: skipping CPU usage: %v", r.trial, err)
	case err != nil:
		log.Warn("trial %d: skipping CPU usage: %v", r.trial, err)
	default:
		samples[CPUBusy] = busy
	}
}

// dumpMapping logs the mapping holding the buffer.
func (r *Runner) dumpMapping(buf buffer) {
	regions, err := r.regions(procmaps.Self)
	if err != nil {
		log.Warn("trial %d: failed to read memory map: %v", r.trial, err)
		return
	}
	region, ok := procmaps.Find(regions, uint64(buf.Addr()))
	if !ok {
		log.Warn("trial %d: buffer at %#x not in any mapping", r.trial, buf.Addr())
		return
	}
	log.Info("trial %d: %s buffer at %#x in %s", r.trial, buf.Kind(), buf.Addr(), region)
}

func experimentError(format string, args ...interface{}) error {
	return fmt.Errorf("experiment: "+format, args...)
}
