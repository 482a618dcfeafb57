// Copyright 2020 Intel Corporation. All Rights Reserved.
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

// Package procstats reads per-CPU time accounting from /proc/stat.
package procstats

import (
	"errors"
	"fmt"

	"github.com/prometheus/procfs"

	"github.com/intel/memexp/pkg/utils/cpuset"
)

// procRoot is the mount point for the proc filesystem
var procRoot = procfs.DefaultMountPoint

// ErrNoTicks is returned for a usage over an interval with no clock ticks.
var ErrNoTicks = errors.New("no clock ticks elapsed")

// CPUTime is the time accounting of a single CPU, in seconds.
type CPUTime struct {
	Idle  float64
	Total float64
}

// CPUTimes is the time accounting of all CPUs, by CPU id.
type CPUTimes map[int]CPUTime

// Read reads the current time accounting of all CPUs.
func Read() (CPUTimes, error) {
	fs, err := procfs.NewFS(procRoot)
	if err != nil {
		return nil, procstatsError("failed to open %s: %v", procRoot, err)
	}
	stat, err := fs.Stat()
	if err != nil {
		return nil, procstatsError("failed to read CPU statistics: %v", err)
	}
	times := FromStat(stat)
	if len(times) == 0 {
		return nil, procstatsError("no per-CPU statistics found")
	}
	return times, nil
}

// FromStat converts the per-CPU statistics of stat. Guest time is already
// accounted for in user time so it is left out of the total.
func FromStat(stat procfs.Stat) CPUTimes {
	times := CPUTimes{}
	for id, s := range stat.CPU {
		times[int(id)] = CPUTime{
			Idle:  s.Idle,
			Total: s.User + s.Nice + s.System + s.Idle + s.Iowait + s.IRQ + s.SoftIRQ + s.Steal,
		}
	}
	return times
}

// BusyPercent returns how busy the given CPUs were between prev and t,
// as a percentage of the elapsed time.
func (t CPUTimes) BusyPercent(prev CPUTimes, cpus cpuset.CPUSet) (float64, error) {
	idle, total := 0.0, 0.0
	for _, id := range cpus.List() {
		cur, ok := t[id]
		if !ok {
			return 0, procstatsError("no statistics for CPU %d", id)
		}
		old, ok := prev[id]
		if !ok {
			return 0, procstatsError("no earlier statistics for CPU %d", id)
		}
		if cur.Total < old.Total || cur.Idle < old.Idle {
			return 0, procstatsError("CPU %d statistics went backwards", id)
		}
		idle += cur.Idle - old.Idle
		total += cur.Total - old.Total
	}
	if total == 0 {
		return 0, ErrNoTicks
	}
	return (1.0 - idle/total) * 100.0, nil
}

func procstatsError(format string, args ...interface{}) error {
	return fmt.Errorf("procstats: "+format, args...)
}
