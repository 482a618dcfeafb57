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

// Package affinity pins the calling goroutine to a set of CPUs.
//
// CPU affinity and per-thread hardware counters both act on an OS thread,
// so Pin locks the calling goroutine to its current OS thread first.
package affinity

import (
	"fmt"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	logger "github.com/intel/memexp/pkg/log"
	"github.com/intel/memexp/pkg/oserr"
	"github.com/intel/memexp/pkg/utils/cpuset"
)

var log = logger.NewLogger("affinity")

// replaced in tests
var (
	setaffinity = unix.SchedSetaffinity
	getaffinity = unix.SchedGetaffinity
)

// Pin locks the calling goroutine to its OS thread and restricts the
// thread to the given CPUs. A failure is fatal.
func Pin(cpus cpuset.CPUSet) error {
	if cpus.IsEmpty() {
		return affinityError("no CPUs to pin to")
	}

	runtime.LockOSThread()

	set := cpuset.ToUnix(cpus)
	if err := setaffinity(0, &set); err != nil {
		runtime.UnlockOSThread()
		return errors.Wrapf(oserr.Fatal("sched_setaffinity", err), "pinning to CPUs %s", cpus)
	}
	log.Debug("pinned thread %d to CPUs %s", unix.Gettid(), cpuset.ShortCPUSet(cpus))

	return nil
}

// Current returns the CPUs the calling thread may run on.
func Current() (cpuset.CPUSet, error) {
	var set unix.CPUSet
	if err := getaffinity(0, &set); err != nil {
		return cpuset.New(), oserr.Fatal("sched_getaffinity", err)
	}
	return cpuset.FromUnix(&set), nil
}

// Check verifies that cpus is a non-empty subset of the online CPUs.
func Check(cpus, online cpuset.CPUSet) error {
	if cpus.IsEmpty() {
		return affinityError("no CPUs given")
	}
	if !cpus.IsSubsetOf(online) {
		return affinityError("CPUs %s not online (online CPUs: %s)",
			cpus.Difference(online), cpuset.ShortCPUSet(online))
	}
	return nil
}

func affinityError(format string, args ...interface{}) error {
	return fmt.Errorf("affinity: "+format, args...)
}
