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
	"bytes"
	"testing"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/intel/memexp/pkg/memory"
	"github.com/intel/memexp/pkg/oserr"
	"github.com/intel/memexp/pkg/perf"
	"github.com/intel/memexp/pkg/procmaps"
	"github.com/intel/memexp/pkg/procstats"
	"github.com/intel/memexp/pkg/rusage"
	"github.com/intel/memexp/pkg/stats"
	"github.com/intel/memexp/pkg/workload"
)

const (
	testSize       = 2048 * workload.CacheLineSize
	testIterations = 10
)

type fakeBuffer struct {
	data     []byte
	released int
}

func (b *fakeBuffer) Bytes() []byte  { return b.data }
func (b *fakeBuffer) Addr() uintptr  { return uintptr(unsafe.Pointer(&b.data[0])) }
func (b *fakeBuffer) Kind() string   { return "fake" }
func (b *fakeBuffer) Release() error { b.released++; return nil }

// fakeRunner is a Runner with every OS interaction replaced.
type fakeRunner struct {
	*Runner
	buffers  []*fakeBuffer
	cleared  int
	measured int
	failures map[string]func(trial int) error
}

func testOptions() *Options {
	o := DefaultOptions()
	o.Size = testSize
	o.Workload.Iterations = testIterations
	return o
}

func newFakeRunner(opts *Options, out *bytes.Buffer) *fakeRunner {
	f := &fakeRunner{
		Runner:   NewRunner(opts, out),
		failures: map[string]func(int) error{},
	}
	fail := func(step string) error {
		if fn, ok := f.failures[step]; ok {
			return fn(f.trial)
		}
		return nil
	}

	f.clearCache = func(size int) int {
		f.cleared++
		return size / memory.CacheLineSize
	}
	f.allocate = func(size int, _ memory.Options) (buffer, error) {
		if err := fail("allocate"); err != nil {
			return nil, err
		}
		b := &fakeBuffer{data: make([]byte, size)}
		f.buffers = append(f.buffers, b)
		return b, nil
	}
	f.measure = func(fn func(), groups ...perf.Group) (stats.Samples, error) {
		if err := fail("measure"); err != nil {
			return nil, err
		}
		f.measured++
		fn()
		return stats.Samples{
			perf.L1DReadAccess: 1000,
			perf.L1DReadMiss:   42,
		}, nil
	}
	f.usage = func() (*rusage.Snapshot, error) {
		if err := fail("usage"); err != nil {
			return nil, err
		}
		return &rusage.Snapshot{
			Utime:  unix.Timeval{Sec: 1, Usec: 500000},
			Maxrss: 2048,
			Minflt: 32,
		}, nil
	}
	seconds := 0.0
	f.cpuTimes = func() (procstats.CPUTimes, error) {
		if err := fail("cpuTimes"); err != nil {
			return nil, err
		}
		seconds += 1
		return procstats.CPUTimes{1: {Idle: seconds / 10, Total: seconds}}, nil
	}
	f.regions = func(int) ([]procmaps.Region, error) {
		if err := fail("regions"); err != nil {
			return nil, err
		}
		addr := uint64(f.buffers[len(f.buffers)-1].Addr())
		return []procmaps.Region{
			{Start: addr &^ 0xfff, End: addr + testSize, Perms: "rw-p"},
		}, nil
	}

	return f
}

func TestIdenticalTrials(t *testing.T) {
	const trials = 5
	r := newFakeRunner(testOptions(), &bytes.Buffer{})
	require.Equal(t, NotStarted, r.State())

	store, err := r.Run(trials)
	require.NoError(t, err)
	require.Equal(t, Done, r.State())
	require.Equal(t, trials, store.Trials())
	require.Equal(t, trials, r.cleared)
	require.Equal(t, trials, r.measured)

	require.Len(t, r.buffers, trials)
	for _, b := range r.buffers {
		require.Equal(t, 1, b.released, "buffer released once per trial")
	}

	for _, name := range []string{
		perf.L1DReadAccess, perf.L1DReadMiss, WorkingSets, CPUBusy,
		rusage.UserTime, rusage.MaxRSS, rusage.MinorFaults,
	} {
		a, ok := store.Get(name)
		require.True(t, ok, name)
		require.Equal(t, trials, a.Count(), name)
		sd, err := a.StdDev()
		require.NoError(t, err)
		require.Equal(t, 0.0, sd, name)
	}

	a, _ := store.Get(WorkingSets)
	mean, err := a.Mean()
	require.NoError(t, err)
	require.Equal(t, float64(testIterations), mean)

	a, _ = store.Get(rusage.UserTime)
	mean, _ = a.Mean()
	require.Equal(t, 1.5, mean)

	a, _ = store.Get(CPUBusy)
	mean, _ = a.Mean()
	require.InDelta(t, 90.0, mean, 1e-9)

	a, ok := store.Get(WallTime)
	require.True(t, ok)
	require.Equal(t, trials, a.Count())
}

func TestRunOnlyOnce(t *testing.T) {
	r := newFakeRunner(testOptions(), &bytes.Buffer{})
	_, err := r.Run(0)
	require.Error(t, err)

	_, err = r.Run(1)
	require.NoError(t, err)
	_, err = r.Run(1)
	require.Error(t, err)
}

func TestFatalFailures(t *testing.T) {
	tcases := []struct {
		name     string
		step     string
		err      error
		buffers  int
		released int
	}{
		{
			name:    "allocation",
			step:    "allocate",
			err:      oserr.Fatal("mmap", unix.ENOMEM),
			buffers:  1,
			released: 1,
		},
		{
			name:     "counter session",
			step:     "measure",
			err:      oserr.Fatal("perf_event_open", unix.EACCES),
			buffers:  2,
			released: 2,
		},
		{
			name:     "unclassified usage failure",
			step:     "usage",
			err:      errors.New("unexpected"),
			buffers:  2,
			released: 2,
		},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			r := newFakeRunner(testOptions(), &bytes.Buffer{})
			r.failures[tc.step] = func(trial int) error {
				if trial == 2 {
					return tc.err
				}
				return nil
			}

			store, err := r.Run(5)
			require.Error(t, err)
			require.Nil(t, store)
			require.True(t, errors.Is(err, tc.err))
			require.Contains(t, err.Error(), "trial 2")
			require.Equal(t, Done, r.State())
			require.Equal(t, 2, r.Trial())

			require.Len(t, r.buffers, tc.buffers)
			released := 0
			for _, b := range r.buffers {
				released += b.released
			}
			require.Equal(t, tc.released, released)
		})
	}
}

func TestFatalErrorKind(t *testing.T) {
	r := newFakeRunner(testOptions(), &bytes.Buffer{})
	r.failures["measure"] = func(int) error {
		return oserr.Fatal("ioctl(PERF_EVENT_IOC_ENABLE)", unix.EINVAL)
	}

	_, err := r.Run(3)
	require.True(t, oserr.IsFatal(err))
	require.Equal(t, "ioctl(PERF_EVENT_IOC_ENABLE)", oserr.Op(err))
}

func TestRecoverableUsageFailure(t *testing.T) {
	r := newFakeRunner(testOptions(), &bytes.Buffer{})
	r.failures["usage"] = func(trial int) error {
		if trial%2 == 1 {
			return oserr.Recoverable("getrusage", unix.EFAULT)
		}
		return nil
	}

	store, err := r.Run(4)
	require.NoError(t, err)
	require.Equal(t, 4, store.Trials())

	a, ok := store.Get(perf.L1DReadMiss)
	require.True(t, ok)
	require.Equal(t, 4, a.Count())

	a, ok = store.Get(rusage.MaxRSS)
	require.True(t, ok, "late metric must not be dropped")
	require.Equal(t, 2, a.Count())
}

func TestCPUUsageFailure(t *testing.T) {
	r := newFakeRunner(testOptions(), &bytes.Buffer{})
	r.failures["cpuTimes"] = func(int) error { return errors.New("no /proc/stat") }

	store, err := r.Run(2)
	require.NoError(t, err, "CPU usage is optional")
	_, ok := store.Get(CPUBusy)
	require.False(t, ok)
	_, ok = store.Get(perf.L1DReadMiss)
	require.True(t, ok)
}

func TestDebugDumps(t *testing.T) {
	opts := testOptions()
	opts.Debug = true
	out := &bytes.Buffer{}

	r := newFakeRunner(opts, out)
	_, err := r.Run(2)
	require.NoError(t, err)
	require.Contains(t, out.String(), "trial 1 resource usage:\nutime: 1.500000 seconds\n")
	require.Contains(t, out.String(), "trial 2 resource usage:\n")
	require.Contains(t, out.String(), "maxrss (KB): 2048\n")

	r = newFakeRunner(opts, &bytes.Buffer{})
	r.failures["regions"] = func(int) error { return errors.New("no maps") }
	_, err = r.Run(1)
	require.NoError(t, err, "memory map is only informational")
}

func TestStateNames(t *testing.T) {
	require.Equal(t, "not started", NotStarted.String())
	require.Equal(t, "running", Running.String())
	require.Equal(t, "done", Done.String())
	require.Equal(t, "<unknown state 7>", State(7).String())
}
