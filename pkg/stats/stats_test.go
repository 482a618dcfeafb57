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

package stats

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func accumulate(values ...float64) *Accumulator {
	a := NewAccumulator("test")
	for _, v := range values {
		a.Add(v)
	}
	return a
}

func TestMean(t *testing.T) {
	tcases := []struct {
		name   string
		values []float64
		mean   float64
	}{
		{name: "single", values: []float64{7}, mean: 7},
		{name: "ascending", values: []float64{1, 2, 3, 4}, mean: 2.5},
		{name: "shuffled", values: []float64{3, 1, 4, 2}, mean: 2.5},
		{name: "negative", values: []float64{-1, 1, -3, 3}, mean: 0},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mean, err := accumulate(tc.values...).Mean()
			require.NoError(t, err)
			require.InDelta(t, tc.mean, mean, 1e-12)
		})
	}

	_, err := accumulate().Mean()
	require.ErrorIs(t, err, ErrNoSamples)
}

func TestStdDev(t *testing.T) {
	sd, err := accumulate(2, 4, 4, 4, 5, 5, 7, 9).StdDev()
	require.NoError(t, err)
	require.InDelta(t, 2.138, sd, 1e-3)

	sd, err = accumulate(3, 3, 3, 3, 3).StdDev()
	require.NoError(t, err)
	require.Equal(t, 0.0, sd)

	_, err = accumulate(1).StdDev()
	require.ErrorIs(t, err, ErrTooFewSamples)
	_, err = accumulate().StdDev()
	require.ErrorIs(t, err, ErrTooFewSamples)
}

func TestPercentile(t *testing.T) {
	tcases := []struct {
		name     string
		values   []float64
		p        float64
		expected float64
		err      error
	}{
		{name: "median", values: []float64{1, 2, 3, 4, 5}, p: 0.5, expected: 3},
		{name: "unsorted median", values: []float64{5, 3, 1, 4, 2}, p: 0.5, expected: 3},
		{name: "maximum", values: []float64{5, 3, 1, 4, 2}, p: 1, expected: 5},
		{name: "minimum", values: []float64{5, 3, 1, 4, 2}, p: 0, expected: 1},
		{name: "rounded index", values: []float64{10, 20, 30, 40}, p: 0.9, expected: 40},
		{name: "90th of ten", values: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, p: 0.9, expected: 10},
		{name: "75th of four", values: []float64{1, 2, 3, 4}, p: 0.75, expected: 4},
		{name: "25th of four", values: []float64{4, 3, 2, 1}, p: 0.25, expected: 2},
		{name: "median of three", values: []float64{1, 3, 2}, p: 0.5, expected: 3},
		{name: "median of four", values: []float64{1, 2, 3, 4}, p: 0.5, expected: 3},
		{name: "single sample", values: []float64{42}, p: 0.75, expected: 42},
		{name: "empty", p: 0.5, err: ErrNoSamples},
		{name: "negative", values: []float64{1}, p: -0.1, err: ErrInvalidPercentile},
		{name: "above one", values: []float64{1}, p: 1.5, err: ErrInvalidPercentile},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := accumulate(tc.values...).Percentile(tc.p)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, v)
		})
	}
}

func TestSortCacheInvalidation(t *testing.T) {
	a := accumulate(3, 1, 2)
	hi, err := a.Max()
	require.NoError(t, err)
	require.Equal(t, 3.0, hi)

	a.Add(10)
	hi, err = a.Max()
	require.NoError(t, err)
	require.Equal(t, 10.0, hi)

	require.Equal(t, []float64{3, 1, 2, 10}, a.Values(), "insertion order is kept")
}

func TestSummaryLine(t *testing.T) {
	require.Equal(t, "Stats for test: n=3, avg=2, stddev=1", accumulate(1, 2, 3).String())
	require.Equal(t, "Stats for test: n=1, avg=5, stddev=n/a", accumulate(5).String())
	require.Equal(t, "Stats for test: n=0, avg=n/a, stddev=n/a", accumulate().String())
}

func TestTimer(t *testing.T) {
	start := time.Unix(1000, 0)
	clock := []time.Time{start, start.Add(1500 * time.Millisecond)}
	now = func() time.Time {
		t := clock[0]
		clock = clock[1:]
		return t
	}
	defer func() { now = time.Now }()

	samples := Samples{}
	func() {
		defer StartTimer("scope", samples.Sink("wall_seconds")).Stop()
	}()
	require.Equal(t, Samples{"wall_seconds": 1.5}, samples)

	out := &bytes.Buffer{}
	clock = []time.Time{start, start.Add(250 * time.Millisecond)}
	timer := StartTimer("print", nil).WithOutput(out)
	require.Equal(t, 0.25, timer.Stop())
	require.Equal(t, 0.0, timer.Stop(), "a stopped timer stays stopped")
	require.Equal(t, "Timer print: 0.25 s\n", out.String())
}

func TestCounter(t *testing.T) {
	a := NewAccumulator("hits")
	func() {
		c := NewCounter("hits", a)
		defer c.Done()
		for i := 0; i < 10; i++ {
			c.AddIf(i%3 == 0)
		}
		c.Add()
	}()
	require.Equal(t, []float64{5}, a.Values())

	out := &bytes.Buffer{}
	c := NewCounter("misses", nil).WithOutput(out)
	c.Add()
	c.Add()
	c.Done()
	c.Done()
	require.Equal(t, "Counter misses occurred 2 times\n", out.String())
}

func TestStore(t *testing.T) {
	s := NewStore()
	require.Empty(t, s.Add(Samples{"a": 1, "b": 10}))
	require.Empty(t, s.Add(Samples{"a": 1, "b": 20}))
	require.Equal(t, []string{"c"}, s.Add(Samples{"a": 1, "c": 5}))

	require.Equal(t, 3, s.Trials())
	require.Equal(t, []string{"a", "b", "c"}, s.Names())

	a, ok := s.Get("a")
	require.True(t, ok)
	sd, err := a.StdDev()
	require.NoError(t, err)
	require.Equal(t, 0.0, sd)

	b, _ := s.Get("b")
	c, _ := s.Get("c")
	if diff := cmp.Diff([]int{3, 2, 1}, []int{a.Count(), b.Count(), c.Count()}); diff != "" {
		t.Errorf("unexpected sample counts (-want +got):\n%s", diff)
	}

	out := &bytes.Buffer{}
	require.NoError(t, s.Summarize(out))
	require.Equal(t,
		"Stats for a: n=3, avg=1, stddev=0\n"+
			"Stats for b: n=2, avg=15, stddev=7.07107\n"+
			"Stats for c: n=1, avg=5, stddev=n/a\n",
		out.String())
}

func TestIdenticalTrials(t *testing.T) {
	s := NewStore()
	const trials = 5
	for i := 0; i < trials; i++ {
		s.Add(Samples{"l1d_read_miss": 1234, "minflt": 17})
	}
	for _, name := range s.Names() {
		a, _ := s.Get(name)
		require.Equal(t, trials, a.Count())
		sd, err := a.StdDev()
		require.NoError(t, err)
		require.Equal(t, 0.0, sd)
	}
}
