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

package workload

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intel/memexp/pkg/stats"
)

// 2048 cache lines, the last working set starts at line 1536
const testSize = 2048 * CacheLineSize

func TestRand(t *testing.T) {
	r := NewRand()
	require.Equal(t, uint64(2052), r.Next())
	require.Equal(t, uint64(10272), r.Next())

	a, b := NewRand(), NewRand()
	for i := 0; i < 1000; i++ {
		require.Equal(t, a.Next(), b.Next())
	}
}

func TestWalker(t *testing.T) {
	tcases := []struct {
		name     string
		random   bool
		expected []int
	}{
		{
			name:     "sequential wraps around",
			expected: []int{512, 1024, 0, 512, 1024, 0},
		},
		{
			name:     "random",
			random:   true,
			expected: []int{2052 % 1536, 10272 % 1536},
		},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			w := newWalker(testSize, tc.random)
			for i, expected := range tc.expected {
				require.Equal(t, expected, w.next(), "working set #%d", i)
			}
		})
	}
}

func TestRandomBasesStayInRange(t *testing.T) {
	w := newWalker(testSize, true)
	for i := 0; i < 10000; i++ {
		base := w.next()
		require.GreaterOrEqual(t, base, 0)
		require.Less(t, base, 1536)
		require.LessOrEqual(t, (base+WorkingSetLines)*CacheLineSize, testSize)
	}
}

func TestValidate(t *testing.T) {
	require.Error(t, Validate(0))
	require.Error(t, Validate(WorkingSetLines*CacheLineSize))
	require.NoError(t, Validate((WorkingSetLines+1)*CacheLineSize))
}

func TestRun(t *testing.T) {
	buf := make([]byte, testSize)
	samples := stats.Samples{}

	require.NoError(t, Run(buf, Options{Iterations: 3}, samples.Sink("working_sets")))
	require.Equal(t, stats.Samples{"working_sets": 3}, samples)

	// working sets at lines 512, 1024 and 0 are written every 8th line
	for _, line := range []int{0, 8, 504, 512, 520, 1024, 1528} {
		require.Equal(t, byte(1), buf[line*CacheLineSize], "line %d", line)
	}
	for _, line := range []int{1, 7, 1536, 1544, 2047} {
		require.Equal(t, byte(0), buf[line*CacheLineSize], "line %d", line)
	}
	require.Equal(t, byte(0), buf[1], "only the first byte of a line is touched")
}

func TestRunRandom(t *testing.T) {
	buf := make([]byte, testSize)
	require.NoError(t, Run(buf, Options{Random: true, Iterations: 100}, nil))

	require.Error(t, Run(make([]byte, 1024), Options{}, nil))
}

func TestPattern(t *testing.T) {
	require.Equal(t, "sequential", Options{}.Pattern())
	require.Equal(t, "random", Options{Random: true}.Pattern())
}
