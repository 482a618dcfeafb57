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

// Package workload touches memory in a pattern meant to stress the data
// cache and the data TLB.
//
// The buffer is visited one working set at a time. A working set is 512
// consecutive cache lines (32 KiB). Each working set is walked 16 times,
// writing every 8th line and reading the others. The next working set
// either follows the previous one, wrapping around at the end of the
// buffer, or starts at a pseudo-random cache line.
package workload

import (
	"fmt"

	"github.com/intel/memexp/pkg/stats"
)

const (
	// CacheLineSize is the stride between touched bytes.
	CacheLineSize = 64
	// WorkingSetLines is the number of cache lines in a working set.
	WorkingSetLines = 512
	// LocalityPasses is how many times a working set is walked.
	LocalityPasses = 16
	// WriteStride makes every WriteStride'th line of a working set a write.
	WriteStride = 8
	// DefaultIterations is the default number of working sets visited.
	DefaultIterations = 1 << 20
)

// Options control the access pattern.
type Options struct {
	// Random picks working sets at pseudo-random offsets instead of sequentially.
	Random bool `json:"random"`
	// Iterations is the number of working sets visited.
	Iterations int `json:"iterations"`
}

// Pattern returns the name of the access pattern.
func (o Options) Pattern() string {
	if o.Random {
		return "random"
	}
	return "sequential"
}

// sink keeps the reads of Run from being optimized away.
var sink byte

// Validate checks that a buffer of the given size can hold more than one working set.
func Validate(size int) error {
	if lines := size / CacheLineSize; lines <= WorkingSetLines {
		return workloadError("buffer of %d bytes (%d cache lines) too small, need more than %d cache lines",
			size, lines, WorkingSetLines)
	}
	return nil
}

// Run runs the workload on buf. The number of working sets visited is
// emitted to sets, if it is not nil.
func Run(buf []byte, opts Options, sets stats.Sink) error {
	if err := Validate(len(buf)); err != nil {
		return err
	}
	if sets == nil {
		sets = discard{}
	}

	iterations := opts.Iterations
	if iterations <= 0 {
		iterations = DefaultIterations
	}

	visited := stats.NewCounter("working_sets", sets)
	defer visited.Done()

	w := newWalker(len(buf), opts.Random)
	var c byte
	for outer := 0; outer < iterations; outer++ {
		base := w.next() * CacheLineSize
		visited.Add()
		for locality := 0; locality < LocalityPasses; locality++ {
			for i := 0; i < WorkingSetLines; i++ {
				off := base + i*CacheLineSize
				if i%WriteStride == 0 {
					buf[off] = 1
				} else {
					c ^= buf[off]
				}
			}
		}
	}
	sink ^= c

	return nil
}

// walker picks the first cache line of the next working set.
type walker struct {
	rng     *Rand
	random  bool
	maxBase int
	base    int
}

func newWalker(size int, random bool) *walker {
	return &walker{
		rng:     NewRand(),
		random:  random,
		maxBase: size/CacheLineSize - WorkingSetLines,
	}
}

// next returns the cache line index of the next working set. The generator
// advances in both modes so the two patterns do the same amount of work.
func (w *walker) next() int {
	r := int(w.rng.Next() % uint64(w.maxBase))
	if w.random {
		w.base = r
	} else {
		w.base += WorkingSetLines
		if w.base >= w.maxBase {
			w.base = 0
		}
	}
	return w.base
}

type discard struct{}

func (discard) Add(float64) {}

func workloadError(format string, args ...interface{}) error {
	return fmt.Errorf("workload: "+format, args...)
}
