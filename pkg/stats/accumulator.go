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
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrNoSamples is returned for statistics of an empty Accumulator.
	ErrNoSamples = errors.New("no samples")
	// ErrTooFewSamples is returned for a standard deviation of less than two samples.
	ErrTooFewSamples = errors.New("standard deviation needs at least two samples")
	// ErrInvalidPercentile is returned for a percentile outside [0, 1].
	ErrInvalidPercentile = errors.New("percentile must be within [0, 1]")
)

// Sink receives samples.
type Sink interface {
	Add(float64)
}

// Accumulator collects the samples of a single metric across trials.
type Accumulator struct {
	name    string
	samples []float64
	sorted  []float64 // sorted copy of samples, nil when stale
}

// NewAccumulator creates an empty Accumulator for the named metric.
func NewAccumulator(name string) *Accumulator {
	return &Accumulator{name: name}
}

// Name returns the name of the metric.
func (a *Accumulator) Name() string {
	return a.name
}

// Add appends a sample.
func (a *Accumulator) Add(v float64) {
	a.samples = append(a.samples, v)
	a.sorted = nil
}

// Count returns the number of samples.
func (a *Accumulator) Count() int {
	return len(a.samples)
}

// Values returns a copy of the samples in the order they were added.
func (a *Accumulator) Values() []float64 {
	return append([]float64(nil), a.samples...)
}

// Mean returns the arithmetic mean of the samples.
func (a *Accumulator) Mean() (float64, error) {
	if len(a.samples) == 0 {
		return 0, a.error(ErrNoSamples)
	}
	sum := 0.0
	for _, v := range a.samples {
		sum += v
	}
	return sum / float64(len(a.samples)), nil
}

// StdDev returns the sample standard deviation, with count-1 as the denominator.
func (a *Accumulator) StdDev() (float64, error) {
	if len(a.samples) < 2 {
		return 0, a.error(ErrTooFewSamples)
	}
	mean, _ := a.Mean()
	sum := 0.0
	for _, v := range a.samples {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(a.samples)-1)), nil
}

// Percentile returns the sample at index round(p*count) in sorted order,
// rounding halves to even. An index past the last sample, as for p = 1,
// selects the last sample.
func (a *Accumulator) Percentile(p float64) (float64, error) {
	if p < 0 || p > 1 || math.IsNaN(p) {
		return 0, a.error(fmt.Errorf("%w: %v", ErrInvalidPercentile, p))
	}
	if len(a.samples) == 0 {
		return 0, a.error(ErrNoSamples)
	}
	if a.sorted == nil {
		a.sorted = append([]float64(nil), a.samples...)
		sort.Float64s(a.sorted)
	}
	idx := int(math.RoundToEven(p * float64(len(a.sorted))))
	if idx > len(a.sorted)-1 {
		idx = len(a.sorted) - 1
	}
	return a.sorted[idx], nil
}

// Median returns the 50th percentile.
func (a *Accumulator) Median() (float64, error) {
	return a.Percentile(0.5)
}

// Min returns the smallest sample.
func (a *Accumulator) Min() (float64, error) {
	return a.Percentile(0)
}

// Max returns the largest sample.
func (a *Accumulator) Max() (float64, error) {
	return a.Percentile(1)
}

// String returns a one-line summary of the metric.
func (a *Accumulator) String() string {
	avg := "n/a"
	if mean, err := a.Mean(); err == nil {
		avg = formatValue(mean)
	}
	stddev := "n/a"
	if sd, err := a.StdDev(); err == nil {
		stddev = formatValue(sd)
	}
	return fmt.Sprintf("Stats for %s: n=%d, avg=%s, stddev=%s", a.name, a.Count(), avg, stddev)
}

func (a *Accumulator) error(err error) error {
	return fmt.Errorf("stats %s: %w", a.name, err)
}

func formatValue(v float64) string {
	return fmt.Sprintf("%.6g", v)
}
