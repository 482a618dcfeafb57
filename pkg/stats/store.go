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
	"fmt"
	"io"
	"sort"
)

// Samples is the set of metric values produced by a single trial.
type Samples map[string]float64

// Merge copies all samples from o, overwriting existing ones.
func (s Samples) Merge(o Samples) Samples {
	for name, value := range o {
		s[name] = value
	}
	return s
}

// Names returns the metric names in sorted order.
func (s Samples) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sink returns a Sink that sets the named sample.
func (s Samples) Sink(name string) Sink {
	return &sampleSink{samples: s, name: name}
}

type sampleSink struct {
	samples Samples
	name    string
}

func (s *sampleSink) Add(v float64) {
	s.samples[s.name] = v
}

// Store keeps an Accumulator per metric across trials.
type Store struct {
	metrics map[string]*Accumulator
	trials  int
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		metrics: make(map[string]*Accumulator),
	}
}

// Add merges the samples of one trial. It returns the names of metrics
// which were not seen in earlier trials, except for the first trial.
func (s *Store) Add(samples Samples) []string {
	var late []string
	for _, name := range samples.Names() {
		a, ok := s.metrics[name]
		if !ok {
			a = NewAccumulator(name)
			s.metrics[name] = a
			if s.trials > 0 {
				late = append(late, name)
			}
		}
		a.Add(samples[name])
	}
	s.trials++
	return late
}

// Trials returns the number of trials merged.
func (s *Store) Trials() int {
	return s.trials
}

// Names returns the metric names in sorted order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.metrics))
	for name := range s.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the Accumulator for the named metric.
func (s *Store) Get(name string) (*Accumulator, bool) {
	a, ok := s.metrics[name]
	return a, ok
}

// Summarize writes the summary line of every metric in sorted order.
func (s *Store) Summarize(w io.Writer) error {
	for _, name := range s.Names() {
		if _, err := fmt.Fprintln(w, s.metrics[name].String()); err != nil {
			return err
		}
	}
	return nil
}
