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

// Package report renders the statistics collected over a set of trials.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/intel/memexp/pkg/stats"
)

// Format is a supported output format.
type Format string

const (
	// FormatText is one summary line per metric.
	FormatText Format = "text"
	// FormatJSON is a JSON document with full order statistics.
	FormatJSON Format = "json"
)

// Formats lists the supported output formats.
var Formats = []Format{FormatText, FormatJSON}

// ParseFormat parses the name of an output format.
func ParseFormat(name string) (Format, error) {
	for _, f := range Formats {
		if strings.EqualFold(name, string(f)) {
			return f, nil
		}
	}
	return "", errors.Errorf("invalid output format %q", name)
}

// Metric is the summary of a single metric.
type Metric struct {
	Name   string   `json:"name"`
	Count  int      `json:"count"`
	Mean   *float64 `json:"mean"`
	StdDev *float64 `json:"stddev"`
	Min    *float64 `json:"min"`
	Median *float64 `json:"median"`
	Max    *float64 `json:"max"`
}

// Summary is the summary of all metrics of a run.
type Summary struct {
	Trials  int      `json:"trials"`
	Metrics []Metric `json:"metrics"`
}

// Summarize computes the summary of every metric in the store, in sorted order.
// Statistics which are undefined for the samples at hand are left nil.
func Summarize(store *stats.Store) *Summary {
	s := &Summary{
		Trials:  store.Trials(),
		Metrics: []Metric{},
	}
	for _, name := range store.Names() {
		a, _ := store.Get(name)
		s.Metrics = append(s.Metrics, Metric{
			Name:   name,
			Count:  a.Count(),
			Mean:   valueOrNil(a.Mean()),
			StdDev: valueOrNil(a.StdDev()),
			Min:    valueOrNil(a.Min()),
			Median: valueOrNil(a.Median()),
			Max:    valueOrNil(a.Max()),
		})
	}
	return s
}

func valueOrNil(v float64, err error) *float64 {
	if err != nil {
		return nil
	}
	return &v
}

// Write renders the store in the given format.
func Write(w io.Writer, format Format, store *stats.Store) error {
	switch format {
	case FormatText:
		return Text(w, store)
	case FormatJSON:
		return JSON(w, store)
	}
	return errors.Errorf("invalid output format %q", format)
}

// Text writes one summary line per metric.
func Text(w io.Writer, store *stats.Store) error {
	if err := store.Summarize(w); err != nil {
		return errors.Wrap(err, "failed to write summary")
	}
	return nil
}

// JSON writes the summary as an indented JSON document.
func JSON(w io.Writer, store *stats.Store) error {
	data, err := json.MarshalIndent(Summarize(store), "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal summary")
	}
	if _, err := fmt.Fprintln(w, string(data)); err != nil {
		return errors.Wrap(err, "failed to write summary")
	}
	return nil
}
