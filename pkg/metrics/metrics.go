// Copyright 2019 Intel Corporation. All Rights Reserved.
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

// Package metrics exports trial statistics as Prometheus metrics.
package metrics

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	logger "github.com/intel/memexp/pkg/log"
	"github.com/intel/memexp/pkg/stats"
)

// Prometheus Metric descriptor indices and descriptor table
const (
	meanDesc = iota
	stddevDesc
	samplesDesc
	trialsDesc
	numDescriptors
)

var descriptors = [numDescriptors]*prometheus.Desc{
	meanDesc: prometheus.NewDesc(
		"memexp_metric_mean",
		"Arithmetic mean of a metric over all trials.",
		[]string{
			"metric",
		}, nil,
	),
	stddevDesc: prometheus.NewDesc(
		"memexp_metric_stddev",
		"Sample standard deviation of a metric over all trials.",
		[]string{
			"metric",
		}, nil,
	),
	samplesDesc: prometheus.NewDesc(
		"memexp_metric_samples",
		"Number of samples collected for a metric.",
		[]string{
			"metric",
		}, nil,
	),
	trialsDesc: prometheus.NewDesc(
		"memexp_trials",
		"Number of trials run.",
		nil, nil,
	),
}

var log = logger.NewLogger("metrics")

type collector struct {
	store *stats.Store
}

// NewCollector creates a Prometheus collector for the statistics in store.
func NewCollector(store *stats.Store) prometheus.Collector {
	return &collector{store: store}
}

// Describe implements prometheus.Collector.
func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range descriptors {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(descriptors[trialsDesc],
		prometheus.GaugeValue, float64(c.store.Trials()))

	for _, name := range c.store.Names() {
		a, _ := c.store.Get(name)
		ch <- prometheus.MustNewConstMetric(descriptors[samplesDesc],
			prometheus.GaugeValue, float64(a.Count()), name)
		if mean, err := a.Mean(); err == nil {
			ch <- prometheus.MustNewConstMetric(descriptors[meanDesc],
				prometheus.GaugeValue, mean, name)
		}
		// undefined for a single sample
		if sd, err := a.StdDev(); err == nil {
			ch <- prometheus.MustNewConstMetric(descriptors[stddevDesc],
				prometheus.GaugeValue, sd, name)
		}
	}
}

// NewMetricGatherer creates a new prometheus.Gatherer for the statistics in store.
func NewMetricGatherer(store *stats.Store) (prometheus.Gatherer, error) {
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(NewCollector(store)); err != nil {
		return nil, metricsError("failed to register collector: %v", err)
	}
	return reg, nil
}

// WriteTextfile writes the statistics in store to path in the Prometheus
// text exposition format. The file is replaced atomically.
func WriteTextfile(path string, store *stats.Store) error {
	g, err := NewMetricGatherer(store)
	if err != nil {
		return err
	}
	mfs, err := g.Gather()
	if err != nil {
		return metricsError("failed to gather metrics: %v", err)
	}

	out := &bytes.Buffer{}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			return metricsError("failed to encode %s: %v", mf.GetName(), err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return metricsError("failed to create textfile: %v", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(out.Bytes()); err != nil {
		tmp.Close()
		return metricsError("failed to write %s: %v", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return metricsError("failed to close %s: %v", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return metricsError("failed to chmod %s: %v", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return metricsError("failed to rename %s: %v", tmp.Name(), err)
	}

	log.Info("wrote %d metric families to %s", len(mfs), path)
	return nil
}

func metricsError(format string, args ...interface{}) error {
	return fmt.Errorf("metrics: "+format, args...)
}
