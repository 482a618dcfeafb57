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

package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/intel/memexp/pkg/stats"
)

func testStore() *stats.Store {
	store := stats.NewStore()
	store.Add(stats.Samples{"l1d_read_miss": 100, "wall_seconds": 0.5})
	store.Add(stats.Samples{"l1d_read_miss": 300, "wall_seconds": 0.5})
	store.Add(stats.Samples{"l1d_read_miss": 200, "wall_seconds": 0.5, "late": 1})
	return store
}

// gauges returns the gauge values of the named family keyed by the metric label.
func gauges(t *testing.T, mfs []*dto.MetricFamily, family string) map[string]float64 {
	t.Helper()
	for _, mf := range mfs {
		if mf.GetName() != family {
			continue
		}
		require.Equal(t, dto.MetricType_GAUGE, mf.GetType())
		values := map[string]float64{}
		for _, m := range mf.GetMetric() {
			key := ""
			for _, l := range m.GetLabel() {
				if l.GetName() == "metric" {
					key = l.GetValue()
				}
			}
			values[key] = m.GetGauge().GetValue()
		}
		return values
	}
	return nil
}

func TestCollector(t *testing.T) {
	g, err := NewMetricGatherer(testStore())
	require.NoError(t, err)

	mfs, err := g.Gather()
	require.NoError(t, err)

	require.Equal(t, map[string]float64{"": 3}, gauges(t, mfs, "memexp_trials"))
	require.Equal(t,
		map[string]float64{"l1d_read_miss": 200, "wall_seconds": 0.5, "late": 1},
		gauges(t, mfs, "memexp_metric_mean"))
	require.Equal(t,
		map[string]float64{"l1d_read_miss": 100, "wall_seconds": 0},
		gauges(t, mfs, "memexp_metric_stddev"))
	require.Equal(t,
		map[string]float64{"l1d_read_miss": 3, "wall_seconds": 3, "late": 1},
		gauges(t, mfs, "memexp_metric_samples"))
}

func TestEmptyStore(t *testing.T) {
	g, err := NewMetricGatherer(stats.NewStore())
	require.NoError(t, err)

	mfs, err := g.Gather()
	require.NoError(t, err)
	require.Len(t, mfs, 1)
	require.Equal(t, "memexp_trials", mfs[0].GetName())
}

func TestWriteTextfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memexp.prom")

	require.NoError(t, WriteTextfile(path, testStore()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	require.Contains(t, text, "# TYPE memexp_metric_mean gauge")
	require.Contains(t, text, `memexp_metric_mean{metric="l1d_read_miss"} 200`)
	require.Contains(t, text, `memexp_metric_samples{metric="late"} 1`)
	require.Contains(t, text, "memexp_trials 3")
	require.False(t, strings.Contains(text, `memexp_metric_stddev{metric="late"}`))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary file left behind")

	require.Error(t, WriteTextfile(filepath.Join(dir, "missing", "memexp.prom"), testStore()))
}
