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
	"encoding/json"
	"os"
	"strconv"
	"strings"

	units "github.com/docker/go-units"
	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"github.com/intel/memexp/pkg/memory"
	"github.com/intel/memexp/pkg/report"
	"github.com/intel/memexp/pkg/utils/cpuset"
	"github.com/intel/memexp/pkg/workload"
)

const (
	// DefaultTrials is the default number of trials.
	DefaultTrials = 5
	// DefaultCPUs is the default set of CPUs to pin to.
	DefaultCPUs = "1"
	// DefaultSize is the default buffer size.
	DefaultSize = ByteSize(1 << 30)
)

// Options is the configuration of an experiment. It is built once, before
// the first trial, and never modified afterwards.
type Options struct {
	// Trials is the number of trials to run.
	Trials int `json:"trials"`
	// CPUs is the set of CPUs the experiment is pinned to.
	CPUs string `json:"cpus"`
	// Size is the size of the buffer allocated for each trial.
	Size ByteSize `json:"size"`
	// CacheSize is the amount of memory touched to clear the cache, 0 to discover it.
	CacheSize ByteSize `json:"cacheSize"`
	// Memory selects the allocation strategy.
	Memory memory.Options `json:"memory"`
	// Workload selects the access pattern.
	Workload workload.Options `json:"workload"`
	// Debug dumps resource usage and the buffer mapping of every trial.
	Debug bool `json:"debug"`
	// Output is the format of the summary.
	Output string `json:"output"`
	// MetricsFile is a Prometheus textfile to write the summary to.
	MetricsFile string `json:"metricsFile,omitempty"`
}

// DefaultOptions returns the default configuration.
func DefaultOptions() *Options {
	return &Options{
		Trials: DefaultTrials,
		CPUs:   DefaultCPUs,
		Size:   DefaultSize,
		Memory: memory.Options{
			Path: memory.DefaultPath,
		},
		Workload: workload.Options{
			Iterations: workload.DefaultIterations,
		},
		Output: string(report.FormatText),
	}
}

// LoadFile reads a YAML configuration file on top of the defaults.
// Unknown keys are an error.
func LoadFile(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read configuration")
	}
	o := DefaultOptions()
	if err := yaml.UnmarshalStrict(data, o); err != nil {
		return nil, errors.Wrapf(err, "failed to parse configuration %s", path)
	}
	return o, nil
}

// ParseTokens applies the positional command line arguments. Each argument
// switches on one feature, in any order.
func (o *Options) ParseTokens(args []string) error {
	for _, arg := range args {
		switch strings.ToLower(arg) {
		case "random":
			o.Workload.Random = true
		case "mmap":
			o.Memory.Mmap = true
		case "shared":
			o.Memory.Shared = true
		case "prefault":
			o.Memory.Prefault = true
		case "filebacked":
			o.Memory.FileBacked = true
		case "msync":
			o.Memory.Msync = true
		case "debug":
			o.Debug = true
		default:
			return errors.Errorf("unknown argument %q", arg)
		}
	}
	return nil
}

// Validate checks the configuration.
func (o *Options) Validate() error {
	if o.Trials < 1 {
		return errors.Errorf("invalid number of trials %d", o.Trials)
	}
	if _, err := o.CPUSet(); err != nil {
		return err
	}
	if o.Size > ByteSize(maxInt) {
		return errors.Errorf("buffer size %s too large", o.Size)
	}
	if err := workload.Validate(int(o.Size)); err != nil {
		return err
	}
	if o.CacheSize < 0 || o.CacheSize > ByteSize(maxInt) {
		return errors.Errorf("invalid cache size %s", o.CacheSize)
	}
	if o.Workload.Iterations < 1 {
		return errors.Errorf("invalid number of iterations %d", o.Workload.Iterations)
	}
	if err := o.Memory.Validate(); err != nil {
		return err
	}
	if _, err := report.ParseFormat(o.Output); err != nil {
		return err
	}
	return nil
}

// CPUSet returns the CPUs to pin to.
func (o *Options) CPUSet() (cpuset.CPUSet, error) {
	cpus, err := cpuset.Parse(o.CPUs)
	if err != nil {
		return cpuset.New(), errors.Wrapf(err, "invalid CPU set %q", o.CPUs)
	}
	return cpus, nil
}

// String returns the configuration in YAML.
func (o *Options) String() string {
	data, err := yaml.Marshal(o)
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return string(data)
}

const maxInt = int64(^uint(0) >> 1)

// ByteSize is an amount of memory in bytes. It accepts human readable
// binary sizes like 48K, 1GiB or 512m.
type ByteSize int64

// ParseByteSize parses a human readable binary size.
func ParseByteSize(value string) (ByteSize, error) {
	size, err := units.RAMInBytes(strings.TrimSpace(value))
	if err != nil {
		return 0, errors.Wrapf(err, "invalid size %q", value)
	}
	if size < 0 {
		return 0, errors.Errorf("invalid size %q", value)
	}
	return ByteSize(size), nil
}

// String returns the size in human readable form if that is exact, and
// as a plain number of bytes otherwise.
func (s ByteSize) String() string {
	str := units.BytesSize(float64(s))
	if size, err := units.RAMInBytes(str); err == nil && size == int64(s) {
		return str
	}
	return strconv.FormatInt(int64(s), 10)
}

// Set implements flag.Value.
func (s *ByteSize) Set(value string) error {
	size, err := ParseByteSize(value)
	if err != nil {
		return err
	}
	*s = size
	return nil
}

// MarshalJSON marshals the size as a string.
func (s ByteSize) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts a number of bytes or a human readable string.
func (s *ByteSize) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*s = ByteSize(n)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return errors.Errorf("invalid size %s", string(data))
	}
	return s.Set(str)
}
