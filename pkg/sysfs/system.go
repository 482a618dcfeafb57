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

package sysfs

import (
	"path/filepath"
	"sort"
	"strconv"

	logger "github.com/intel/memexp/pkg/log"
	"github.com/intel/memexp/pkg/utils/cpuset"
)

const (
	// DefaultSysRoot is the default mount point of sysfs.
	DefaultSysRoot = "/sys"
	// cpuDir is the directory of CPUs relative to the sysfs root.
	cpuDir = "devices/system/cpu"
)

var log = logger.NewLogger("sysfs")

// System is a view of the CPUs and their caches under a sysfs root.
type System struct {
	root string
}

// NewSystem creates a System for the given sysfs root, DefaultSysRoot if empty.
func NewSystem(root string) *System {
	if root == "" {
		root = DefaultSysRoot
	}
	return &System{root: root}
}

// CacheType specifies a cache type.
type CacheType string

const (
	// DataCache marks data cache.
	DataCache CacheType = "Data"
	// InstructionCache marks instruction cache.
	InstructionCache CacheType = "Instruction"
	// UnifiedCache marks a unified data/instruction cache.
	UnifiedCache CacheType = "Unified"
)

// Cache has details about cache.
type Cache struct {
	Index int           // cache index under the CPU
	Kind  CacheType     // cache type
	Size  uint64        // cache size in bytes
	Level int           // cache level
	CPUs  cpuset.CPUSet // CPUs sharing this cache
}

// OnlineCPUs returns the set of online CPUs.
func (sys *System) OnlineCPUs() (cpuset.CPUSet, error) {
	var cpus cpuset.CPUSet
	if _, err := readSysfsEntry(sys.path(cpuDir), "online", &cpus); err != nil {
		return cpuset.New(), err
	}
	return cpus, nil
}

// Caches returns the caches of the given CPU, sorted by level.
func (sys *System) Caches(cpu int) ([]*Cache, error) {
	cpuPath := sys.path(cpuDir, "cpu"+strconv.Itoa(cpu))
	entries, err := filepath.Glob(filepath.Join(cpuPath, "cache", "index[0-9]*"))
	if err != nil || len(entries) == 0 {
		return nil, sysfsError(cpuPath, "no cache information found")
	}

	caches := []*Cache{}
	for _, entry := range entries {
		c, err := discoverCache(entry)
		if err != nil {
			return nil, err
		}
		caches = append(caches, c)
	}
	sort.Slice(caches, func(i, j int) bool {
		if caches[i].Level != caches[j].Level {
			return caches[i].Level < caches[j].Level
		}
		return caches[i].Index < caches[j].Index
	})

	return caches, nil
}

// L1DataCacheSize returns the size of the level 1 data cache of the given CPU.
func (sys *System) L1DataCacheSize(cpu int) (uint64, error) {
	caches, err := sys.Caches(cpu)
	if err != nil {
		return 0, err
	}
	for _, c := range caches {
		if c.Level == 1 && (c.Kind == DataCache || c.Kind == UnifiedCache) {
			log.Debug("cpu%d: L1 %s cache of %d bytes", cpu, c.Kind, c.Size)
			return c.Size, nil
		}
	}
	return 0, sysfsError(sys.path(cpuDir, "cpu"+strconv.Itoa(cpu)), "no L1 data cache found")
}

// discoverCache reads the cache described in the given cache/index* directory.
func discoverCache(path string) (*Cache, error) {
	c := &Cache{Index: getEnumeratedID(filepath.Base(path))}

	if _, err := readSysfsEntry(path, "level", &c.Level); err != nil {
		return nil, sysfsError(path, "can't read cache level: %v", err)
	}
	kind := ""
	if _, err := readSysfsEntry(path, "type", &kind); err != nil {
		return nil, sysfsError(path, "can't read cache type: %v", err)
	}
	switch CacheType(kind) {
	case DataCache, InstructionCache, UnifiedCache:
		c.Kind = CacheType(kind)
	default:
		return nil, sysfsError(path, "unknown cache type: %s", kind)
	}

	size := ""
	if _, err := readSysfsEntry(path, "size", &size); err != nil {
		return nil, sysfsError(path, "can't read cache size: %v", err)
	}
	bytes, err := parseSize(size)
	if err != nil {
		return nil, sysfsError(path, "can't parse cache size '%s': %v", size, err)
	}
	c.Size = bytes

	// shared_cpu_list is missing on some virtual machines
	c.CPUs = cpuset.New()
	if _, err := readSysfsEntry(path, "shared_cpu_list", &c.CPUs); err != nil {
		log.Debug("%v", err)
	}

	return c, nil
}

func (sys *System) path(elems ...string) string {
	return filepath.Join(append([]string{sys.root}, elems...)...)
}
