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
	"github.com/intel/memexp/pkg/memory"
	"github.com/intel/memexp/pkg/sysfs"
	"github.com/intel/memexp/pkg/utils/cpuset"
)

// ResolveCacheSize fills in the cache size, if it is not set, with the
// largest L1 data cache among the pinned CPUs. If none can be found it
// falls back to memory.DefaultCacheSize.
func (o *Options) ResolveCacheSize(sys *sysfs.System, cpus cpuset.CPUSet) {
	if o.CacheSize > 0 {
		return
	}

	size := uint64(0)
	for _, cpu := range cpus.List() {
		l1d, err := sys.L1DataCacheSize(cpu)
		if err != nil {
			log.Debug("cpu%d: %v", cpu, err)
			continue
		}
		if l1d > size {
			size = l1d
		}
	}

	if size == 0 || size > uint64(maxInt) {
		log.Warn("failed to discover L1 data cache size, using %s", ByteSize(memory.DefaultCacheSize))
		o.CacheSize = memory.DefaultCacheSize
		return
	}

	o.CacheSize = ByteSize(size)
	log.Info("using L1 data cache size %s", o.CacheSize)
}
