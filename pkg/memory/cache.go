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

package memory

const (
	// CacheLineSize is the assumed size of a CPU cache line.
	CacheLineSize = 64
	// DefaultCacheSize is the amount of memory ClearCache touches when the
	// L1 data cache size is unknown.
	DefaultCacheSize = 48 * 1024
)

// sink keeps the reads of ClearCache from being optimized away.
var sink byte

// ClearCache evicts the previous contents of a data cache of the given
// size by reading and writing a fresh buffer one cache line at a time.
func ClearCache(size int) int {
	if size <= 0 {
		size = DefaultCacheSize
	}
	buf := make([]byte, size)
	lines := 0
	for i := 0; i < len(buf); i += CacheLineSize {
		sink ^= buf[i]
		buf[i] = Sentinel
		lines++
	}
	return lines
}
