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

package workload

// Rand is a xorshift128 pseudo-random number generator.
type Rand struct {
	x, y, z, w uint64
}

// NewRand returns a generator with the fixed seed (1, 4, 7, 13).
func NewRand() *Rand {
	return &Rand{x: 1, y: 4, z: 7, w: 13}
}

// Next returns the next pseudo-random number.
func (r *Rand) Next() uint64 {
	t := r.x
	t ^= t << 11
	t ^= t >> 8
	r.x, r.y, r.z = r.y, r.z, r.w
	r.w ^= r.w >> 19
	r.w ^= t
	return r.w
}
