// Copyright The NRI Plugins Authors. All Rights Reserved.
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

package cpuset

import (
	"fmt"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
	"k8s.io/utils/cpuset"
)

// CPUSet is an alias for k8s.io/utils/cpuset.CPUSet.
type CPUSet = cpuset.CPUSet

var (
	// New is an alias for cpuset.New.
	New = cpuset.New
)

// Parse parses a Linux CPU list. Unlike cpuset.Parse it rejects an empty list.
func Parse(s string) (CPUSet, error) {
	cset, err := cpuset.Parse(strings.TrimSpace(s))
	if err != nil {
		return New(), fmt.Errorf("invalid CPU list %q: %w", s, err)
	}
	if cset.IsEmpty() {
		return New(), fmt.Errorf("empty CPU list %q", s)
	}
	return cset, nil
}

// MustParse panics if parsing the given cpuset string fails.
func MustParse(s string) CPUSet {
	cset, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return cset
}

// ToUnix converts the set to a unix.CPUSet for sched_setaffinity.
func ToUnix(cset CPUSet) unix.CPUSet {
	var set unix.CPUSet
	set.Zero()
	for _, cpu := range cset.List() {
		set.Set(cpu)
	}
	return set
}

// FromUnix converts a unix.CPUSet as returned by sched_getaffinity.
func FromUnix(set *unix.CPUSet) CPUSet {
	cpus := []int{}
	bits := len(set) * int(unsafe.Sizeof(set[0])) * 8
	for cpu := 0; cpu < bits; cpu++ {
		if set.IsSet(cpu) {
			cpus = append(cpus, cpu)
		}
	}
	return New(cpus...)
}

// ShortCPUSet prints the cpuset as a string, trying to further shorten compared to .String().
func ShortCPUSet(cset CPUSet) string {
	str, sep := "", ""

	beg, end, step := -1, -1, -1
	for _, cpu := range strings.Split(cset.String(), ",") {
		if strings.Contains(cpu, "-") {
			if beg >= 0 {
				str += sep + mkRange(beg, end, step)
				sep = ","
				beg, end, step = -1, -1, -1
			}
			str += sep + cpu
			sep = ","
			continue
		}
		i, err := strconv.ParseInt(cpu, 10, 0)
		if err != nil {
			return cset.String()
		}
		id := int(i)
		if beg < 0 {
			beg, end = id, id
			continue
		}
		if step < 0 {
			end = id
			step = end - beg
			continue
		}
		if id-end == step {
			end = id
			continue
		}
		str += sep + mkRange(beg, end, step)
		sep = ","
		beg, end = id, id
		step = -1
	}

	if beg >= 0 {
		str += sep + mkRange(beg, end, step)
	}

	return str
}

func mkRange(beg, end, step int) string {
	if beg == end {
		return strconv.Itoa(beg)
	}

	b, e := strconv.Itoa(beg), strconv.Itoa(end)
	if step == 1 {
		return b + "-" + e
	}
	if beg+step == end {
		return b + "," + e
	}

	return b + "-" + e + ":" + strconv.Itoa(step)
}
