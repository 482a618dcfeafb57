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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	units "github.com/docker/go-units"

	"github.com/intel/memexp/pkg/utils/cpuset"
)

// Get the trailing enumeration part of a name.
func getEnumeratedID(name string) int {
	id := 0
	base := 1
	for idx := len(name) - 1; idx > 0; idx-- {
		d := name[idx]

		if '0' <= d && d <= '9' {
			id += base * (int(d) - '0')
			base *= 10
		} else {
			if base > 1 {
				return id
			}

			return -1
		}
	}

	return -1
}

// Read content of a sysfs entry and convert it according to the type of a given pointer.
func readSysfsEntry(base, entry string, ptr interface{}) (string, error) {
	path := filepath.Join(base, entry)

	blob, err := os.ReadFile(path)
	if err != nil {
		return "", sysfsError(path, "failed to read sysfs entry: %v", err)
	}
	buf := strings.TrimSpace(string(blob))

	switch v := ptr.(type) {
	case nil:
	case *string:
		*v = buf
	case *int:
		i, err := strconv.ParseInt(buf, 0, 0)
		if err != nil {
			return "", sysfsError(path, "invalid entry '%s': %v", buf, err)
		}
		*v = int(i)
	case *uint64:
		u, err := strconv.ParseUint(buf, 0, 64)
		if err != nil {
			return "", sysfsError(path, "invalid entry '%s': %v", buf, err)
		}
		*v = u
	case *cpuset.CPUSet:
		cset, err := cpuset.Parse(buf)
		if err != nil {
			return "", sysfsError(path, "invalid CPU list '%s': %v", buf, err)
		}
		*v = cset
	default:
		return "", sysfsError(path, "unsupported sysfs entry type %T", ptr)
	}

	return buf, nil
}

// parseSize parses a size with an optional K, M or G binary suffix.
func parseSize(size string) (uint64, error) {
	if size == "" {
		return 0, fmt.Errorf("empty size")
	}
	val, err := units.RAMInBytes(size)
	if err != nil {
		return 0, err
	}
	return uint64(val), nil
}

// sysfsError returns a formatted error for the given sysfs path.
func sysfsError(path, format string, args ...interface{}) error {
	return fmt.Errorf("sysfs "+path+": "+format, args...)
}
