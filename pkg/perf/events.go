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

package perf

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Names of the hardware cache events we count.
const (
	L1DReadAccess  = "l1d_read_access"
	L1DReadMiss    = "l1d_read_miss"
	L1DWriteAccess = "l1d_write_access"
	DTLBReadMiss   = "dtlb_read_miss"
	DTLBWriteMiss  = "dtlb_write_miss"
)

// Event is a generalized hardware cache event.
type Event struct {
	Name   string
	Cache  uint64 // unix.PERF_COUNT_HW_CACHE_*
	Op     uint64 // unix.PERF_COUNT_HW_CACHE_OP_*
	Result uint64 // unix.PERF_COUNT_HW_CACHE_RESULT_*
}

// Config returns the perf_event_attr config encoding of the event.
func (e Event) Config() uint64 {
	return e.Cache | e.Op<<8 | e.Result<<16
}

// Group is a set of events scheduled onto the PMU together. The first
// event is the group leader.
type Group struct {
	Name   string
	Events []Event
}

var (
	// L1D counts level 1 data cache reads, read misses and writes.
	L1D = Group{
		Name: "l1d",
		Events: []Event{
			{L1DReadAccess, unix.PERF_COUNT_HW_CACHE_L1D, unix.PERF_COUNT_HW_CACHE_OP_READ, unix.PERF_COUNT_HW_CACHE_RESULT_ACCESS},
			{L1DReadMiss, unix.PERF_COUNT_HW_CACHE_L1D, unix.PERF_COUNT_HW_CACHE_OP_READ, unix.PERF_COUNT_HW_CACHE_RESULT_MISS},
			{L1DWriteAccess, unix.PERF_COUNT_HW_CACHE_L1D, unix.PERF_COUNT_HW_CACHE_OP_WRITE, unix.PERF_COUNT_HW_CACHE_RESULT_ACCESS},
		},
	}
	// DTLB counts data TLB read and write misses.
	DTLB = Group{
		Name: "dtlb",
		Events: []Event{
			{DTLBReadMiss, unix.PERF_COUNT_HW_CACHE_DTLB, unix.PERF_COUNT_HW_CACHE_OP_READ, unix.PERF_COUNT_HW_CACHE_RESULT_MISS},
			{DTLBWriteMiss, unix.PERF_COUNT_HW_CACHE_DTLB, unix.PERF_COUNT_HW_CACHE_OP_WRITE, unix.PERF_COUNT_HW_CACHE_RESULT_MISS},
		},
	}
)

// DefaultGroups returns the groups counted by default.
func DefaultGroups() []Group {
	return []Group{L1D, DTLB}
}

// attr returns the perf_event_attr for counting the event of the calling thread.
func (e Event) attr(leader bool) *unix.PerfEventAttr {
	attr := &unix.PerfEventAttr{
		Type:        unix.PERF_TYPE_HW_CACHE,
		Size:        uint32(unsafe.Sizeof(unix.PerfEventAttr{})),
		Config:      e.Config(),
		Read_format: unix.PERF_FORMAT_GROUP | unix.PERF_FORMAT_ID,
		Bits:        unix.PerfBitExcludeKernel | unix.PerfBitExcludeHv,
	}
	if leader {
		attr.Bits |= unix.PerfBitDisabled
	}
	return attr
}
