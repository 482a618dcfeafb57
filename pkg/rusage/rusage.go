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

package rusage

import (
	"fmt"
	"io"

	"golang.org/x/sys/unix"

	"github.com/intel/memexp/pkg/oserr"
	"github.com/intel/memexp/pkg/stats"
)

// Names of the samples produced from a Snapshot.
const (
	UserTime       = "utime"
	SystemTime     = "stime"
	MaxRSS         = "maxrss_kb"
	MinorFaults    = "minflt"
	MajorFaults    = "majflt"
	BlockInput     = "inblock"
	BlockOutput    = "oublock"
	VoluntaryCtx   = "nvcsw"
	InvoluntaryCtx = "nivcsw"
)

// Snapshot is the resource usage of the calling process at one point in time.
type Snapshot struct {
	Utime   unix.Timeval // user CPU time
	Stime   unix.Timeval // system CPU time
	Maxrss  int64        // maximum resident set size, KiB
	Minflt  int64        // page faults serviced without I/O
	Majflt  int64        // page faults serviced with I/O
	Inblock int64        // block input operations
	Oublock int64        // block output operations
	Nvcsw   int64        // voluntary context switches
	Nivcsw  int64        // involuntary context switches
}

// getrusage is replaced in tests.
var getrusage = unix.Getrusage

// Take takes a snapshot of the resource usage of the calling process.
// A failure is recoverable: callers are expected to carry on without it.
func Take() (*Snapshot, error) {
	ru := unix.Rusage{}
	if err := getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return nil, oserr.Recoverable("getrusage", err)
	}
	return &Snapshot{
		Utime:   ru.Utime,
		Stime:   ru.Stime,
		Maxrss:  int64(ru.Maxrss),
		Minflt:  int64(ru.Minflt),
		Majflt:  int64(ru.Majflt),
		Inblock: int64(ru.Inblock),
		Oublock: int64(ru.Oublock),
		Nvcsw:   int64(ru.Nvcsw),
		Nivcsw:  int64(ru.Nivcsw),
	}, nil
}

// Samples returns the snapshot as named samples.
func (s *Snapshot) Samples() stats.Samples {
	return stats.Samples{
		UserTime:       seconds(s.Utime),
		SystemTime:     seconds(s.Stime),
		MaxRSS:         float64(s.Maxrss),
		MinorFaults:    float64(s.Minflt),
		MajorFaults:    float64(s.Majflt),
		BlockInput:     float64(s.Inblock),
		BlockOutput:    float64(s.Oublock),
		VoluntaryCtx:   float64(s.Nvcsw),
		InvoluntaryCtx: float64(s.Nivcsw),
	}
}

// Dump writes the snapshot in a human readable form.
func (s *Snapshot) Dump(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"utime: %d.%06d seconds\n"+
			"stime: %d.%06d seconds\n"+
			"maxrss (KB): %d\n"+
			"minflt: %d\n"+
			"majflt: %d\n"+
			"inblock: %d\n"+
			"outblock: %d\n"+
			"nvcsw: %d\n"+
			"nivcsw: %d\n",
		int64(s.Utime.Sec), int64(s.Utime.Usec),
		int64(s.Stime.Sec), int64(s.Stime.Usec),
		s.Maxrss, s.Minflt, s.Majflt, s.Inblock, s.Oublock, s.Nvcsw, s.Nivcsw)
	return err
}

func seconds(tv unix.Timeval) float64 {
	return float64(tv.Sec) + float64(tv.Usec)/1e6
}
