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
	"encoding/binary"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	logger "github.com/intel/memexp/pkg/log"
	"github.com/intel/memexp/pkg/oserr"
	"github.com/intel/memexp/pkg/stats"
)

var log = logger.NewLogger("perf")

// state of a Session.
type state int

const (
	stateDisabled state = iota // opened, not counting yet
	stateStopped               // counted once, disabled
	stateRead                  // counters read
	stateClosed
)

// Session is a set of counter groups measuring the calling thread.
type Session struct {
	groups []*group
	names  map[uint64]string // counter id -> event name
	state  state
}

// group is an opened Group.
type group struct {
	Group
	fds []int // fds[0] is the leader
}

// Open opens the given counter groups in disabled state. Counters measure
// the calling thread only, so the caller should be locked to its OS thread.
func Open(groups ...Group) (*Session, error) {
	s := &Session{
		names: make(map[uint64]string),
	}

	for _, g := range groups {
		if len(g.Events) == 0 {
			s.Close()
			return nil, perfError("group %s has no events", g.Name)
		}
		og := &group{Group: g}
		s.groups = append(s.groups, og)

		for i, e := range g.Events {
			leader := -1
			if i > 0 {
				leader = og.fds[0]
			}
			fd, err := sys.open(e.attr(i == 0), leader)
			if err != nil {
				s.Close()
				return nil, errors.Wrapf(oserr.Fatal("perf_event_open", err),
					"failed to open counter %s", e.Name)
			}
			og.fds = append(og.fds, fd)

			id, err := sys.id(fd)
			if err != nil {
				s.Close()
				return nil, errors.Wrapf(oserr.Fatal("ioctl(PERF_EVENT_IOC_ID)", err),
					"failed to get id of counter %s", e.Name)
			}
			s.names[id] = e.Name
			log.Debug("opened counter %s (group %s, fd %d, id %d)", e.Name, g.Name, fd, id)
		}
	}

	return s, nil
}

// Names returns the names of all counted events.
func (s *Session) Names() []string {
	names := []string{}
	for _, g := range s.groups {
		for _, e := range g.Events {
			names = append(names, e.Name)
		}
	}
	return names
}

// Run resets and enables all groups, calls fn once, then disables all groups.
func (s *Session) Run(fn func()) error {
	if s.state != stateDisabled {
		return perfError("counters already used")
	}

	if err := s.ioctl(unix.PERF_EVENT_IOC_RESET, "ioctl(PERF_EVENT_IOC_RESET)"); err != nil {
		return err
	}
	if err := s.ioctl(unix.PERF_EVENT_IOC_ENABLE, "ioctl(PERF_EVENT_IOC_ENABLE)"); err != nil {
		return err
	}

	fn()

	s.state = stateStopped
	return s.ioctl(unix.PERF_EVENT_IOC_DISABLE, "ioctl(PERF_EVENT_IOC_DISABLE)")
}

// ioctl issues the request for the leader of each group, acting on the whole group.
func (s *Session) ioctl(req uint, op string) error {
	for _, g := range s.groups {
		if err := sys.ioctl(g.fds[0], req, unix.PERF_IOC_FLAG_GROUP); err != nil {
			return errors.Wrapf(oserr.Fatal(op, err), "group %s", g.Name)
		}
	}
	return nil
}

// Read reads all counters with a single read per group.
func (s *Session) Read() (stats.Samples, error) {
	switch s.state {
	case stateDisabled:
		return nil, perfError("counters not run yet")
	case stateRead:
		return nil, perfError("counters already read")
	case stateClosed:
		return nil, perfError("session closed")
	}

	samples := stats.Samples{}
	for _, g := range s.groups {
		buf := make([]byte, 8+16*len(g.fds))
		n, err := sys.read(g.fds[0], buf)
		if err != nil {
			return nil, errors.Wrapf(oserr.Fatal("read", err), "group %s", g.Name)
		}
		values, err := decodeGroupRead(buf[:n], s.names)
		if err != nil {
			return nil, errors.Wrapf(err, "group %s", g.Name)
		}
		samples.Merge(values)
	}
	s.state = stateRead

	return samples, nil
}

// Close closes all counters.
func (s *Session) Close() error {
	if s.state == stateClosed {
		return nil
	}
	s.state = stateClosed

	var result *multierror.Error
	for _, g := range s.groups {
		// close siblings before the leader
		for i := len(g.fds) - 1; i >= 0; i-- {
			if err := sys.close(g.fds[i]); err != nil {
				result = multierror.Append(result, oserr.Fatal("close", err))
			}
		}
	}

	return result.ErrorOrNil()
}

// Measure counts the given groups while running fn.
func Measure(fn func(), groups ...Group) (samples stats.Samples, retErr error) {
	s, err := Open(groups...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := s.Close(); err != nil && retErr == nil {
			retErr = err
		}
	}()

	if err := s.Run(fn); err != nil {
		return nil, err
	}
	return s.Read()
}

// decodeGroupRead decodes a PERF_FORMAT_GROUP|PERF_FORMAT_ID read:
//
//	u64 nr; struct { u64 value; u64 id; } values[nr];
func decodeGroupRead(buf []byte, names map[uint64]string) (stats.Samples, error) {
	if len(buf) < 8 {
		return nil, perfError("short read of %d bytes", len(buf))
	}

	nr := binary.NativeEndian.Uint64(buf)
	if uint64(len(buf)-8) < nr*16 {
		return nil, perfError("short read of %d bytes for %d counters", len(buf), nr)
	}

	samples := stats.Samples{}
	for i := uint64(0); i < nr; i++ {
		off := 8 + i*16
		value := binary.NativeEndian.Uint64(buf[off:])
		id := binary.NativeEndian.Uint64(buf[off+8:])
		name, ok := names[id]
		if !ok {
			return nil, perfError("read value for unknown counter id %d", id)
		}
		samples[name] = float64(value)
	}

	return samples, nil
}

// perfError returns a package-specific formatted error.
func perfError(format string, args ...interface{}) error {
	return fmt.Errorf("perf: "+format, args...)
}
