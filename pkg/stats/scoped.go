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

package stats

import (
	"fmt"
	"io"
	"os"
	"time"
)

// now is the clock used by timers.
var now = time.Now

// Timer measures the wall-clock time of a scope. Use it as
//
//	defer stats.StartTimer("workload", sink).Stop()
type Timer struct {
	name    string
	sink    Sink
	out     io.Writer
	start   time.Time
	stopped bool
}

// StartTimer starts a timer. If sink is nil the elapsed time is printed on Stop.
func StartTimer(name string, sink Sink) *Timer {
	return &Timer{
		name:  name,
		sink:  sink,
		out:   os.Stdout,
		start: now(),
	}
}

// WithOutput sets where an unbound timer prints its result.
func (t *Timer) WithOutput(w io.Writer) *Timer {
	t.out = w
	return t
}

// Stop stops the timer and emits the elapsed seconds exactly once.
func (t *Timer) Stop() float64 {
	if t.stopped {
		return 0
	}
	t.stopped = true

	secs := now().Sub(t.start).Seconds()
	if t.sink != nil {
		t.sink.Add(secs)
	} else {
		fmt.Fprintf(t.out, "Timer %s: %g s\n", t.name, secs)
	}

	return secs
}

// Counter counts events within a scope. Use it as
//
//	c := stats.NewCounter("hits", sink)
//	defer c.Done()
type Counter struct {
	name  string
	sink  Sink
	out   io.Writer
	count uint64
	done  bool
}

// NewCounter creates a counter. If sink is nil the count is printed on Done.
func NewCounter(name string, sink Sink) *Counter {
	return &Counter{
		name: name,
		sink: sink,
		out:  os.Stdout,
	}
}

// WithOutput sets where an unbound counter prints its result.
func (c *Counter) WithOutput(w io.Writer) *Counter {
	c.out = w
	return c
}

// Add counts one event.
func (c *Counter) Add() {
	c.count++
}

// AddIf counts one event if cond is true.
func (c *Counter) AddIf(cond bool) {
	if cond {
		c.count++
	}
}

// Count returns the number of events counted so far.
func (c *Counter) Count() uint64 {
	return c.count
}

// Done emits the count exactly once.
func (c *Counter) Done() {
	if c.done {
		return
	}
	c.done = true

	if c.sink != nil {
		c.sink.Add(float64(c.count))
	} else {
		fmt.Fprintf(c.out, "Counter %s occurred %d times\n", c.name, c.count)
	}
}
