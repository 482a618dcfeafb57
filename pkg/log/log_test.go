// Copyright 2019-2020 Intel Corporation. All Rights Reserved.
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

package log

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// a test Backend that records messages for verification
type testlogger struct {
	sync.Mutex
	recorded []string
}

var testlog = &testlogger{}

const testLoggerName = "testlogger"

func (l *testlogger) Name() string {
	return testLoggerName
}

func (l *testlogger) Log(level Level, source, format string, args ...interface{}) {
	l.record(fmtTags[level] + fmt.Sprintf("["+source+"] "+format, args...))
}

func (l *testlogger) Block(level Level, source, prefix, format string, args ...interface{}) {
	for _, line := range strings.Split(fmt.Sprintf(format, args...), "\n") {
		l.record(fmtTags[level] + "[" + source + "] " + prefix + line)
	}
}

func (l *testlogger) Sync()                  {}
func (l *testlogger) Stop()                  {}
func (l *testlogger) SetSourceAlignment(int) {}

func (l *testlogger) record(msg string) {
	l.Lock()
	defer l.Unlock()
	l.recorded = append(l.recorded, msg)
}

func (l *testlogger) reset() []string {
	l.Lock()
	defer l.Unlock()
	recorded := l.recorded
	l.recorded = nil
	return recorded
}

func setup(t *testing.T) *testlogger {
	require.NoError(t, SetBackend(testLoggerName))
	t.Cleanup(func() {
		require.NoError(t, SetBackend(FmtBackendName))
		SetLevel(DefaultLevel)
	})
	testlog.reset()
	return testlog
}

func init() {
	RegisterBackend(testLoggerName, func() Backend { return testlog })
}

func TestSeverityFiltering(t *testing.T) {
	tl := setup(t)
	test := NewLogger("severity")

	tcases := []struct {
		name      string
		threshold Level
		debug     bool
		expected  []string
	}{
		{
			name:      "info threshold",
			threshold: LevelInfo,
			expected:  []string{"I: [severity] info", "W: [severity] warning", "E: [severity] error"},
		},
		{
			name:      "warning threshold",
			threshold: LevelWarn,
			expected:  []string{"W: [severity] warning", "E: [severity] error"},
		},
		{
			name:      "error threshold with debugging",
			threshold: LevelError,
			debug:     true,
			expected:  []string{"D: [severity] debug", "E: [severity] error"},
		},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			SetLevel(tc.threshold)
			test.EnableDebug(tc.debug)
			test.Debug("debug")
			test.Info("info")
			test.Warn("%s", "warning")
			test.Error("error")
			require.Equal(t, tc.expected, tl.reset())
		})
	}
}

func TestDebugSourceMap(t *testing.T) {
	tl := setup(t)
	a := NewLogger("src-a")
	b := NewLogger("src-b")

	require.NoError(t, SetDebug("on:*,off:src-b"))
	require.True(t, a.DebugEnabled())
	require.False(t, b.DebugEnabled())

	c := NewLogger("src-c")
	require.True(t, c.DebugEnabled(), "late loggers inherit the wildcard state")

	a.Debug("a")
	b.Debug("b")
	require.Equal(t, []string{"D: [src-a] a"}, tl.reset())

	require.NoError(t, SetDebug("off:all"))
	require.False(t, a.DebugEnabled())
	require.False(t, c.DebugEnabled())

	require.Error(t, SetDebug("on:x:y"))
	require.Error(t, SetDebug("maybe:src-a"))
}

func TestBlock(t *testing.T) {
	tl := setup(t)
	test := NewLogger("block")

	test.DebugBlock("  ", "line 1\nline %d", 2)
	require.Empty(t, tl.reset())

	test.EnableDebug(true)
	defer test.EnableDebug(false)
	test.DebugBlock("  ", "line 1\nline %d", 2)
	require.Equal(t, []string{"D: [block]   line 1", "D: [block]   line 2"}, tl.reset())
}

func TestLevelNames(t *testing.T) {
	for level, name := range levelNames {
		parsed, err := ParseLevel(strings.ToUpper(name))
		require.NoError(t, err)
		require.Equal(t, level, parsed)
		require.Equal(t, name, level.String())
	}
	_, err := ParseLevel("verbose")
	require.Error(t, err)
}

func TestUnknownBackend(t *testing.T) {
	require.Error(t, SetBackend("no-such-backend"))
}

func TestFmtBackend(t *testing.T) {
	buf := &bytes.Buffer{}
	f := newFmtBackend(buf)
	f.SetSourceAlignment(6)
	f.Log(LevelWarn, "perf", "counter %s", "missing")
	f.Block(LevelInfo, "perf", "> ", "a\nb")
	require.Equal(t,
		"W: [ perf ] counter missing\n"+
			"I: [ perf ] > a\n"+
			"I: [ perf ] > b\n",
		buf.String())
}
