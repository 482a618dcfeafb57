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
	"flag"
	"sort"
	"strconv"
	"strings"
)

const (
	// DefaultLevel is the default logging severity level.
	DefaultLevel = LevelInfo
	// command-line argument prefix.
	optPrefix = "logger"
	// Flag for enabling/disabling debug logging for sources.
	optDebug = optPrefix + "-debug"
	// Flag for selecting logging level.
	optLevel = optPrefix + "-level"
	// Flag for selecting logging backend.
	optLogger = optPrefix
)

// options configurable via the command line.
type options struct {
	// Level is the logging severity/level.
	Level Level
	// Debug is a map for enabling/disabling debug logging for sources.
	Debug srcmap
	// Logger is the name of the logger backend to use.
	Logger backendName
}

// srcmap tracks debugging settings for sources.
type srcmap map[string]bool

// backendName is a name for a Backend.
type backendName string

// Configuration given on the command line.
var defaults = &options{
	Logger: FmtBackendName,
	Level:  DefaultLevel,
	Debug:  make(srcmap),
}

var levelNames = map[Level]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warning",
	LevelError: "error",
	LevelFatal: "fatal",
	LevelPanic: "panic",
}

// ParseLevel parses the given level name.
func ParseLevel(value string) (Level, error) {
	for level, name := range levelNames {
		if strings.EqualFold(name, value) {
			return level, nil
		}
	}
	if strings.EqualFold(value, "warn") {
		return LevelWarn, nil
	}
	return LevelInfo, loggerError("invalid logging level %s", value)
}

// Set sets the level from the given name.
func (l *Level) Set(value string) error {
	level, err := ParseLevel(value)
	if err != nil {
		return err
	}

	*l = level
	SetLevel(level)

	return nil
}

// String returns the name of the level.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return levelNames[LevelInfo]
}

// Set sets the name of the active Backend.
func (n *backendName) Set(value string) error {
	if err := SetBackend(value); err != nil {
		return err
	}
	*n = backendName(value)
	return nil
}

// String returns the name of the active backend.
func (n backendName) String() string {
	return string(n)
}

// SetDebug parses the given source specification and updates debugging for sources.
func SetDebug(value string) error {
	return defaults.Debug.Set(value)
}

// Set sets entries of srcmap by parsing the given value.
func (m *srcmap) Set(value string) error {
	sm, err := parseSrcmap(value)
	if err != nil {
		return err
	}

	(*m).copy(sm)
	log.updateDebug(sm)

	return nil
}

// parseSrcmap parses a comma-separated [state:]source list.
func parseSrcmap(value string) (srcmap, error) {
	sm := make(srcmap)
	prev, state, src := "", "", ""
	for _, entry := range strings.Split(value, ",") {
		statesrc := strings.Split(entry, ":")
		switch len(statesrc) {
		case 2:
			state, src = statesrc[0], statesrc[1]
		case 1:
			state, src = "", statesrc[0]
		default:
			return nil, loggerError("invalid state spec '%s' in source map", entry)
		}

		if state != "" {
			prev = state
		} else {
			state = prev
			if state == "" {
				state = "on"
			}
		}
		if src == "all" {
			src = "*"
		}

		enabled, err := parseEnabled(state)
		if err != nil {
			return nil, loggerError("invalid state '%s' in source map", state)
		}
		sm[src] = enabled
	}

	return sm, nil
}

// parseEnabled parses an on/off state.
func parseEnabled(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "on", "enable", "enabled":
		return true, nil
	case "off", "disable", "disabled":
		return false, nil
	}
	return strconv.ParseBool(value)
}

// String returns a string representation of the srcmap.
func (m *srcmap) String() string {
	if m == nil {
		return ""
	}

	on, off := []string{}, []string{}
	for src, state := range *m {
		if state {
			on = append(on, src)
		} else {
			off = append(off, src)
		}
	}
	sort.Strings(on)
	sort.Strings(off)

	switch {
	case len(on) == 0 && len(off) == 0:
		return ""
	case len(off) == 0:
		return "on:" + strings.Join(on, ",")
	case len(on) == 0:
		return "off:" + strings.Join(off, ",")
	}
	return "on:" + strings.Join(on, ",") + ",off:" + strings.Join(off, ",")
}

// enabled checks if debugging is enabled for the given source.
func (m srcmap) enabled(source string) bool {
	if state, ok := m[source]; ok {
		return state
	}
	return m["*"]
}

// copy state from another srcmap.
func (m srcmap) copy(o srcmap) {
	for src, state := range o {
		m[src] = state
	}
}

// Register us for command line parsing.
func init() {
	flag.Var(&defaults.Logger, optLogger,
		"logger backend to use (fmt, klog).")
	flag.Var(&defaults.Level, optLevel,
		"lowest severity level to pass through (debug, info, warning, error)")
	flag.Var(&defaults.Debug, optDebug,
		"comma-separated list of source names to enable debug messages for.\n"+
			"Specify '*' or 'all' to enable all sources.\n"+
			"Prefix a source or list with 'off:' to disable, which is also the default state.")
}
