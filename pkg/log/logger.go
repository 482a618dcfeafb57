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
	"fmt"
	"strings"
	"sync"
)

// Level describes the severity of log messages.
type Level int

const (
	// LevelDebug is the severity for debug messages.
	LevelDebug Level = iota
	// LevelInfo is the severity for informational messages.
	LevelInfo
	// LevelWarn is the severity for warnings.
	LevelWarn
	// LevelError is the severity for errors.
	LevelError
	// LevelPanic is the severity for panic messages.
	LevelPanic
	// LevelFatal is the severity for fatal errors.
	LevelFatal
)

// Logger is the interface for producing log messages for/from a particular source.
type Logger interface {
	// Debug formats and emits a debug message.
	Debug(format string, args ...interface{})
	// Info formats and emits an informational message.
	Info(format string, args ...interface{})
	// Warn formats and emits a warning message.
	Warn(format string, args ...interface{})
	// Error formats and emits an error message.
	Error(format string, args ...interface{})

	// DebugBlock formats and emits a multiline debug message.
	DebugBlock(prefix string, format string, args ...interface{})

	// EnableDebug enables debug messages for this Logger.
	EnableDebug(bool) bool
	// DebugEnabled checks if debug messages are enabled for this Logger.
	DebugEnabled() bool

	// Source returns the source name of this Logger.
	Source() string
}

// logging is our runtime logging state.
type logging struct {
	sync.RWMutex
	level    Level                // lowest unsuppressed severity
	active   Backend              // active backend
	backends map[string]BackendFn // registered backends
	loggers  map[string]*logger   // loggers by source
	debug    srcmap               // debug state configured for sources
	align    int                  // longest source name seen
}

// logger implements our Logger.
type logger struct {
	source string
	debug  bool
}

// our runtime state
var log = &logging{
	level:    DefaultLevel,
	backends: make(map[string]BackendFn),
	loggers:  make(map[string]*logger),
	debug:    make(srcmap),
}

// NewLogger creates a logger for the given source, or returns an existing one.
func NewLogger(source string) Logger {
	return log.get(source)
}

// Get is an alias for NewLogger.
func Get(source string) Logger {
	return log.get(source)
}

// SetLevel sets the lowest severity level of messages to pass through.
func SetLevel(level Level) {
	log.Lock()
	defer log.Unlock()
	log.level = level
}

// SetBackend activates the named backend.
func SetBackend(name string) error {
	log.Lock()
	defer log.Unlock()
	return log.setBackend(name)
}

// Flush waits for all messages to get emitted by the active backend.
func Flush() {
	log.RLock()
	active := log.active
	log.RUnlock()
	active.Sync()
}

// get returns the logger for source, creating it if necessary.
func (log *logging) get(source string) *logger {
	source = strings.Trim(source, "[] ")

	log.Lock()
	defer log.Unlock()

	if l, ok := log.loggers[source]; ok {
		return l
	}

	l := &logger{
		source: source,
		debug:  log.debug.enabled(source),
	}
	log.loggers[source] = l
	if len(source) > log.align {
		log.align = len(source)
		if log.active != nil {
			log.active.SetSourceAlignment(log.align)
		}
	}

	return l
}

// setBackend activates the named backend, the caller holding the lock.
func (log *logging) setBackend(name string) error {
	if log.active != nil && log.active.Name() == name {
		return nil
	}

	fn, ok := log.backends[name]
	if !ok {
		return loggerError("unknown logger backend '%s'", name)
	}

	if log.active != nil {
		log.active.Stop()
	}
	log.active = fn()
	log.active.SetSourceAlignment(log.align)

	return nil
}

// updateDebug updates the debug state of all loggers from the given map.
func (log *logging) updateDebug(debug srcmap) {
	log.Lock()
	defer log.Unlock()

	log.debug.copy(debug)
	for source, l := range log.loggers {
		l.debug = log.debug.enabled(source)
	}
}

// EnableDebug enables/disables debug logging for this logger.
func (l *logger) EnableDebug(state bool) bool {
	log.Lock()
	defer log.Unlock()

	old := l.debug
	l.debug = state

	return old
}

// DebugEnabled checks debug logging is enabled for this logger.
func (l *logger) DebugEnabled() bool {
	log.RLock()
	defer log.RUnlock()

	return l.debug
}

// Source returns the source for the given logger.
func (l *logger) Source() string {
	return l.source
}

// Debug logs a debug message.
func (l *logger) Debug(format string, args ...interface{}) {
	level := LevelDebug
	if active, emit := l.config(level); emit {
		active.Log(level, l.source, format, args...)
	}
}

// Info logs a informational message.
func (l *logger) Info(format string, args ...interface{}) {
	level := LevelInfo
	if active, emit := l.config(level); emit {
		active.Log(level, l.source, format, args...)
	}
}

// Warn logs a warning message.
func (l *logger) Warn(format string, args ...interface{}) {
	level := LevelWarn
	if active, emit := l.config(level); emit {
		active.Log(level, l.source, format, args...)
	}
}

// Error logs an error message.
func (l *logger) Error(format string, args ...interface{}) {
	level := LevelError
	if active, emit := l.config(level); emit {
		active.Log(level, l.source, format, args...)
	}
}

// DebugBlock logs a multi-line debug message.
func (l *logger) DebugBlock(prefix string, format string, args ...interface{}) {
	level := LevelDebug
	if active, emit := l.config(level); emit {
		active.Block(level, l.source, prefix, format, args...)
	}
}

// config returns the active backend and whether the level is logged.
func (l *logger) config(level Level) (Backend, bool) {
	log.RLock()
	defer log.RUnlock()

	if level == LevelDebug {
		return log.active, l.debug
	}

	return log.active, level >= log.level
}

// loggerError returns a package-specific formatted error.
func loggerError(format string, args ...interface{}) error {
	return fmt.Errorf("logger: "+format, args...)
}
