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

// Package oserr classifies failed OS calls as fatal or recoverable.
//
// A fatal failure aborts the whole run. A recoverable failure is reported
// and the caller carries on without the data the call would have produced.
package oserr

import (
	"errors"
	"fmt"
)

// Kind tells how the failure of an OS call should be handled.
type Kind int

const (
	// KindFatal failures abort the run.
	KindFatal Kind = iota
	// KindRecoverable failures are reported, then skipped.
	KindRecoverable
)

// Error is a failed OS call.
type Error struct {
	Op   string // the failed operation, e.g. "perf_event_open"
	Err  error  // underlying error, usually a syscall.Errno
	Kind Kind
}

// Fatal returns a fatal error for op, or nil if err is nil.
func Fatal(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err, Kind: KindFatal}
}

// Recoverable returns a recoverable error for op, or nil if err is nil.
func Recoverable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err, Kind: KindRecoverable}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsFatal checks if err, or any error it wraps, is a fatal OS error.
func IsFatal(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindFatal
}

// IsRecoverable checks if err is, or wraps, a recoverable OS error.
func IsRecoverable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindRecoverable
}

// Op returns the operation of the OS error err is or wraps, or "".
func Op(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

func (k Kind) String() string {
	if k == KindRecoverable {
		return "recoverable"
	}
	return "fatal"
}
