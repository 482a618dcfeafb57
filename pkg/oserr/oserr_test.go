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

package oserr

import (
	"errors"
	"syscall"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestClassification(t *testing.T) {
	tcases := []struct {
		name        string
		err         error
		fatal       bool
		recoverable bool
		op          string
	}{
		{
			name: "nil",
		},
		{
			name:  "fatal",
			err:   Fatal("perf_event_open", syscall.EACCES),
			fatal: true,
			op:    "perf_event_open",
		},
		{
			name:        "recoverable",
			err:         Recoverable("getrusage", syscall.EFAULT),
			recoverable: true,
			op:          "getrusage",
		},
		{
			name:  "wrapped fatal",
			err:   pkgerrors.Wrap(Fatal("mmap", syscall.ENOMEM), "trial 2"),
			fatal: true,
			op:    "mmap",
		},
		{
			name: "plain error",
			err:  errors.New("not an OS error"),
		},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.fatal, IsFatal(tc.err))
			require.Equal(t, tc.recoverable, IsRecoverable(tc.err))
			require.Equal(t, tc.op, Op(tc.err))
		})
	}
}

func TestNilPassthrough(t *testing.T) {
	require.NoError(t, Fatal("read", nil))
	require.NoError(t, Recoverable("getrusage", nil))
}

func TestUnwrap(t *testing.T) {
	err := Fatal("ioctl(PERF_EVENT_IOC_ENABLE)", syscall.EINVAL)
	require.ErrorIs(t, err, syscall.EINVAL)
	require.Equal(t, "ioctl(PERF_EVENT_IOC_ENABLE): "+syscall.EINVAL.Error(), err.Error())
}
