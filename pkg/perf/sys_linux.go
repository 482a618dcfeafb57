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

// syscalls are the OS calls a Session makes.
type syscalls interface {
	open(attr *unix.PerfEventAttr, groupFd int) (int, error)
	id(fd int) (uint64, error)
	ioctl(fd int, req uint, arg int) error
	read(fd int, buf []byte) (int, error)
	close(fd int) error
}

// sys is replaced in tests.
var sys syscalls = linux{}

type linux struct{}

// open opens a counter for the calling thread on any CPU.
func (linux) open(attr *unix.PerfEventAttr, groupFd int) (int, error) {
	return unix.PerfEventOpen(attr, 0, -1, groupFd, unix.PERF_FLAG_FD_CLOEXEC)
}

func (linux) id(fd int) (uint64, error) {
	var id uint64
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(unix.PERF_EVENT_IOC_ID),
		uintptr(unsafe.Pointer(&id)))
	if errno != 0 {
		return 0, errno
	}
	return id, nil
}

func (linux) ioctl(fd int, req uint, arg int) error {
	return unix.IoctlSetInt(fd, req, arg)
}

func (linux) read(fd int, buf []byte) (int, error) {
	return unix.Read(fd, buf)
}

func (linux) close(fd int) error {
	return unix.Close(fd)
}
