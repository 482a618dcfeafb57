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

package memory

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"unsafe"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	logger "github.com/intel/memexp/pkg/log"
	"github.com/intel/memexp/pkg/oserr"
)

var log = logger.NewLogger("memory")

// msync is replaced in tests.
var msync = unix.Msync

const (
	// DefaultPath is the default backing file of file-backed mappings.
	DefaultPath = "sample.txt"
	// Sentinel is the byte a mapping is filled with before msync.
	Sentinel = 'x'
)

// Options select how a buffer is allocated.
type Options struct {
	Mmap       bool   `json:"mmap"`       // mmap instead of allocating from the Go heap
	Shared     bool   `json:"shared"`     // MAP_SHARED instead of MAP_PRIVATE
	Prefault   bool   `json:"prefault"`   // MAP_POPULATE
	FileBacked bool   `json:"filebacked"` // map Path instead of anonymous memory
	Msync      bool   `json:"msync"`      // fill and msync a file-backed mapping
	Path       string `json:"path,omitempty"`
}

// Validate checks that the options can be combined.
func (o *Options) Validate() error {
	if o.Mmap {
		return nil
	}
	var modifiers []string
	for name, set := range map[string]bool{
		"shared":     o.Shared,
		"prefault":   o.Prefault,
		"filebacked": o.FileBacked,
		"msync":      o.Msync,
	} {
		if set {
			modifiers = append(modifiers, name)
		}
	}
	if len(modifiers) > 0 {
		sort.Strings(modifiers)
		return memoryError("%s requires mmap", strings.Join(modifiers, ", "))
	}
	return nil
}

// Kind describes the allocation strategy.
func (o *Options) Kind() string {
	if !o.Mmap {
		return "heap"
	}
	kind := []string{"mmap"}
	if o.FileBacked {
		kind = append(kind, "file")
	} else {
		kind = append(kind, "anon")
	}
	if o.shared() {
		kind = append(kind, "shared")
	} else {
		kind = append(kind, "private")
	}
	if o.Prefault {
		kind = append(kind, "prefault")
	}
	if o.FileBacked && o.Msync {
		kind = append(kind, "msync")
	}
	return strings.Join(kind, " ")
}

// shared checks if the mapping should be shared. An msync'ed file-backed
// mapping is always shared, otherwise the flush would not reach the file.
func (o *Options) shared() bool {
	return o.Shared || (o.FileBacked && o.Msync)
}

func (o *Options) path() string {
	if o.Path == "" {
		return DefaultPath
	}
	return o.Path
}

// Buffer is an allocated memory buffer.
type Buffer struct {
	data   []byte
	opts   Options
	file   *os.File
	mapped bool
}

// Allocate allocates a buffer of size bytes. Failures are fatal.
func Allocate(size int, opts Options) (*Buffer, error) {
	if size <= 0 {
		return nil, memoryError("invalid buffer size %d", size)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	b := &Buffer{opts: opts}
	if !opts.Mmap {
		b.data = make([]byte, size)
		log.Debug("allocated %d bytes from the heap", size)
		return b, nil
	}

	if opts.Msync && !opts.FileBacked {
		log.Warn("msync has no effect on an anonymous mapping, ignoring it")
	}

	prot := unix.PROT_READ | unix.PROT_WRITE
	flags := unix.MAP_PRIVATE
	if opts.shared() {
		flags = unix.MAP_SHARED
	}
	if opts.Prefault {
		flags |= unix.MAP_POPULATE
	}

	fd := -1
	if opts.FileBacked {
		f, err := os.OpenFile(opts.path(), os.O_RDWR|os.O_CREATE, 0644)
		if err != nil {
			return nil, errors.Wrap(oserr.Fatal("open", err), "backing file")
		}
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			return nil, errors.Wrapf(oserr.Fatal("ftruncate", err), "backing file %s", opts.path())
		}
		b.file = f
		fd = int(f.Fd())
	} else {
		flags |= unix.MAP_ANONYMOUS
	}

	data, err := unix.Mmap(fd, 0, size, prot, flags)
	if err != nil {
		if b.file != nil {
			b.file.Close()
		}
		return nil, errors.Wrapf(oserr.Fatal("mmap", err), "%s mapping of %d bytes", opts.Kind(), size)
	}
	b.data = data
	b.mapped = true
	log.Debug("mapped %d bytes (%s) at %#x", size, opts.Kind(), b.Addr())

	if opts.FileBacked && opts.Msync {
		if err := b.flush(); err != nil {
			b.Release()
			return nil, err
		}
	}

	return b, nil
}

// flush fills the mapping with Sentinel and synchronously writes it back.
func (b *Buffer) flush() error {
	for i := range b.data {
		b.data[i] = Sentinel
	}
	if err := msync(b.data, unix.MS_SYNC); err != nil {
		return errors.Wrapf(oserr.Fatal("msync", err), "backing file %s", b.opts.path())
	}
	log.Debug("flushed %d bytes to %s", len(b.data), b.opts.path())
	return nil
}

// Bytes returns the memory of the buffer.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the size of the buffer.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Addr returns the address of the first byte of the buffer.
func (b *Buffer) Addr() uintptr {
	if len(b.data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b.data[0]))
}

// Kind describes how the buffer was allocated.
func (b *Buffer) Kind() string {
	return b.opts.Kind()
}

// Release releases the buffer. It is safe to call more than once.
func (b *Buffer) Release() error {
	var result *multierror.Error

	if b.mapped {
		if err := unix.Munmap(b.data); err != nil {
			result = multierror.Append(result, oserr.Fatal("munmap", err))
		}
		b.mapped = false
	}
	if b.file != nil {
		if err := b.file.Close(); err != nil {
			result = multierror.Append(result, oserr.Fatal("close", err))
		}
		b.file = nil
	}
	b.data = nil

	return result.ErrorOrNil()
}

// memoryError returns a package-specific formatted error.
func memoryError(format string, args ...interface{}) error {
	return fmt.Errorf("memory: "+format, args...)
}
