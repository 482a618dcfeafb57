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

// Package procmaps reads the memory mappings of a process from /proc/<pid>/maps.
package procmaps

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

// procRoot is the mount point for the proc filesystem
var procRoot = procfs.DefaultMountPoint

// Self refers to the calling process.
const Self = 0

// Region is a single mapping of a process.
type Region struct {
	Start  uint64 // first address
	End    uint64 // first address past the mapping
	Perms  string // e.g. "rw-p"
	Offset uint64 // offset into the mapped file
	Dev    string // major:minor of the mapped file
	Inode  uint64 // inode of the mapped file, 0 if anonymous
	Path   string // mapped file, pseudo-path like [heap], or ""
}

// Size returns the size of the region in bytes.
func (r *Region) Size() uint64 {
	return r.End - r.Start
}

// Contains checks if addr falls inside the region.
func (r *Region) Contains(addr uint64) bool {
	return r.Start <= addr && addr < r.End
}

// Anonymous checks if the region is not backed by a file.
func (r *Region) Anonymous() bool {
	return r.Inode == 0 && (r.Path == "" || strings.HasPrefix(r.Path, "["))
}

// Shared checks if the region is a shared mapping.
func (r *Region) Shared() bool {
	return strings.HasSuffix(r.Perms, "s")
}

func (r *Region) String() string {
	path := r.Path
	if path == "" {
		path = "[anon]"
	}
	return fmt.Sprintf("%x-%x %s %s (%d kB)", r.Start, r.End, r.Perms, path, r.Size()/1024)
}

func mapsPath(pid int) string {
	if pid == Self {
		return filepath.Join(procRoot, "self", "maps")
	}
	return filepath.Join(procRoot, strconv.Itoa(pid), "maps")
}

// Dump copies the maps file of the process verbatim to w.
func Dump(pid int, w io.Writer) error {
	f, err := os.Open(mapsPath(pid))
	if err != nil {
		return errors.Wrap(err, "failed to open memory map")
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return errors.Wrapf(err, "failed to dump %s", mapsPath(pid))
	}
	return nil
}

// Read reads and parses the maps file of the process.
func Read(pid int) ([]Region, error) {
	fs, err := procfs.NewFS(procRoot)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", procRoot)
	}

	var proc procfs.Proc
	if pid == Self {
		proc, err = fs.Self()
	} else {
		proc, err = fs.Proc(pid)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to look up process")
	}

	maps, err := proc.ProcMaps()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", mapsPath(pid))
	}

	regions := make([]Region, 0, len(maps))
	for _, m := range maps {
		r, err := fromProcMap(m)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s", mapsPath(pid))
		}
		regions = append(regions, r)
	}
	return regions, nil
}

func fromProcMap(m *procfs.ProcMap) (Region, error) {
	if m.EndAddr < m.StartAddr {
		return Region{}, fmt.Errorf("invalid address range %x-%x", m.StartAddr, m.EndAddr)
	}
	return Region{
		Start:  uint64(m.StartAddr),
		End:    uint64(m.EndAddr),
		Perms:  perms(m.Perms),
		Offset: uint64(m.Offset),
		Dev:    fmt.Sprintf("%02x:%02x", unix.Major(m.Dev), unix.Minor(m.Dev)),
		Inode:  m.Inode,
		Path:   m.Pathname,
	}, nil
}

// perms formats permissions the way the kernel does, e.g. "rw-p".
func perms(p *procfs.ProcMapPermissions) string {
	if p == nil {
		return "----"
	}
	b := []byte("---p")
	if p.Read {
		b[0] = 'r'
	}
	if p.Write {
		b[1] = 'w'
	}
	if p.Execute {
		b[2] = 'x'
	}
	if p.Shared {
		b[3] = 's'
	}
	return string(b)
}

// Find returns the region containing addr.
func Find(regions []Region, addr uint64) (*Region, bool) {
	for i := range regions {
		if regions[i].Contains(addr) {
			return &regions[i], true
		}
	}
	return nil, false
}

// Table writes the regions as an aligned table.
func Table(w io.Writer, regions []Region) error {
	if _, err := fmt.Fprintf(w, "%-33s %-5s %10s %s\n", "range", "perms", "size (kB)", "path"); err != nil {
		return err
	}
	total := uint64(0)
	for i := range regions {
		r := &regions[i]
		path := r.Path
		if path == "" {
			path = "[anon]"
		}
		if _, err := fmt.Fprintf(w, "%016x-%016x %-5s %10d %s\n", r.Start, r.End, r.Perms, r.Size()/1024, path); err != nil {
			return err
		}
		total += r.Size()
	}
	_, err := fmt.Fprintf(w, "%-33s %-5s %10d %d regions\n", "total", "", total/1024, len(regions))
	return err
}
