// Copyright 2019 Intel Corporation. All Rights Reserved.
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

// Package version tags built binaries with version metadata.
//
// The metadata is set with the linker, for instance:
//
//	go build -ldflags "-X=github.com/intel/memexp/pkg/version.Version=<version> \
//	    -X=github.com/intel/memexp/pkg/version.Build=<build-id>"
//
// Importing the package registers a -version command line flag.
package version

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// Default values of variables we'll override with the linker.
var (
	// Version is our version as given by 'git describe'.
	Version = "unknown"
	// Build is the SHA1 of the repository we've been built from.
	Build = "unknown"
)

// exit is replaced in tests
var exit = os.Exit

// PrintVersionInfo prints version information about this binary.
func PrintVersionInfo(w io.Writer) {
	fmt.Fprintf(w, "%s version information:\n", filepath.Base(os.Args[0]))
	fmt.Fprintf(w, "  - version: %s\n", Version)
	fmt.Fprintf(w, "  - build:   %s\n", Build)
	fmt.Fprintf(w, "  - go:      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Dummy struct used to hook into flag.Value.Set of -version during commandline parsing.
type version struct {
	w io.Writer
}

// IsBoolFlag tell flag that we only have optional arguments.
func (version) IsBoolFlag() bool {
	return true
}

// Set is our dummy flag.Value setter.
func (v version) Set(value string) error {
	print, err := strconv.ParseBool(value)
	if err != nil {
		return err
	}
	if print {
		PrintVersionInfo(v.w)
		exit(0)
	}

	return nil
}

// String is our dummy flag.Value stringification function.
func (version) String() string {
	return "false"
}

// Put in place a '--version' command line option for us.
func init() {
	flag.Var(version{w: os.Stdout}, "version", "Print version information about "+filepath.Base(os.Args[0]))
}
