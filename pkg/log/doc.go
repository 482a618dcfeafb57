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

// Package log implements source-keyed, leveled logging with pluggable
// backends.
//
// Every package creates its own logger with a source name, for instance
//
//	var log = logger.NewLogger("perf")
//
// and emits Printf-style messages through it. The lowest severity passed
// through, the active backend, and the set of sources producing debug
// messages can be controlled with the --logger-level, --logger, and
// --logger-debug command line options. Debug sources are given as a comma
// separated list. Prefix a source or a list of sources with 'off:' to turn
// debugging off for them. Use '*' or 'all' to refer to every source:
//
//	--logger-debug on:*,off:memory
package log
