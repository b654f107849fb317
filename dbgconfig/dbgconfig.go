// This file is part of dbgcore.
//
// dbgcore is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// dbgcore is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with dbgcore.  If not, see <https://www.gnu.org/licenses/>.

// Package dbgconfig holds the options a Session is opened with. It is a
// plain data package - no flag parsing, no file-path resolution, no
// defaults sourced from the environment. The embedding program (cmd/dbgcore
// or any other front end) is responsible for populating an Options value,
// keeping the core free of CLI/GUI concerns.
package dbgconfig

// Options configures one debugging session.
type Options struct {
	// ExecPath is the path to the ELF executable under test.
	ExecPath string

	// SourceRoot is carried for front ends; no core package reads it. The
	// debuginfo worker prefetches every source path the line tables name,
	// whether or not it lies under SourceRoot, and relative paths are not
	// resolved against it.
	SourceRoot string

	// FixedBias, if non-nil, overrides the load bias that would otherwise
	// be computed from /proc/<pid>/maps at the tracee's initial stop - for
	// targets built without ASLR where the mapping is already known, or
	// for reproducing a session against a core dump rather than a live
	// process.
	FixedBias *uint64

	// Args are the argv the tracee is started with; Args[0] conventionally
	// repeats ExecPath.
	Args []string
}

// Bias resolves the effective load bias to use: the fixed override if one
// was given, otherwise computed.
func (o Options) Bias(computed uint64) uint64 {
	if o.FixedBias != nil {
		return *o.FixedBias
	}
	return computed
}
