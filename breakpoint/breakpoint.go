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

// Package breakpoint holds the address types and the Breakpoint/
// BreakableLocation value types shared by session, debuginfo, patch and
// tracee. It exists purely to avoid an import cycle between those
// packages: session owns the breakpoint list, debuginfo produces the
// locations a breakpoint may be set at, and patch/tracee consume the
// addresses.
package breakpoint

import "fmt"

// OfflineAddr names a location in the binary the way the DWARF tables
// describe it - the link-time address. It is a distinct type from
// RuntimeAddr so the compiler catches accidental mixing of the two; the
// original Rust implementation this core is modeled on used a single
// untyped u64 for both and relied on the programmer to track which one
// they had at any given call site.
type OfflineAddr uint64

// RuntimeAddr names a location in the live tracee's address space.
// RuntimeAddr = OfflineAddr + the tracee's load bias.
type RuntimeAddr uint64

func (a OfflineAddr) String() string { return fmt.Sprintf("%#016x", uint64(a)) }
func (a RuntimeAddr) String() string { return fmt.Sprintf("%#016x", uint64(a)) }

// ToRuntime translates an offline address to a runtime address given a
// load bias.
func (a OfflineAddr) ToRuntime(bias uint64) RuntimeAddr {
	return RuntimeAddr(uint64(a) + bias)
}

// ToOffline translates a runtime address to an offline address given a
// load bias.
func (a RuntimeAddr) ToOffline(bias uint64) OfflineAddr {
	return OfflineAddr(uint64(a) - bias)
}

// BreakableLocation is one row of the DWARF line program that is not an
// end_sequence marker - a location a breakpoint could be installed at.
type BreakableLocation struct {
	Addr   OfflineAddr
	Line   int
	Column int
}

// Breakpoint is a user-requested breakpoint. Identity is by Addr; it
// survives across Runs and is only destroyed when the user removes it.
type Breakpoint struct {
	Addr    OfflineAddr
	Line    int
	Enabled bool
}
