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

// Package stackwalk reconstructs a call stack by walking the x86-64 SysV
// frame-pointer chain, one ptrace peek at a time. It never talks to the
// kernel directly - it only needs enough memory access to read [rbp] and
// [rbp+8], expressed as the same ptraceMemory shape patch already uses.
package stackwalk

import (
	"github.com/tracepit/dbgcore/breakpoint"
	"github.com/tracepit/dbgcore/debuginfo"
	"github.com/tracepit/dbgcore/dwarfinfo"
)

// numColors is the size of the cosmetic per-depth color cycle a front end
// can map onto its own palette.
const numColors = 8

// ptraceMemory is the read side of patch.ptraceMemory, restated here so
// stackwalk doesn't import patch for a single method.
type ptraceMemory interface {
	PeekData(addr breakpoint.RuntimeAddr) (uint64, error)
}

// registers is the sliver of DebugeeState the walker needs, restated as an
// interface so stackwalk does not import tracee and tests can supply a
// bare struct.
type registers interface {
	Rip() breakpoint.RuntimeAddr
	Rbp() breakpoint.RuntimeAddr
}

// StackFrame is one reconstructed frame, oldest-to-newest after Walk
// reverses its internal accumulation order.
type StackFrame struct {
	Subprogram dwarfinfo.Subprogram
	CallAddr   breakpoint.OfflineAddr
	Location   *breakpoint.BreakableLocation
	FileHash   uint64
	HasFile    bool
	ColorIndex int
}

// Walk reconstructs the call stack visible from state, per spec.md §4.6:
// starting at rbp, it follows the frame-pointer chain until rbp is zero or
// a peek fails (the tracee died mid-walk), returning whatever frames were
// recovered before that point.
func Walk(mem ptraceMemory, state registers, snap *debuginfo.Snapshot, bias uint64) []StackFrame {
	var frames []StackFrame

	fb := state.Rbp()
	ret := breakpoint.RuntimeAddr(uint64(state.Rip()) - 1).ToOffline(bias)
	innermost := true

	for fb != 0 {
		callAddr := ret
		if !innermost && snap.Decompiled != nil {
			if addr, ok := snap.Decompiled.LastBefore(ret); ok {
				callAddr = addr
			}
		}

		sub, ok := findSubprogram(snap.AllSubprograms, ret, callAddr)
		if !ok {
			break
		}

		loc, fileHash, hasLoc := resolveLocation(snap.PerFile, callAddr, ret)

		frame := StackFrame{
			Subprogram: sub,
			CallAddr:   callAddr,
		}
		if hasLoc {
			frame.Location = &loc
			frame.FileHash = fileHash
			frame.HasFile = true
		}
		frames = append(frames, frame)

		savedRBP, err := mem.PeekData(fb)
		if err != nil {
			break
		}
		retWord, err := mem.PeekData(fb + 8)
		if err != nil {
			break
		}

		ret = breakpoint.RuntimeAddr(retWord).ToOffline(bias)
		fb = breakpoint.RuntimeAddr(savedRBP)
		innermost = false
	}

	reverse(frames)
	for i := range frames {
		frames[i].ColorIndex = i % numColors
	}
	return frames
}

// findSubprogram returns the unique subprogram whose [lowAddr, highAddr]
// range contains both ret and callAddr.
func findSubprogram(subs []dwarfinfo.Subprogram, ret, callAddr breakpoint.OfflineAddr) (dwarfinfo.Subprogram, bool) {
	for _, s := range subs {
		if s.LowAddr <= ret && ret <= s.HighAddr && s.LowAddr <= callAddr && callAddr <= s.HighAddr {
			return s, true
		}
	}
	return dwarfinfo.Subprogram{}, false
}

// resolveLocation searches every file's breakable locations for one at
// callAddr, falling back to ret if none matches.
func resolveLocation(perFile map[uint64]debuginfo.PerFile, callAddr, ret breakpoint.OfflineAddr) (breakpoint.BreakableLocation, uint64, bool) {
	if loc, hash, ok := findLocation(perFile, callAddr); ok {
		return loc, hash, true
	}
	return findLocation(perFile, ret)
}

func findLocation(perFile map[uint64]debuginfo.PerFile, addr breakpoint.OfflineAddr) (breakpoint.BreakableLocation, uint64, bool) {
	for hash, pf := range perFile {
		for _, loc := range pf.BreakableLocations {
			if loc.Addr == addr {
				return loc, hash, true
			}
		}
	}
	return breakpoint.BreakableLocation{}, 0, false
}

func reverse(frames []StackFrame) {
	for i, j := 0, len(frames)-1; i < j; i, j = i+1, j-1 {
		frames[i], frames[j] = frames[j], frames[i]
	}
}
