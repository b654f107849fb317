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

// Package debuginfo owns the debugger's view of a binary's static debug
// info: a Store publishing immutable Snapshot values for the UI thread to
// read lock-free, and a Worker goroutine that does all the reading,
// parsing and disassembling off that thread.
package debuginfo

import (
	"sync/atomic"

	"github.com/tracepit/dbgcore/breakpoint"
	"github.com/tracepit/dbgcore/disasm"
	"github.com/tracepit/dbgcore/dwarfinfo"
	"github.com/tracepit/dbgcore/srcfile"
)

// PerFile is the debug info attributable to a single source file.
type PerFile struct {
	BreakableLocations []breakpoint.BreakableLocation
	Subprograms        []dwarfinfo.Subprogram
}

// Snapshot is the immutable value the UI reads. Once published it is never
// mutated; a new Snapshot always replaces it wholesale.
type Snapshot struct {
	Decompiled     *disasm.DecompiledText
	PerFile        map[uint64]PerFile
	AllSubprograms []dwarfinfo.Subprogram
}

// RespKind discriminates a Response's payload.
type RespKind int

const (
	RespSrc RespKind = iota
	RespDebugInfo
	RespSnapshot
)

// Response is one message published by the Worker. Exactly one of Src or
// Snapshot is meaningful, selected by Kind.
type Response struct {
	Kind     RespKind
	Src      *srcfile.SourceFile
	Snapshot *Snapshot
}

// Store holds the current Snapshot behind a lock-free atomic pointer and
// the Worker's outgoing response channel. Session.Sync drains it once per
// frame.
type Store struct {
	snap atomic.Pointer[Snapshot]
	resp chan Response
}

// NewStore returns a Store with an empty initial snapshot.
func NewStore() *Store {
	s := &Store{resp: make(chan Response, 64)}
	s.snap.Store(&Snapshot{PerFile: map[uint64]PerFile{}})
	return s
}

// Snapshot returns the current snapshot. Safe to call from any thread,
// takes no lock.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Drain performs a non-blocking read of every response currently queued,
// per spec.md §4.7 ("Session drains the channel each frame").
func (s *Store) Drain() []Response {
	var out []Response
	for {
		select {
		case r := <-s.resp:
			out = append(out, r)
		default:
			return out
		}
	}
}

// publish stores a new snapshot and notifies Drain's caller. The send is
// best-effort: the channel is sized generously and publish is never called
// fast enough to fill it within one UI frame, but a full channel must never
// block the worker, so a blocked send is dropped rather than awaited -
// Snapshot() already has the authoritative current value regardless.
func (s *Store) publish(snap *Snapshot) {
	s.snap.Store(snap)
	select {
	case s.resp <- Response{Kind: RespSnapshot, Snapshot: snap}:
	default:
	}
}

func (s *Store) send(r Response) {
	select {
	case s.resp <- r:
	default:
	}
}
