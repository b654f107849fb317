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

// Package session is the top-level orchestrator a front end drives: it
// owns the debug-info store and worker, the breakpoint list, and the
// optional live Run, and is the only package that wires all of those
// together.
package session

import (
	"debug/elf"
	"fmt"
	"os"
	"sync"

	"github.com/tracepit/dbgcore/binload"
	"github.com/tracepit/dbgcore/breakpoint"
	"github.com/tracepit/dbgcore/dbgconfig"
	"github.com/tracepit/dbgcore/dbgerr"
	"github.com/tracepit/dbgcore/dbglog"
	"github.com/tracepit/dbgcore/debuginfo"
	"github.com/tracepit/dbgcore/srcfile"
	"github.com/tracepit/dbgcore/stackwalk"
	"github.com/tracepit/dbgcore/tracee"
)

// Session owns one debugging session end to end: opening a binary, tracking
// breakpoints across Runs, and starting/stopping the traced process.
// Mutating operations (AddBreakpoint, StartRun, ...) and Sync, Breakpoints
// and Stack must be called from the goroutine that called Open (the UI
// thread); assertOwner panics on a call from any other goroutine.
type Session struct {
	opts dbgconfig.Options

	breakpoints *breakpoint.List

	store  *debuginfo.Store
	worker *debuginfo.Worker

	textBase  uint64
	run       *tracee.Run
	lastState *tracee.DebugeeState

	sourceFiles map[uint64]*srcfile.SourceFile
	snapshot    *debuginfo.Snapshot

	lastErrMu sync.Mutex
	lastErr   map[string]error

	owner uint64
}

// Open validates opts.ExecPath, reads the page-aligned link-time address
// of its executable PT_LOAD segment (the .text address if it has no such
// segment) as the base for the load bias, and starts the background worker's analysis. It fails outright
// if the path does not exist or is not a regular file (spec.md §4.8).
func Open(opts dbgconfig.Options) (*Session, error) {
	fi, err := os.Stat(opts.ExecPath)
	if err != nil {
		return nil, dbgerr.New(dbgerr.NotFound, "session: open %s: %v", opts.ExecPath, err)
	}
	if fi.IsDir() {
		return nil, dbgerr.New(dbgerr.NotFound, "session: open %s: is a directory", opts.ExecPath)
	}

	bin, err := binload.Open(opts.ExecPath)
	if err != nil {
		return nil, err
	}
	textBase := bin.TextBase()
	for _, p := range bin.File.Progs {
		if p.Type == elf.PT_LOAD && p.Flags&elf.PF_X != 0 {
			textBase = p.Vaddr &^ 0xfff
			break
		}
	}
	bin.Close()

	s := &Session{
		opts:        opts,
		breakpoints: breakpoint.NewList(),
		store:       debuginfo.NewStore(),
		textBase:    textBase,
		sourceFiles: make(map[uint64]*srcfile.SourceFile),
		lastErr:     make(map[string]error),
		owner:       goroutineID(),
	}
	s.worker = debuginfo.NewWorker(s.store)
	s.worker.ReadExec(opts.ExecPath)

	return s, nil
}

// Close stops the background worker and any live Run.
func (s *Session) Close() {
	s.assertOwner()
	if s.run != nil {
		_ = s.run.Kill()
		s.run = nil
	}
	s.worker.Stop()
}

// Sync drains the debug-info store's response channel into in-memory
// caches (source files by hash, latest snapshot) and, if a Run is live,
// polls it once non-blockingly for a new stop event. Call once per UI
// frame.
func (s *Session) Sync() {
	s.assertOwner()

	for _, r := range s.store.Drain() {
		switch r.Kind {
		case debuginfo.RespSrc, debuginfo.RespDebugInfo:
			if r.Src != nil {
				s.sourceFiles[r.Src.ContentHash] = r.Src
			}
		case debuginfo.RespSnapshot:
			s.snapshot = r.Snapshot
		}
	}

	if s.run == nil {
		return
	}
	state, err := s.run.PollState(false)
	if err != nil {
		s.setLastError("tracee", err)
		if dbgerr.Is(err, dbgerr.TraceeDead) {
			s.run = nil
		}
		return
	}
	if state != nil {
		s.lastState = state
	}
}

// Snapshot returns the latest published debug-info snapshot, or nil if
// none has arrived yet.
func (s *Session) Snapshot() *debuginfo.Snapshot { return s.snapshot }

// SourceFile returns the cached source file with the given content hash,
// if it has been loaded.
func (s *Session) SourceFile(hash uint64) (*srcfile.SourceFile, bool) {
	f, ok := s.sourceFiles[hash]
	return f, ok
}

// Breakpoints returns a copy of the current breakpoint list, in insertion
// order.
func (s *Session) Breakpoints() []breakpoint.Breakpoint {
	s.assertOwner()
	all := s.breakpoints.All()
	out := make([]breakpoint.Breakpoint, len(all))
	for i, bp := range all {
		out[i] = *bp
	}
	return out
}

// AddBreakpoint appends a new, enabled breakpoint at addr/line. If a Run
// is live, the patch set is re-synced so it takes effect on the next
// continue.
func (s *Session) AddBreakpoint(addr breakpoint.OfflineAddr, line int) {
	s.assertOwner()
	s.breakpoints.Add(addr, line)
	s.resyncRunBreakpoints()
}

// ToggleBreakpoint flips the Enabled flag of the breakpoint at addr, if
// one exists. Per spec.md §8's persisted-across-runs behavior, the entry
// itself is never removed - only its patch state changes.
func (s *Session) ToggleBreakpoint(addr breakpoint.OfflineAddr) {
	s.assertOwner()
	s.breakpoints.Toggle(addr)
	s.resyncRunBreakpoints()
}

// RemoveBreakpoint deletes the breakpoint at addr entirely.
func (s *Session) RemoveBreakpoint(addr breakpoint.OfflineAddr) {
	s.assertOwner()
	s.breakpoints.Remove(addr)
	s.resyncRunBreakpoints()
}

func (s *Session) resyncRunBreakpoints() {
	if s.run == nil {
		return
	}
	if err := s.run.SyncBreakpoints(s.breakpoints.Enabled()); err != nil {
		s.setLastError("tracee", err)
	}
}

// StartRun spawns the tracee with the current enabled breakpoint set
// installed. Fails if a Run is already live.
func (s *Session) StartRun() error {
	s.assertOwner()
	if s.run != nil {
		return dbgerr.New(dbgerr.InvalidState, "session: start: a run is already live")
	}

	r, err := tracee.Spawn(s.opts.ExecPath, s.argv(), s.textBase, s.breakpoints.Enabled(), s.opts.FixedBias)
	if err != nil {
		s.setLastError("tracee", err)
		return err
	}
	s.run = r
	s.clearLastError("tracee")
	return nil
}

func (s *Session) argv() []string {
	if len(s.opts.Args) > 0 {
		return s.opts.Args
	}
	return []string{s.opts.ExecPath}
}

// StopRun kills the live Run, if any.
func (s *Session) StopRun() error {
	s.assertOwner()
	if s.run == nil {
		return nil
	}
	err := s.run.Kill()
	s.run = nil
	s.lastState = nil
	if err != nil {
		s.setLastError("tracee", err)
	}
	return err
}

// RestartRun stops the current Run, if any, and starts a new one with the
// same breakpoint list.
func (s *Session) RestartRun() error {
	s.assertOwner()
	if err := s.StopRun(); err != nil {
		return err
	}
	return s.StartRun()
}

// ContinueRun resumes a Stopped Run. Returns dbgerr.InvalidState if no Run
// is live or it has not observed a stop yet.
func (s *Session) ContinueRun() error {
	s.assertOwner()
	if s.run == nil {
		return dbgerr.New(dbgerr.InvalidState, "session: continue: no run is live")
	}
	if s.lastState == nil {
		return dbgerr.New(dbgerr.InvalidState, "session: continue: run has not stopped yet")
	}

	if err := s.run.Continue(*s.lastState); err != nil {
		s.setLastError("tracee", err)
		return err
	}
	s.lastState = nil
	s.clearLastError("tracee")
	return nil
}

// Stack returns the reconstructed call stack for the Run's last observed
// stop, or nil if the Run isn't stopped.
func (s *Session) Stack() []stackwalk.StackFrame {
	s.assertOwner()
	if s.run == nil || s.lastState == nil || s.snapshot == nil {
		return nil
	}
	return stackwalk.Walk(s.run, *s.lastState, s.snapshot, s.run.Bias())
}

// LastError returns the most recent error recorded against subsystem, or
// nil if it last succeeded. Only "tracee" errors (spawn, continue, kill,
// poll, breakpoint re-sync) are recorded; DWARF, disassembly and worker
// failures go to dbglog only, so LastError returns nil for those.
func (s *Session) LastError(subsystem string) error {
	s.lastErrMu.Lock()
	defer s.lastErrMu.Unlock()
	return s.lastErr[subsystem]
}

func (s *Session) setLastError(subsystem string, err error) {
	s.lastErrMu.Lock()
	defer s.lastErrMu.Unlock()
	s.lastErr[subsystem] = err
	dbglog.Log(dbglog.Allow, "session", err)
}

func (s *Session) clearLastError(subsystem string) {
	s.lastErrMu.Lock()
	defer s.lastErrMu.Unlock()
	delete(s.lastErr, subsystem)
}

func (s *Session) assertOwner() {
	if id := goroutineID(); id != s.owner {
		panic(fmt.Sprintf("session: called from goroutine %d, owned by %d", id, s.owner))
	}
}
