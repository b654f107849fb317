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

// Package tracee controls one traced child process: spawning it under
// ptrace, tracking its state machine, and running the dedicated event-pump
// goroutine that blocks on wait(2) between stops. The initial exec stop
// (in Spawn) and the single-step of a breakpoint step-over (in Continue)
// are waited for on the caller's goroutine, while the pump is not waiting.
package tracee

import (
	"encoding/binary"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/tracepit/dbgcore/breakpoint"
	"github.com/tracepit/dbgcore/dbgconfig"
	"github.com/tracepit/dbgcore/dbgerr"
	"github.com/tracepit/dbgcore/patch"
)

// State is one state in the Run state machine of spec.md §4.4.
type State int

const (
	Spawning State = iota
	InitialStop
	Running
	Stopped
	Exited
	Killed
)

func (s State) String() string {
	switch s {
	case Spawning:
		return "Spawning"
	case InitialStop:
		return "InitialStop"
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	case Exited:
		return "Exited"
	case Killed:
		return "Killed"
	default:
		return "Unknown"
	}
}

// DebugeeState is a snapshot of the tracee's registers at the moment it
// last stopped.
type DebugeeState struct {
	Regs unix.PtraceRegs
}

// Rip/Rbp/Rsp as RuntimeAddr, for stackwalk and the patcher's step-over
// check to use without reaching into the raw register struct.
func (s DebugeeState) Rip() breakpoint.RuntimeAddr { return breakpoint.RuntimeAddr(s.Regs.Rip) }
func (s DebugeeState) Rbp() breakpoint.RuntimeAddr { return breakpoint.RuntimeAddr(s.Regs.Rbp) }
func (s DebugeeState) Rsp() breakpoint.RuntimeAddr { return breakpoint.RuntimeAddr(s.Regs.Rsp) }

type eventKind int

const (
	evStopped eventKind = iota
	evExited
)

type event struct {
	kind  eventKind
	state DebugeeState
}

// Run is one traced child process plus its patcher and event pump,
// exactly the §4.4/§4.5/§4.8 component split: Run owns its Patcher and
// the pump handle; Session owns the Run.
type Run struct {
	sys ptraceSyscalls

	mu    sync.Mutex
	pid   int
	state State
	bias  uint64

	patcher *patch.Patcher

	events chan event
	resume chan struct{}
	die    chan struct{}
}

// Spawn forks path (with argv), traces it to its initial exec stop,
// resolves the load bias against textBase, installs the given offline
// breakpoint addresses, and starts it running. The bias is the value
// computed from /proc/<pid>/maps unless fixedBias overrides it (see
// dbgconfig.Options.Bias) - for non-ASLR targets where the mapping is
// already known. It returns a Run in the Running state, or an error with
// the Run left in Exited if the child failed to start.
func Spawn(path string, argv []string, textBase uint64, enabled []breakpoint.OfflineAddr, fixedBias *uint64) (*Run, error) {
	return spawn(unixSyscalls{}, path, argv, textBase, enabled, fixedBias)
}

func spawn(sys ptraceSyscalls, path string, argv []string, textBase uint64, enabled []breakpoint.OfflineAddr, fixedBias *uint64) (*Run, error) {
	r := &Run{
		sys:    sys,
		state:  Spawning,
		events: make(chan event, 1),
		resume: make(chan struct{}),
		die:    make(chan struct{}),
	}

	pid, err := sys.ForkExec(path, argv)
	if err != nil {
		r.state = Exited
		return r, dbgerr.New(dbgerr.ChildFailed, "tracee: forkexec: %v", err)
	}
	r.pid = pid

	ws, err := sys.Wait4(pid)
	if err != nil {
		r.state = Exited
		return r, dbgerr.New(dbgerr.ChildFailed, "tracee: initial wait: %v", err)
	}
	if !ws.Stopped() || ws.StopSignal() != unix.SIGTRAP {
		r.state = Exited
		return r, dbgerr.New(dbgerr.ChildFailed, "tracee: initial stop was not SIGTRAP")
	}
	r.state = InitialStop

	computed, err := computeBiasFunc(pid, textBase)
	if err != nil {
		r.state = Exited
		return r, err
	}
	bias := dbgconfig.Options{FixedBias: fixedBias}.Bias(computed)
	r.bias = bias

	r.patcher = patch.NewPatcher(r)
	runtimeAddrs := make([]breakpoint.RuntimeAddr, len(enabled))
	for i, a := range enabled {
		runtimeAddrs[i] = a.ToRuntime(bias)
	}
	if err := r.patcher.Inject(runtimeAddrs); err != nil {
		r.state = Exited
		return r, err
	}

	if err := sys.Cont(pid, 0); err != nil {
		r.state = Exited
		return r, dbgerr.New(dbgerr.PtraceFailed, "tracee: initial continue: %v", err)
	}
	r.state = Running

	go r.pump()

	return r, nil
}

// PID returns the traced process's process ID.
func (r *Run) PID() int { return r.pid }

// Bias returns the computed runtime-offline address bias.
func (r *Run) Bias() uint64 { return r.bias }

// State returns the controller's current state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// PollState implements spec.md §4.4's publishing discipline: non-blocking
// mode returns (nil, nil) if no new event is available; blocking mode
// waits for one. Each call consumes exactly one event.
func (r *Run) PollState(blocking bool) (*DebugeeState, error) {
	var ev event
	if blocking {
		ev = <-r.events
	} else {
		select {
		case ev = <-r.events:
		default:
			return nil, nil
		}
	}

	switch ev.kind {
	case evExited:
		r.mu.Lock()
		r.state = Exited
		r.mu.Unlock()
		return nil, dbgerr.New(dbgerr.TraceeDead, "tracee: exited")
	default:
		r.mu.Lock()
		r.state = Stopped
		r.mu.Unlock()
		return &ev.state, nil
	}
}

// Continue resumes a Stopped tracee. If the stop landed just past an
// active breakpoint's trap byte, it steps over that breakpoint first
// (spec.md §4.4 "Stopped -> Running").
func (r *Run) Continue(state DebugeeState) error {
	rip := state.Rip()
	trapAddr := rip - 1
	if r.patcher.IsActive(trapAddr) {
		if err := patch.StepOver(r, r.patcher, trapAddr, rip); err != nil {
			return err
		}
	}

	if err := r.sys.Cont(r.pid, 0); err != nil {
		return dbgerr.New(dbgerr.PtraceFailed, "tracee: continue: %v", err)
	}

	r.mu.Lock()
	r.state = Running
	r.mu.Unlock()

	select {
	case r.resume <- struct{}{}:
	case <-r.die:
	}
	return nil
}

// SyncBreakpoints reconciles the live patch set to exactly the given
// offline addresses, translating each to a runtime address first. Safe to
// call any time the tracee is stopped - typically right before Continue,
// so a breakpoint added or toggled mid-run takes effect on the next stop.
func (r *Run) SyncBreakpoints(enabled []breakpoint.OfflineAddr) error {
	runtimeAddrs := make([]breakpoint.RuntimeAddr, len(enabled))
	for i, a := range enabled {
		runtimeAddrs[i] = a.ToRuntime(r.bias)
	}
	return r.patcher.Sync(runtimeAddrs)
}

// Kill terminates the tracee and wakes the pump so it exits. Idempotent.
func (r *Run) Kill() error {
	r.mu.Lock()
	if r.state == Killed {
		r.mu.Unlock()
		return nil
	}
	r.state = Killed
	r.mu.Unlock()

	select {
	case <-r.die:
	default:
		close(r.die)
	}
	return r.sys.Kill(r.pid)
}

// PeekData/PokeData/SetRIP/SingleStepAndWait satisfy patch's ptraceMemory
// and singleStepper interfaces so a Patcher can operate directly over a
// Run without patch importing tracee.

func (r *Run) PeekData(addr breakpoint.RuntimeAddr) (uint64, error) {
	var buf [8]byte
	if _, err := r.sys.PeekData(r.pid, uintptr(addr), buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (r *Run) PokeData(addr breakpoint.RuntimeAddr, word uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], word)
	_, err := r.sys.PokeData(r.pid, uintptr(addr), buf[:])
	return err
}

func (r *Run) SetRIP(addr breakpoint.RuntimeAddr) error {
	regs, err := r.sys.GetRegs(r.pid)
	if err != nil {
		return err
	}
	regs.Rip = uint64(addr)
	return r.sys.SetRegs(r.pid, &regs)
}

func (r *Run) SingleStepAndWait() error {
	if err := r.sys.SingleStep(r.pid); err != nil {
		return err
	}
	_, err := r.sys.Wait4(r.pid)
	return err
}
