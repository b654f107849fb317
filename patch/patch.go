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

// Package patch installs and removes INT3 software breakpoints in a
// tracee's memory. It depends only on a small ptrace-peek/poke interface,
// not on the tracee package itself, so tracee can depend on patch without
// an import cycle.
package patch

import (
	"github.com/tracepit/dbgcore/breakpoint"
	"github.com/tracepit/dbgcore/dbgerr"
)

const int3 = 0xCC

// ptraceMemory is the sliver of ptrace functionality a Patcher needs.
// *tracee.Run satisfies this.
type ptraceMemory interface {
	PeekData(addr breakpoint.RuntimeAddr) (uint64, error)
	PokeData(addr breakpoint.RuntimeAddr, word uint64) error
}

// activePatch records what a Patcher overwrote so it can be restored.
type activePatch struct {
	originalByte byte
	active       bool
}

// Patcher installs and removes software breakpoints over a tracee's
// memory, per spec.md §4.3.
type Patcher struct {
	mem     ptraceMemory
	patches map[breakpoint.RuntimeAddr]*activePatch
}

// NewPatcher returns a Patcher operating over mem.
func NewPatcher(mem ptraceMemory) *Patcher {
	return &Patcher{mem: mem, patches: make(map[breakpoint.RuntimeAddr]*activePatch)}
}

// Inject installs a 0xCC at each address, saving the original byte.
func (p *Patcher) Inject(addrs []breakpoint.RuntimeAddr) error {
	for _, addr := range addrs {
		word, err := p.mem.PeekData(addr)
		if err != nil {
			return dbgerr.New(dbgerr.PtraceFailed, "patch: inject %s: %v", addr, err)
		}
		original := byte(word)
		if err := p.mem.PokeData(addr, (word &^ 0xff)|int3); err != nil {
			return dbgerr.New(dbgerr.PtraceFailed, "patch: inject %s: %v", addr, err)
		}
		p.patches[addr] = &activePatch{originalByte: original, active: true}
	}
	return nil
}

// Disable restores the original byte at each active patch and marks it
// inactive. A patch that is already inactive, or was never injected, is
// left untouched - Disable is idempotent.
func (p *Patcher) Disable(addrs []breakpoint.RuntimeAddr) error {
	for _, addr := range addrs {
		ap, ok := p.patches[addr]
		if !ok || !ap.active {
			continue
		}
		if err := p.restore(addr, ap.originalByte); err != nil {
			return err
		}
		ap.active = false
	}
	return nil
}

// Enable re-writes 0xCC at each inactive patch and marks it active again.
// Idempotent for the same reason as Disable.
func (p *Patcher) Enable(addrs []breakpoint.RuntimeAddr) error {
	for _, addr := range addrs {
		ap, ok := p.patches[addr]
		if !ok || ap.active {
			continue
		}
		word, err := p.mem.PeekData(addr)
		if err != nil {
			return dbgerr.New(dbgerr.PtraceFailed, "patch: enable %s: %v", addr, err)
		}
		if err := p.mem.PokeData(addr, (word &^ 0xff)|int3); err != nil {
			return dbgerr.New(dbgerr.PtraceFailed, "patch: enable %s: %v", addr, err)
		}
		ap.active = true
	}
	return nil
}

// IsActive reports whether addr currently carries a live 0xCC patch.
func (p *Patcher) IsActive(addr breakpoint.RuntimeAddr) bool {
	ap, ok := p.patches[addr]
	return ok && ap.active
}

// Sync reconciles the live patch set to exactly desired: addresses not yet
// seen are injected, addresses seen but currently disabled are re-enabled,
// and active addresses no longer in desired are disabled. Used when the
// user toggles or adds a breakpoint while a Run is already live.
func (p *Patcher) Sync(desired []breakpoint.RuntimeAddr) error {
	want := make(map[breakpoint.RuntimeAddr]bool, len(desired))
	for _, addr := range desired {
		want[addr] = true
		ap, seen := p.patches[addr]
		switch {
		case !seen:
			if err := p.Inject([]breakpoint.RuntimeAddr{addr}); err != nil {
				return err
			}
		case !ap.active:
			if err := p.Enable([]breakpoint.RuntimeAddr{addr}); err != nil {
				return err
			}
		}
	}
	for addr, ap := range p.patches {
		if ap.active && !want[addr] {
			if err := p.Disable([]breakpoint.RuntimeAddr{addr}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Patcher) restore(addr breakpoint.RuntimeAddr, original byte) error {
	word, err := p.mem.PeekData(addr)
	if err != nil {
		return dbgerr.New(dbgerr.PtraceFailed, "patch: restore %s: %v", addr, err)
	}
	if err := p.mem.PokeData(addr, (word&^0xff)|uint64(original)); err != nil {
		return dbgerr.New(dbgerr.PtraceFailed, "patch: restore %s: %v", addr, err)
	}
	return nil
}

// singleStepper is the extra capability StepOver needs beyond
// ptraceMemory: moving rip and single-stepping. *tracee.Run satisfies
// this too; kept separate so Patcher's core Inject/Disable/Enable
// contract stays minimal.
type singleStepper interface {
	ptraceMemory
	SetRIP(addr breakpoint.RuntimeAddr) error
	SingleStepAndWait() error
}

// StepOver implements spec.md §4.3's step-over protocol. It must be called
// only when the tracee is stopped with rip == addr+1 (just past the trap
// byte); any other state is a dbgerr.InvalidState, never a panic.
func StepOver(s singleStepper, p *Patcher, addr breakpoint.RuntimeAddr, rip breakpoint.RuntimeAddr) error {
	if rip-1 != addr {
		return dbgerr.New(dbgerr.InvalidState, "patch: step-over: rip-1 (%s) != addr (%s)", rip-1, addr)
	}

	if err := p.Disable([]breakpoint.RuntimeAddr{addr}); err != nil {
		return err
	}
	if err := s.SetRIP(addr); err != nil {
		return dbgerr.New(dbgerr.PtraceFailed, "patch: step-over: set rip: %v", err)
	}
	if err := s.SingleStepAndWait(); err != nil {
		return dbgerr.New(dbgerr.PtraceFailed, "patch: step-over: single-step: %v", err)
	}
	return p.Enable([]breakpoint.RuntimeAddr{addr})
}
