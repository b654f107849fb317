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

package patch_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracepit/dbgcore/breakpoint"
	"github.com/tracepit/dbgcore/dbgerr"
	"github.com/tracepit/dbgcore/patch"
)

// fakeMemory simulates a tracee's address space as a map of 8-byte words,
// and records rip/single-step calls for StepOver's sake.
type fakeMemory struct {
	words map[breakpoint.RuntimeAddr]uint64
	rip   breakpoint.RuntimeAddr
	steps int
}

func newFakeMemory(addr breakpoint.RuntimeAddr, word uint64) *fakeMemory {
	return &fakeMemory{words: map[breakpoint.RuntimeAddr]uint64{addr: word}}
}

func (f *fakeMemory) PeekData(addr breakpoint.RuntimeAddr) (uint64, error) {
	return f.words[addr], nil
}

func (f *fakeMemory) PokeData(addr breakpoint.RuntimeAddr, word uint64) error {
	f.words[addr] = word
	return nil
}

func (f *fakeMemory) SetRIP(addr breakpoint.RuntimeAddr) error {
	f.rip = addr
	return nil
}

func (f *fakeMemory) SingleStepAndWait() error {
	f.steps++
	return nil
}

func TestInjectDisableEnableRoundtrip(t *testing.T) {
	const addr = breakpoint.RuntimeAddr(0x401000)
	mem := newFakeMemory(addr, 0x1122334455667788)
	p := patch.NewPatcher(mem)

	require.NoError(t, p.Inject([]breakpoint.RuntimeAddr{addr}))
	require.True(t, p.IsActive(addr))
	require.Equal(t, byte(0xCC), byte(mem.words[addr]))

	require.NoError(t, p.Disable([]breakpoint.RuntimeAddr{addr}))
	require.False(t, p.IsActive(addr))
	require.Equal(t, byte(0x88), byte(mem.words[addr]))

	require.NoError(t, p.Enable([]breakpoint.RuntimeAddr{addr}))
	require.True(t, p.IsActive(addr))
	require.Equal(t, byte(0xCC), byte(mem.words[addr]))
}

func TestDisableAndEnableAreIdempotent(t *testing.T) {
	const addr = breakpoint.RuntimeAddr(0x401000)
	mem := newFakeMemory(addr, 0x1122334455667788)
	p := patch.NewPatcher(mem)
	require.NoError(t, p.Inject([]breakpoint.RuntimeAddr{addr}))

	require.NoError(t, p.Disable([]breakpoint.RuntimeAddr{addr}))
	require.NoError(t, p.Disable([]breakpoint.RuntimeAddr{addr}))
	require.Equal(t, byte(0x88), byte(mem.words[addr]))

	require.NoError(t, p.Enable([]breakpoint.RuntimeAddr{addr}))
	require.NoError(t, p.Enable([]breakpoint.RuntimeAddr{addr}))
	require.Equal(t, byte(0xCC), byte(mem.words[addr]))
}

func TestStepOverPreservesMemory(t *testing.T) {
	const addr = breakpoint.RuntimeAddr(0x401000)
	mem := newFakeMemory(addr, 0x1122334455667788)
	p := patch.NewPatcher(mem)
	require.NoError(t, p.Inject([]breakpoint.RuntimeAddr{addr}))

	require.NoError(t, patch.StepOver(mem, p, addr, addr+1))

	require.Equal(t, addr, mem.rip)
	require.Equal(t, 1, mem.steps)
	require.True(t, p.IsActive(addr))
	require.Equal(t, byte(0xCC), byte(mem.words[addr]))
}

func TestSyncInjectsEnablesAndDisables(t *testing.T) {
	const a = breakpoint.RuntimeAddr(0x401000)
	const b = breakpoint.RuntimeAddr(0x402000)
	mem := newFakeMemory(a, 0x1122334455667788)
	mem.words[b] = 0xaabbccddeeff0011
	p := patch.NewPatcher(mem)

	require.NoError(t, p.Sync([]breakpoint.RuntimeAddr{a}))
	require.True(t, p.IsActive(a))
	require.False(t, p.IsActive(b))

	require.NoError(t, p.Sync([]breakpoint.RuntimeAddr{b}))
	require.False(t, p.IsActive(a), "a dropped from the desired set must be disabled")
	require.True(t, p.IsActive(b))
	require.Equal(t, byte(0x88), byte(mem.words[a]))
	require.Equal(t, byte(0xCC), byte(mem.words[b]))

	require.NoError(t, p.Sync([]breakpoint.RuntimeAddr{a, b}))
	require.True(t, p.IsActive(a))
	require.True(t, p.IsActive(b))
}

func TestStepOverRejectsMismatchedRIP(t *testing.T) {
	const addr = breakpoint.RuntimeAddr(0x401000)
	mem := newFakeMemory(addr, 0x1122334455667788)
	p := patch.NewPatcher(mem)
	require.NoError(t, p.Inject([]breakpoint.RuntimeAddr{addr}))

	err := patch.StepOver(mem, p, addr, addr+5)
	require.True(t, dbgerr.Is(err, dbgerr.InvalidState))
	require.Equal(t, 0, mem.steps, "no single-step should be issued on a rejected call")
}
