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

package disasm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracepit/dbgcore/breakpoint"
	"github.com/tracepit/dbgcore/dbgerr"
	"github.com/tracepit/dbgcore/disasm"
)

// movEaxEax is "mov eax, eax" (2 bytes), repeated four times.
var movEaxEax = []byte{0x89, 0xc0, 0x89, 0xc0, 0x89, 0xc0, 0x89, 0xc0}

func TestDecodeLinearSequence(t *testing.T) {
	dt, err := disasm.Decode(movEaxEax, 0x401000)
	require.NoError(t, err)
	require.Equal(t, 4, dt.Len())

	want := []breakpoint.OfflineAddr{0x401000, 0x401002, 0x401004, 0x401006}
	require.Equal(t, want, dt.Addresses)

	for i, r := range dt.Rendered {
		require.Contains(t, r, "mov")
		require.Contains(t, r, dt.Addresses[i].String()[2:]) // hex digits without "0x"
	}
}

func TestDecodeStopsCleanlyOnUndecodableBytes(t *testing.T) {
	text := append([]byte{}, movEaxEax...)
	text = append(text, 0x0f, 0xff) // undefined opcode

	dt, err := disasm.Decode(text, 0x401000)
	require.True(t, dbgerr.Is(err, dbgerr.Malformed))
	require.Equal(t, 4, dt.Len(), "partial results before the bad byte are still returned")
}

func TestIndexOfAndLastBefore(t *testing.T) {
	dt, err := disasm.Decode(movEaxEax, 0x401000)
	require.NoError(t, err)

	require.Equal(t, 2, dt.IndexOf(0x401004))
	require.Equal(t, -1, dt.IndexOf(0x401005))

	addr, ok := dt.LastBefore(0x401005)
	require.True(t, ok)
	require.Equal(t, breakpoint.OfflineAddr(0x401004), addr)

	_, ok = dt.LastBefore(0x401000)
	require.False(t, ok)
}
