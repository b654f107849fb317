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

package breakpoint_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracepit/dbgcore/breakpoint"
)

func TestListAddIsIdempotent(t *testing.T) {
	l := breakpoint.NewList()
	a := l.Add(0x1000, 10)
	b := l.Add(0x1000, 99)
	require.Same(t, a, b)
	require.Equal(t, 10, a.Line)
	require.Len(t, l.All(), 1)
}

func TestToggleFlipsEnabled(t *testing.T) {
	l := breakpoint.NewList()
	l.Add(0x2000, 5)
	require.ElementsMatch(t, []breakpoint.OfflineAddr{0x2000}, l.Enabled())

	l.Toggle(0x2000)
	require.Empty(t, l.Enabled())

	l.Toggle(0x2000)
	require.ElementsMatch(t, []breakpoint.OfflineAddr{0x2000}, l.Enabled())
}

func TestRemove(t *testing.T) {
	l := breakpoint.NewList()
	l.Add(0x1000, 1)
	l.Add(0x2000, 2)
	l.Remove(0x1000)

	_, ok := l.Get(0x1000)
	require.False(t, ok)
	require.Len(t, l.All(), 1)
}

func TestAddressTranslation(t *testing.T) {
	off := breakpoint.OfflineAddr(0x1000)
	rt := off.ToRuntime(0x555555554000)
	require.Equal(t, breakpoint.RuntimeAddr(0x555555555000), rt)
	require.Equal(t, off, rt.ToOffline(0x555555554000))
}
