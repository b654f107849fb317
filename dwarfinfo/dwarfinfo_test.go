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

package dwarfinfo_test

import (
	"debug/dwarf"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracepit/dbgcore/breakpoint"
	"github.com/tracepit/dbgcore/dwarfinfo"
	"github.com/tracepit/dbgcore/internal/dwfixture"
)

const (
	compDir    = "/src"
	cuName     = "main.c"
	targetPath = "/src/main.c"
)

func buildData(t *testing.T, subs []dwfixture.Subprogram, rows []dwfixture.LineRow) *dwarf.Data {
	t.Helper()
	abbrev := dwfixture.Abbrev()
	info := dwfixture.Info(compDir, cuName, subs)
	line := dwfixture.Line(cuName, rows)

	d, err := dwarf.New(abbrev, nil, nil, info, line, nil, nil, nil)
	require.NoError(t, err)
	return d
}

func TestAnalyzeResolvesSubprogram(t *testing.T) {
	subs := []dwfixture.Subprogram{
		{Name: "main", LowPC: 0x401000, HighSize: 0x20, DeclFile: 1},
	}
	rows := []dwfixture.LineRow{
		{Addr: 0x401000, Line: 1},
		{Addr: 0x401010, Line: 2},
		{Addr: 0x401018, Line: 3},
	}
	d := buildData(t, subs, rows)

	result, err := dwarfinfo.Analyze(d, targetPath)
	require.NoError(t, err)

	require.Len(t, result.Subprograms, 1)
	sub := result.Subprograms[0]
	require.Equal(t, "main", sub.Name)
	require.Equal(t, breakpoint.OfflineAddr(0x401000), sub.LowAddr)
	require.Equal(t, breakpoint.OfflineAddr(0x401020), sub.HighAddr)
	require.Equal(t, 1, sub.StartLine)
	require.Equal(t, 3, sub.EndLine)
	require.True(t, sub.LowAddr <= sub.HighAddr)
	require.True(t, sub.StartLine <= sub.EndLine)

	require.Len(t, result.BreakableLocations, 3)
	require.Equal(t, breakpoint.OfflineAddr(0x401010), result.BreakableLocations[1].Addr)
	require.Equal(t, 2, result.BreakableLocations[1].Line)
}

func TestAnalyzeDropsInlinedSubprograms(t *testing.T) {
	subs := []dwfixture.Subprogram{
		{Name: "inlinee", LowPC: 0x401000, HighSize: 0x10, DeclFile: 1, Inline: 1},
	}
	rows := []dwfixture.LineRow{{Addr: 0x401000, Line: 1}, {Addr: 0x401008, Line: 2}}
	d := buildData(t, subs, rows)

	result, err := dwarfinfo.Analyze(d, targetPath)
	require.NoError(t, err)
	require.Empty(t, result.Subprograms)
}

func TestAnalyzeDropsSingleLineBodies(t *testing.T) {
	subs := []dwfixture.Subprogram{
		{Name: "oneliner", LowPC: 0x401000, HighSize: 0x8, DeclFile: 1},
	}
	rows := []dwfixture.LineRow{{Addr: 0x401000, Line: 5}}
	d := buildData(t, subs, rows)

	result, err := dwarfinfo.Analyze(d, targetPath)
	require.NoError(t, err)
	require.Empty(t, result.Subprograms, "startLine == endLine must be dropped")
}

func TestAnalyzeIgnoresOtherFiles(t *testing.T) {
	subs := []dwfixture.Subprogram{
		{Name: "main", LowPC: 0x401000, HighSize: 0x20, DeclFile: 1},
	}
	rows := []dwfixture.LineRow{{Addr: 0x401000, Line: 1}, {Addr: 0x401010, Line: 2}}
	d := buildData(t, subs, rows)

	result, err := dwarfinfo.Analyze(d, "/src/other.c")
	require.NoError(t, err)
	require.Empty(t, result.Subprograms)
	require.Empty(t, result.BreakableLocations)
}

func TestAnalyzeColumnZeroBecomesLeftEdge(t *testing.T) {
	d := buildData(t, nil, []dwfixture.LineRow{{Addr: 0x401000, Line: 1}})

	result, err := dwarfinfo.Analyze(d, targetPath)
	require.NoError(t, err)
	require.Len(t, result.BreakableLocations, 1)
	require.Equal(t, 1, result.BreakableLocations[0].Column)
}

func TestScanPathsReturnsDistinctFiles(t *testing.T) {
	d := buildData(t, nil, []dwfixture.LineRow{{Addr: 0x401000, Line: 1}})

	paths := dwarfinfo.ScanPaths(d)
	require.Equal(t, []string{targetPath}, paths)
}
