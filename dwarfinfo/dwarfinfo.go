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

// Package dwarfinfo walks DWARF compilation units, producing the
// breakable locations and subprograms attributable to one source file.
// A malformed compilation unit aborts that unit only - the scan always
// returns whatever it accumulated from the units that parsed cleanly.
package dwarfinfo

import (
	"debug/dwarf"
	"io"
	"strings"

	"github.com/tracepit/dbgcore/breakpoint"
	"github.com/tracepit/dbgcore/srcfile"
)

// Subprogram is a function-like DIE resolved against the line table.
type Subprogram struct {
	Name        string
	LowAddr     breakpoint.OfflineAddr
	HighAddr    breakpoint.OfflineAddr
	SrcFileHash uint64
	StartLine   int
	EndLine     int
}

// Result is the per-file output of Analyze.
type Result struct {
	BreakableLocations []breakpoint.BreakableLocation
	Subprograms        []Subprogram
}

// Analyze implements the spec's per-file DWARF walk: every compilation
// unit whose compilation directory is a prefix of targetPath is walked
// for breakable locations (from its line program) and subprograms (from
// its DIE tree), then subprograms are resolved against those locations.
// Units that fail to parse are skipped; a CU-level error never aborts the
// whole scan.
func Analyze(d *dwarf.Data, targetPath string) (Result, error) {
	fileHash := srcfile.HashPath(targetPath)

	var result Result
	r := d.Reader()

	for {
		entry, err := r.Next()
		if err != nil || entry == nil {
			break
		}
		if entry.Tag != dwarf.TagCompileUnit {
			continue
		}

		compDir, _ := entry.Val(dwarf.AttrCompDir).(string)
		if !strings.HasPrefix(targetPath, compDir) {
			r.SkipChildren()
			continue
		}

		locs, fileIdx, ok := walkLineProgram(d, entry, targetPath)
		if !ok {
			// malformed .debug_line for this CU: contribute nothing from
			// it, but keep going - other CUs may still be intact.
			continue
		}

		addrToLine := make(map[breakpoint.OfflineAddr]int, len(locs))
		for _, l := range locs {
			addrToLine[l.Addr] = l.Line
		}

		subs := walkSubprograms(r, fileIdx, fileHash, addrToLine, locs)

		result.BreakableLocations = append(result.BreakableLocations, locs...)
		result.Subprograms = append(result.Subprograms, subs...)
	}

	return result, nil
}

// ScanPaths returns the distinct set of source file paths referenced by
// every line program in d, used by the background worker's path-discovery
// mode (spec.md §4.1 "scanning mode").
func ScanPaths(d *dwarf.Data) []string {
	seen := make(map[string]bool)
	var out []string

	r := d.Reader()
	for {
		entry, err := r.Next()
		if err != nil || entry == nil {
			break
		}
		if entry.Tag != dwarf.TagCompileUnit {
			continue
		}

		lr, err := d.LineReader(entry)
		if err != nil || lr == nil {
			continue
		}
		for _, f := range lr.Files() {
			if f == nil || f.Name == "" || seen[f.Name] {
				continue
			}
			seen[f.Name] = true
			out = append(out, f.Name)
		}
	}

	return out
}

// walkLineProgram walks one CU's line program in sequences, collecting the
// rows belonging to targetPath. It caches the file table index of the
// first row that matches and skips every row whose file index differs, per
// spec.md §4.1 step 2. Returns ok=false if the line program itself cannot
// be read at all.
func walkLineProgram(d *dwarf.Data, cu *dwarf.Entry, targetPath string) ([]breakpoint.BreakableLocation, int, bool) {
	lr, err := d.LineReader(cu)
	if err != nil || lr == nil {
		return nil, -1, false
	}

	var locs []breakpoint.BreakableLocation
	targetFileIdx := -1

	var row dwarf.LineEntry
	for {
		err := lr.Next(&row)
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		if row.EndSequence {
			continue
		}
		if row.File == nil || row.File.Name != targetPath {
			continue
		}

		idx := fileIndex(lr, row.File)
		if targetFileIdx == -1 {
			targetFileIdx = idx
		} else if idx != targetFileIdx {
			continue
		}

		col := row.Column
		if col == 0 {
			// DWARF column 0 means "left edge of the line"; spec.md §4.1
			// asks that this be normalized to column 1.
			col = 1
		}

		locs = append(locs, breakpoint.BreakableLocation{
			Addr:   breakpoint.OfflineAddr(row.Address),
			Line:   row.Line,
			Column: col,
		})
	}

	return locs, targetFileIdx, true
}

func fileIndex(lr *dwarf.LineReader, f *dwarf.LineFile) int {
	for i, cand := range lr.Files() {
		if cand == f {
			return i
		}
	}
	return -1
}

// walkSubprograms walks the DIE tree rooted at the CU entry just consumed
// by r, collecting subprogram DIEs attributable to fileIdx and resolving
// each one's start/end line against locs, per spec.md §4.1 steps 3-4.
func walkSubprograms(r *dwarf.Reader, fileIdx int, fileHash uint64, addrToLine map[breakpoint.OfflineAddr]int, locs []breakpoint.BreakableLocation) []Subprogram {
	var subs []Subprogram

	depth := 0
	for {
		entry, err := r.Next()
		if err != nil || entry == nil {
			break
		}
		if entry.Tag == 0 {
			// null entry: end of this level's children.
			if depth == 0 {
				break
			}
			depth--
			continue
		}
		if entry.Children {
			depth++
		}

		if entry.Tag != dwarf.TagSubprogram {
			continue
		}

		if inl := entry.AttrField(dwarf.AttrInline); inl != nil {
			if n, ok := inl.Val.(int64); ok && n != 0 {
				continue
			}
		}

		declFile, ok := entry.Val(dwarf.AttrDeclFile).(int64)
		if !ok || fileIdx < 0 || int(declFile) != fileIdx {
			continue
		}

		low, ok := entry.Val(dwarf.AttrLowpc).(uint64)
		if !ok {
			continue
		}
		high, ok := highPC(entry, low)
		if !ok || high == low {
			continue
		}

		startLine, startOK := addrToLine[breakpoint.OfflineAddr(low)]
		if !startOK {
			continue
		}
		endLine, endOK := largestLineBefore(locs, breakpoint.OfflineAddr(low), breakpoint.OfflineAddr(high))
		if !endOK || startLine == endLine {
			continue
		}

		name, _ := entry.Val(dwarf.AttrName).(string)
		subs = append(subs, Subprogram{
			Name:        name,
			LowAddr:     breakpoint.OfflineAddr(low),
			HighAddr:    breakpoint.OfflineAddr(high),
			SrcFileHash: fileHash,
			StartLine:   startLine,
			EndLine:     endLine,
		})
	}

	return subs
}

// highPC resolves DW_AT_high_pc, which is either an absolute address or an
// offset to be added to low_pc depending on its form's class.
func highPC(entry *dwarf.Entry, low uint64) (uint64, bool) {
	f := entry.AttrField(dwarf.AttrHighpc)
	if f == nil {
		return 0, false
	}
	switch f.Class {
	case dwarf.ClassAddress:
		v, ok := f.Val.(uint64)
		return v, ok
	case dwarf.ClassConstant:
		v, ok := f.Val.(int64)
		if !ok {
			return 0, false
		}
		return low + uint64(v), true
	default:
		return 0, false
	}
}

// largestLineBefore returns the line of the breakable location with the
// largest address in [low, high), per spec.md §4.1 step 4.
func largestLineBefore(locs []breakpoint.BreakableLocation, low, high breakpoint.OfflineAddr) (int, bool) {
	best := breakpoint.OfflineAddr(0)
	line := 0
	found := false
	for _, l := range locs {
		if l.Addr >= low && l.Addr < high {
			if !found || l.Addr > best {
				best = l.Addr
				line = l.Line
				found = true
			}
		}
	}
	return line, found
}
