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

// Package srcfile reads and line-splits source text referenced by DWARF
// debug info, and owns the bidirectional line<->address maps the DWARF
// analyzer populates for each file.
package srcfile

import (
	"bufio"
	"hash/maphash"
	"os"

	"github.com/tracepit/dbgcore/breakpoint"
	"github.com/tracepit/dbgcore/dbgerr"
)

// seed is process-wide so ContentHash is stable for the lifetime of one
// run but not guessable/portable across runs - matching the spec's "a
// deterministic 64-bit digest" requirement (deterministic within a
// session is all any caller needs: the hash is used to correlate a file
// across snapshots, never persisted).
var seed = maphash.MakeSeed()

// SourceFile is a single source file referenced by the DWARF debug info.
type SourceFile struct {
	Path        string
	ContentHash uint64
	Lines       []string

	LineToAddr map[int]breakpoint.OfflineAddr
	AddrToLine map[breakpoint.OfflineAddr]int
}

// Load reads and line-splits the file at path. The returned SourceFile has
// empty LineToAddr/AddrToLine maps; the debuginfo worker fills them
// through Bind with the locations dwarfinfo.Analyze returns.
func Load(path string) (*SourceFile, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, dbgerr.New(dbgerr.NotFound, "source file: %v", err)
		}
		return nil, dbgerr.New(dbgerr.Malformed, "source file: %v", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, dbgerr.New(dbgerr.Malformed, "source file: %v", err)
	}

	return &SourceFile{
		Path:        path,
		ContentHash: HashPath(path),
		Lines:       lines,
		LineToAddr:  make(map[int]breakpoint.OfflineAddr),
		AddrToLine:  make(map[breakpoint.OfflineAddr]int),
	}, nil
}

// HashPath computes the deterministic per-process digest used to identify
// a file across snapshots. It hashes the path only, per spec.md §3 - two
// SourceFile values for the same path always compare equal across
// snapshots even if the underlying file changed between loads.
func HashPath(path string) uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	_, _ = h.WriteString(path)
	return h.Sum64()
}

// Bind records that offline address addr corresponds to line in this file,
// maintaining the invariant that LineToAddr and AddrToLine are inverses
// where defined (spec.md §8 property 1). The first (line, addr) pair seen
// for either side wins and no partial binding is ever recorded - binding
// only one direction would violate the inverse invariant the moment the
// other side later disagrees, matching how a line program emits its
// earliest statement boundary first within a sequence.
func (f *SourceFile) Bind(line int, addr breakpoint.OfflineAddr) {
	_, lineTaken := f.LineToAddr[line]
	_, addrTaken := f.AddrToLine[addr]
	if lineTaken || addrTaken {
		return
	}
	f.LineToAddr[line] = addr
	f.AddrToLine[addr] = line
}

// Validate checks the bijectivity invariant: for every line->addr mapping,
// the reverse addr->line mapping (if present) agrees.
func (f *SourceFile) Validate() bool {
	for line, addr := range f.LineToAddr {
		if l, ok := f.AddrToLine[addr]; ok && l != line {
			return false
		}
	}
	for addr, line := range f.AddrToLine {
		if a, ok := f.LineToAddr[line]; ok && a != addr {
			return false
		}
	}
	return true
}

// Line returns the 1-indexed source line's text, or "" if out of range.
func (f *SourceFile) Line(n int) string {
	if n < 1 || n > len(f.Lines) {
		return ""
	}
	return f.Lines[n-1]
}
