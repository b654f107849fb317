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

package debuginfo_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tracepit/dbgcore/debuginfo"
	"github.com/tracepit/dbgcore/internal/dwfixture"
	"github.com/tracepit/dbgcore/internal/elffixture"
)

const (
	shtProgbits = 1
	shfAlloc    = 0x2
	shfExecInst = 0x4
)

var textBytes = []byte{0x89, 0xc0, 0x89, 0xc0, 0x89, 0xc0, 0x89, 0xc0, 0x89, 0xc0, 0x89, 0xc0, 0x89, 0xc0, 0x89, 0xc0}

func writeExecFixture(t *testing.T) (binPath, srcPath string) {
	t.Helper()
	dir := t.TempDir()
	srcPath = filepath.Join(dir, "main.c")
	require.NoError(t, os.WriteFile(srcPath, []byte("int main() {\n  return 0;\n}\n"), 0o644))

	subs := []dwfixture.Subprogram{
		{Name: "main", LowPC: 0x401000, HighSize: 0x10, DeclFile: 1},
	}
	rows := []dwfixture.LineRow{
		{Addr: 0x401000, Line: 1},
		{Addr: 0x401008, Line: 2},
		{Addr: 0x40100c, Line: 3},
	}

	abbrev := dwfixture.Abbrev()
	info := dwfixture.Info(dir, "main.c", subs)
	line := dwfixture.Line("main.c", rows)

	raw := elffixture.Build(0x401000, []elffixture.Section{
		{Name: ".text", Type: shtProgbits, Flags: shfAlloc | shfExecInst, Addr: 0x401000, Data: textBytes},
		{Name: ".debug_abbrev", Type: shtProgbits, Data: abbrev},
		{Name: ".debug_info", Type: shtProgbits, Data: info},
		{Name: ".debug_line", Type: shtProgbits, Data: line},
	})

	binPath = filepath.Join(dir, "fixture.elf")
	require.NoError(t, os.WriteFile(binPath, raw, 0o755))
	return binPath, srcPath
}

func waitForSnapshot(t *testing.T, store *debuginfo.Store, check func(*debuginfo.Snapshot) bool) *debuginfo.Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		store.Drain()
		snap := store.Snapshot()
		if check(snap) {
			return snap
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for expected snapshot")
	return nil
}

func TestWorkerPublishesSubprogramsEndToEnd(t *testing.T) {
	binPath, srcPath := writeExecFixture(t)

	store := debuginfo.NewStore()
	worker := debuginfo.NewWorker(store)
	defer worker.Stop()

	worker.ReadExec(binPath)

	snap := waitForSnapshot(t, store, func(s *debuginfo.Snapshot) bool {
		return len(s.AllSubprograms) > 0
	})

	require.NotNil(t, snap.Decompiled)
	require.Len(t, snap.AllSubprograms, 1)
	require.Equal(t, "main", snap.AllSubprograms[0].Name)

	var pf debuginfo.PerFile
	for _, v := range snap.PerFile {
		pf = v
	}
	require.Len(t, pf.BreakableLocations, 3)
	_ = srcPath
}

func TestWorkerReadSrcPublishesSrcResponse(t *testing.T) {
	_, srcPath := writeExecFixture(t)

	store := debuginfo.NewStore()
	worker := debuginfo.NewWorker(store)
	defer worker.Stop()

	worker.ReadSrc(srcPath, false)

	deadline := time.Now().Add(2 * time.Second)
	var found bool
	for time.Now().Before(deadline) && !found {
		for _, r := range store.Drain() {
			if r.Kind == debuginfo.RespSrc && r.Src != nil && r.Src.Path == srcPath {
				found = true
			}
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, found, "expected a RespSrc for the loaded file")
}
