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

package binload_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracepit/dbgcore/binload"
	"github.com/tracepit/dbgcore/dbgerr"
	"github.com/tracepit/dbgcore/internal/elffixture"
)

const (
	shtProgbits = 1
	shfAlloc    = 0x2
	shfExecInst = 0x4
)

// nopSled is "mov eax, eax" repeated (opcode 0x89 0xc0), a trivially
// decodable two-byte instruction, so disasm-adjacent tests can share this
// fixture too.
var nopSled = []byte{0x89, 0xc0, 0x89, 0xc0, 0x89, 0xc0, 0x89, 0xc0}

func writeFixture(t *testing.T) string {
	t.Helper()
	raw := elffixture.Build(0x401000, []elffixture.Section{
		{Name: ".text", Type: shtProgbits, Flags: shfAlloc | shfExecInst, Addr: 0x401000, Data: nopSled},
	})
	path := filepath.Join(t.TempDir(), "fixture.elf")
	require.NoError(t, os.WriteFile(path, raw, 0o755))
	return path
}

func TestOpenReadsTextSection(t *testing.T) {
	path := writeFixture(t)

	b, err := binload.Open(path)
	require.NoError(t, err)
	defer b.Close()

	require.Equal(t, nopSled, b.Text())
	require.Equal(t, uint64(0x401000), b.TextBase())
}

func TestOpenMissingFileIsNotFound(t *testing.T) {
	_, err := binload.Open(filepath.Join(t.TempDir(), "missing.elf"))
	require.True(t, dbgerr.Is(err, dbgerr.NotFound))
}

func TestOpenDirectoryIsNotFound(t *testing.T) {
	_, err := binload.Open(t.TempDir())
	require.True(t, dbgerr.Is(err, dbgerr.NotFound))
}

func TestDebugSectionAbsentIsNotFound(t *testing.T) {
	path := writeFixture(t)

	b, err := binload.Open(path)
	require.NoError(t, err)
	defer b.Close()

	_, err = b.DebugSection(".debug_info")
	require.True(t, dbgerr.Is(err, dbgerr.NotFound))
}
