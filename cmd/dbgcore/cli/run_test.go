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

package cli_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracepit/dbgcore/cmd/dbgcore/cli"
	"github.com/tracepit/dbgcore/internal/elffixture"
)

const (
	shtProgbits = 1
	shfAlloc    = 0x2
	shfExecInst = 0x4
)

func writeFixtureExec(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	raw := elffixture.Build(0x401000, []elffixture.Section{
		{Name: ".text", Type: shtProgbits, Flags: shfAlloc | shfExecInst, Addr: 0x401000, Data: []byte{0x89, 0xc0}},
	})
	path := filepath.Join(dir, "fixture.elf")
	require.NoError(t, os.WriteFile(path, raw, 0o755))
	return path
}

// Every --break/--bias is passed explicitly on every invocation, even when
// empty, so a prior test's flag value (pflag does not reset to default
// between Execute calls) never leaks into the next.

func TestRunRejectsInvalidBiasBeforeOpeningTheBinary(t *testing.T) {
	var out bytes.Buffer
	cli.RootCmd.SetOut(&out)
	cli.RootCmd.SetErr(&out)
	cli.RootCmd.SetArgs([]string{"run", "/does/not/exist", "--break", "", "--bias", "not-hex"})

	err := cli.RootCmd.Execute()
	require.Error(t, err)
}

func TestRunRejectsInvalidBreakAddress(t *testing.T) {
	execPath := writeFixtureExec(t)

	var out bytes.Buffer
	cli.RootCmd.SetOut(&out)
	cli.RootCmd.SetErr(&out)
	cli.RootCmd.SetArgs([]string{"run", execPath, "--bias", "", "--break", "not-an-address"})

	err := cli.RootCmd.Execute()
	require.Error(t, err)
}

func TestRunRequiresExactlyOneExecutableArgument(t *testing.T) {
	var out bytes.Buffer
	cli.RootCmd.SetOut(&out)
	cli.RootCmd.SetErr(&out)
	cli.RootCmd.SetArgs([]string{"run", "--break", "", "--bias", ""})

	err := cli.RootCmd.Execute()
	require.Error(t, err)
}
