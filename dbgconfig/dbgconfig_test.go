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

package dbgconfig_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracepit/dbgcore/dbgconfig"
)

func TestBiasUsesComputedValueByDefault(t *testing.T) {
	opts := dbgconfig.Options{ExecPath: "/bin/fixture"}
	require.Equal(t, uint64(0x5000), opts.Bias(0x5000))
}

func TestBiasPrefersFixedOverride(t *testing.T) {
	fixed := uint64(0x1000)
	opts := dbgconfig.Options{ExecPath: "/bin/fixture", FixedBias: &fixed}
	require.Equal(t, uint64(0x1000), opts.Bias(0x9999))
}
