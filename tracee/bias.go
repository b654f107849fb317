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

package tracee

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tracepit/dbgcore/dbgerr"
)

// computeBiasFunc is indirected so tests can substitute a fixed bias
// without a real /proc/<pid>/maps to read (there is no real child process
// under a scripted ptraceSyscalls fake).
var computeBiasFunc = computeBias

// computeBias reads the first executable mapping out of /proc/<pid>/maps
// and returns its start address minus textBase - the page-aligned
// link-time address of the ELF's executable segment, as Session passes it.
// This is the §9 redesign: no BIAS constant is
// ever hard-coded, it is always derived from the live tracee.
func computeBias(pid int, textBase uint64) (uint64, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return 0, dbgerr.New(dbgerr.PtraceFailed, "tracee: bias: %v", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		perms := fields[1]
		if !strings.Contains(perms, "x") {
			continue
		}
		rangeStr := fields[0]
		start, _, ok := strings.Cut(rangeStr, "-")
		if !ok {
			continue
		}
		addr, err := strconv.ParseUint(start, 16, 64)
		if err != nil {
			continue
		}
		return addr - textBase, nil
	}
	if err := sc.Err(); err != nil {
		return 0, dbgerr.New(dbgerr.PtraceFailed, "tracee: bias: %v", err)
	}
	return 0, dbgerr.New(dbgerr.NotFound, "tracee: bias: no executable mapping found for pid %d", pid)
}
