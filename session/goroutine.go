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

package session

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID identifies the calling goroutine: different across
// goroutines, stable for a given one. Used only to assert that Session's
// mutating methods are always called from the thread that opened it
// (spec.md §5's single-UI-thread ownership rule) - never for control flow.
func goroutineID() uint64 {
	b := make([]byte, 64)
	b = b[:runtime.Stack(b, false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	b = b[:bytes.IndexByte(b, ' ')]
	n, _ := strconv.ParseUint(string(b), 10, 64)
	return n
}
