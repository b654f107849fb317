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

package dbgerr

import (
	"errors"
	"fmt"
	"strings"
)

// taggedErr is a curated error: it remembers the Errno it was created with
// alongside the formatted message, so it can be classified later without
// parsing the message string.
type taggedErr struct {
	errno   Errno
	pattern string
	values  []interface{}
	wrapped error
}

// New creates an error of the given kind. format/args are used exactly as
// fmt.Sprintf would use them. If the last arg is an error it is kept
// separately so Unwrap() and errors.Is/As work through the chain.
func New(errno Errno, format string, args ...interface{}) error {
	te := &taggedErr{errno: errno, pattern: format, values: args}
	for _, a := range args {
		if err, ok := a.(error); ok {
			te.wrapped = err
			break
		}
	}
	return te
}

func (e *taggedErr) Error() string {
	s := fmt.Sprintf(e.pattern, e.values...)

	// de-duplicate adjacent "kind: kind: message" chains produced when a
	// lower layer already prefixed the same Errno's String().
	parts := strings.SplitN(s, ": ", 2)
	if len(parts) == 2 && parts[0] == e.errno.String() {
		return parts[1]
	}
	return s
}

func (e *taggedErr) Unwrap() error {
	return e.wrapped
}

// Is reports whether err itself (not an error it wraps) was created with the
// given Errno. Use Has to search the whole chain.
func Is(err error, errno Errno) bool {
	te, ok := err.(*taggedErr)
	return ok && te.errno == errno
}

// Has reports whether err or any error it wraps was created with the given
// Errno.
func Has(err error, errno Errno) bool {
	for err != nil {
		if Is(err, errno) {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// Kind returns the Errno err itself was created with, and whether err was a
// dbgerr error at all. It does not search wrapped errors - use Has for that.
func Kind(err error) (Errno, bool) {
	te, ok := err.(*taggedErr)
	if !ok {
		return 0, false
	}
	return te.errno, true
}
