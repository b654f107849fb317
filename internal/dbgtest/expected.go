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

// Package dbgtest collects small test helpers shared by the debugger core's
// package-local test files. It is deliberately tiny: anything needing
// richer assertions (table-driven scenarios, fixtures) reaches for
// testify/require instead.
package dbgtest

import (
	"math"
	"reflect"
	"testing"
)

// success is satisfied by a bool or an error - the two shapes every
// operation in this codebase reports success/failure with.
func success(v interface{}) (bool, bool) {
	switch r := v.(type) {
	case bool:
		return r, true
	case error:
		return r == nil, true
	case nil:
		return true, true
	}
	return false, false
}

// ExpectSuccess fails the test unless v is true or a nil error.
func ExpectSuccess(t *testing.T, v interface{}) {
	t.Helper()
	ok, recognised := success(v)
	if !recognised {
		t.Fatalf("ExpectSuccess: unrecognised value type %T", v)
		return
	}
	if !ok {
		t.Fatalf("expected success, got %v", v)
	}
}

// ExpectFailure fails the test unless v is false or a non-nil error.
func ExpectFailure(t *testing.T, v interface{}) {
	t.Helper()
	ok, recognised := success(v)
	if !recognised {
		t.Fatalf("ExpectFailure: unrecognised value type %T", v)
		return
	}
	if ok {
		t.Fatalf("expected failure, got %v", v)
	}
}

// ExpectEquality fails the test unless a and b are deeply equal.
func ExpectEquality(t *testing.T, a, b interface{}) {
	t.Helper()
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("expected equality: %v != %v", a, b)
	}
}

// ExpectInequality fails the test if a and b are deeply equal.
func ExpectInequality(t *testing.T, a, b interface{}) {
	t.Helper()
	if reflect.DeepEqual(a, b) {
		t.Fatalf("expected inequality: %v == %v", a, b)
	}
}

// ExpectApproximate fails the test unless a and b differ by no more than
// tolerance.
func ExpectApproximate(t *testing.T, a, b float64, tolerance float64) {
	t.Helper()
	if math.Abs(a-b) > tolerance {
		t.Fatalf("expected %v to be within %v of %v", a, tolerance, b)
	}
}
