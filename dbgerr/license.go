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

// Package dbgerr defines the error taxonomy shared by every debugger core
// component. Errors are created with New() and carry an Errno so callers can
// branch on kind without string matching; Error() still produces a normal,
// de-duplicated message chain the way a plain wrapped error would.
package dbgerr
