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

// Package binload opens an ELF executable and exposes the sections the
// rest of the debugger core needs: the executable text and the DWARF
// debug sections.
package binload

import (
	"debug/dwarf"
	"debug/elf"
	"os"

	"github.com/tracepit/dbgcore/dbgerr"
)

// Binary is a memory-resident view of an ELF executable.
type Binary struct {
	Path string
	File *elf.File

	text     []byte
	textBase uint64
}

// Open reads path as an ELF file. It fails with dbgerr.NotFound if the
// path does not exist or is not a regular file, and dbgerr.Malformed if
// the ELF header itself cannot be parsed - per-CU/per-section parse
// failures are a dwarfinfo/disasm concern, not this one.
func Open(path string) (*Binary, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, dbgerr.New(dbgerr.NotFound, "binary: %v", err)
	}
	if !fi.Mode().IsRegular() {
		return nil, dbgerr.New(dbgerr.NotFound, "binary: %s is not a regular file", path)
	}

	f, err := elf.Open(path)
	if err != nil {
		return nil, dbgerr.New(dbgerr.Malformed, "binary: %v", err)
	}

	b := &Binary{Path: path, File: f}

	if sec := f.Section(".text"); sec != nil {
		b.textBase = sec.Addr
		data, err := sec.Data()
		if err != nil {
			return nil, dbgerr.New(dbgerr.Malformed, "binary: .text: %v", err)
		}
		b.text = data
	}

	return b, nil
}

// Close releases the underlying file handle.
func (b *Binary) Close() error {
	return b.File.Close()
}

// Text returns the raw bytes of the .text section.
func (b *Binary) Text() []byte {
	return b.text
}

// TextBase returns the .text section's declared load address.
func (b *Binary) TextBase() uint64 {
	return b.textBase
}

// DebugSection returns the named DWARF debug section's bytes (e.g.
// ".debug_line"), or dbgerr.NotFound if the ELF carries no such section -
// common for a binary stripped of some but not all debug info.
func (b *Binary) DebugSection(name string) ([]byte, error) {
	sec := b.File.Section(name)
	if sec == nil {
		return nil, dbgerr.New(dbgerr.NotFound, "binary: no %s section", name)
	}
	data, err := sec.Data()
	if err != nil {
		return nil, dbgerr.New(dbgerr.Malformed, "binary: %s: %v", name, err)
	}
	return data, nil
}

// DWARF returns the binary's parsed DWARF data via the standard library,
// which handles locating/decompressing every ".debug_*" section itself.
func (b *Binary) DWARF() (*dwarf.Data, error) {
	d, err := b.File.DWARF()
	if err != nil {
		return nil, dbgerr.New(dbgerr.Malformed, "binary: dwarf: %v", err)
	}
	return d, nil
}
