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

// Package elffixture hand-builds minimal, valid ELF64 executables for use
// as test fixtures elsewhere in the module. No compiler is available to
// the test suite, so this is the only way to hand a real *elf.File to a
// test without shipping a prebuilt binary blob.
package elffixture

import (
	"bytes"
	"encoding/binary"
)

// Section describes one non-null section to add to a fixture binary.
type Section struct {
	Name  string
	Type  uint32 // elf.SHT_*
	Flags uint64 // elf.SHF_*
	Addr  uint64
	Data  []byte
}

const (
	ehsize    = 64
	shentsize = 64
)

// Build returns the raw bytes of a minimal little-endian ELF64 executable
// for x86-64, containing a NULL section, one section per sections, and a
// trailing .shstrtab. Section data is packed back-to-back immediately after
// the ELF+section-header area, in the order given.
func Build(entry uint64, sections []Section) []byte {
	names := []string{""} // NULL section has empty name
	for _, s := range sections {
		names = append(names, s.Name)
	}
	names = append(names, ".shstrtab")

	shstrtab := buildStrtab(names)

	numSections := len(sections) + 2 // NULL + sections + .shstrtab
	shoff := uint64(ehsize)

	// lay out section data after the section header table
	dataOff := shoff + uint64(numSections)*shentsize
	offsets := make([]uint64, len(sections))
	for i, s := range sections {
		offsets[i] = dataOff
		dataOff += uint64(len(s.Data))
		dataOff = align8(dataOff)
	}
	shstrtabOff := dataOff

	var buf bytes.Buffer

	writeHeader(&buf, entry, shoff, uint16(numSections), uint16(numSections-1))

	// section header table
	nameOff := uint32(1) // skip leading empty name
	writeShdr(&buf, 0, 0, 0, 0, 0, 0) // NULL section
	for i, s := range sections {
		writeShdr(&buf, nameOff, s.Type, s.Flags, s.Addr, offsets[i], uint64(len(s.Data)))
		nameOff += uint32(len(s.Name)) + 1
	}
	writeShdr(&buf, nameOff, 3 /* SHT_STRTAB */, 0, 0, shstrtabOff, uint64(len(shstrtab)))

	// section data, padded to the offsets computed above
	for i, s := range sections {
		buf.Write(s.Data)
		pad(&buf, offsets[i]+uint64(len(s.Data)), nextOffset(offsets, i, shstrtabOff))
	}
	buf.Write(shstrtab)

	return buf.Bytes()
}

func nextOffset(offsets []uint64, i int, shstrtabOff uint64) uint64 {
	if i+1 < len(offsets) {
		return offsets[i+1]
	}
	return shstrtabOff
}

func pad(buf *bytes.Buffer, cur, target uint64) {
	for cur < target {
		buf.WriteByte(0)
		cur++
	}
}

func align8(v uint64) uint64 {
	return (v + 7) &^ 7
}

func buildStrtab(names []string) []byte {
	var b bytes.Buffer
	for _, n := range names {
		b.WriteString(n)
		b.WriteByte(0)
	}
	return b.Bytes()
}

func writeHeader(buf *bytes.Buffer, entry, shoff uint64, shnum, shstrndx uint16) {
	var ident [16]byte
	ident[0], ident[1], ident[2], ident[3] = 0x7f, 'E', 'L', 'F'
	ident[4] = 2 // ELFCLASS64
	ident[5] = 1 // ELFDATA2LSB
	ident[6] = 1 // EV_CURRENT

	buf.Write(ident[:])
	binary.Write(buf, binary.LittleEndian, uint16(2))    // e_type: ET_EXEC
	binary.Write(buf, binary.LittleEndian, uint16(0x3e)) // e_machine: EM_X86_64
	binary.Write(buf, binary.LittleEndian, uint32(1))    // e_version
	binary.Write(buf, binary.LittleEndian, entry)        // e_entry
	binary.Write(buf, binary.LittleEndian, uint64(0))    // e_phoff
	binary.Write(buf, binary.LittleEndian, shoff)        // e_shoff
	binary.Write(buf, binary.LittleEndian, uint32(0))    // e_flags
	binary.Write(buf, binary.LittleEndian, uint16(ehsize))
	binary.Write(buf, binary.LittleEndian, uint16(0)) // e_phentsize
	binary.Write(buf, binary.LittleEndian, uint16(0)) // e_phnum
	binary.Write(buf, binary.LittleEndian, uint16(shentsize))
	binary.Write(buf, binary.LittleEndian, shnum)
	binary.Write(buf, binary.LittleEndian, shstrndx)
}

func writeShdr(buf *bytes.Buffer, name uint32, typ uint32, flags, addr, offset, size uint64) {
	binary.Write(buf, binary.LittleEndian, name)
	binary.Write(buf, binary.LittleEndian, typ)
	binary.Write(buf, binary.LittleEndian, flags)
	binary.Write(buf, binary.LittleEndian, addr)
	binary.Write(buf, binary.LittleEndian, offset)
	binary.Write(buf, binary.LittleEndian, size)
	binary.Write(buf, binary.LittleEndian, uint32(0)) // sh_link
	binary.Write(buf, binary.LittleEndian, uint32(0)) // sh_info
	binary.Write(buf, binary.LittleEndian, uint64(1)) // sh_addralign
	binary.Write(buf, binary.LittleEndian, uint64(0)) // sh_entsize
}
