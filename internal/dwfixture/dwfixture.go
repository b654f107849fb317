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

// Package dwfixture hand-encodes minimal DWARF v4 .debug_abbrev,
// .debug_info and .debug_line section bytes for use as test fixtures,
// fed through the standard library's dwarf.New. There is no compiler
// available to the test suite, so this is the only way to hand a test a
// real *dwarf.Data with known, controlled contents.
package dwfixture

import (
	"bytes"
	"encoding/binary"
)

// Abbrev codes used by the fixtures this package builds.
const (
	AbbrevCompileUnit = 1
	AbbrevSubprogram  = 2
)

// DWARF tag/attribute/form constants used below (mirrors debug/dwarf's
// unexported constant pool; kept local since that package does not export
// them for encoding use).
const (
	tagCompileUnit = 0x11
	tagSubprogram  = 0x2e

	attrName     = 0x03
	attrStmtList = 0x10
	attrCompDir  = 0x1b
	attrLowpc    = 0x11
	attrHighpc   = 0x12
	attrDeclFile = 0x3a
	attrInline   = 0x20

	formAddr     = 0x01
	formData8    = 0x07
	formString   = 0x08
	formData1    = 0x0b
	formSecOffset = 0x17
)

// Abbrev returns a minimal .debug_abbrev table with two entries: a
// compile_unit (with children, comp_dir + name) and a subprogram (no
// children; name, low_pc, high_pc-as-size, decl_file, inline).
func Abbrev() []byte {
	var b bytes.Buffer

	writeULEB(&b, AbbrevCompileUnit)
	writeULEB(&b, tagCompileUnit)
	b.WriteByte(1) // has children
	writeULEB(&b, attrCompDir)
	writeULEB(&b, formString)
	writeULEB(&b, attrName)
	writeULEB(&b, formString)
	writeULEB(&b, attrStmtList)
	writeULEB(&b, formSecOffset)
	writeULEB(&b, 0)
	writeULEB(&b, 0)

	writeULEB(&b, AbbrevSubprogram)
	writeULEB(&b, tagSubprogram)
	b.WriteByte(0) // no children
	writeULEB(&b, attrName)
	writeULEB(&b, formString)
	writeULEB(&b, attrLowpc)
	writeULEB(&b, formAddr)
	writeULEB(&b, attrHighpc)
	writeULEB(&b, formData8)
	writeULEB(&b, attrDeclFile)
	writeULEB(&b, formData1)
	writeULEB(&b, attrInline)
	writeULEB(&b, formData1)
	writeULEB(&b, 0)
	writeULEB(&b, 0)

	b.WriteByte(0) // table terminator
	return b.Bytes()
}

// Subprogram describes one function-like DIE to embed in a fixture CU.
type Subprogram struct {
	Name     string
	LowPC    uint64
	HighSize uint64 // added to LowPC by the analyzer, per DW_FORM_data8 high_pc
	DeclFile uint8
	Inline   uint8 // 0 = DW_INL_not_inlined
}

// Info returns a .debug_info section with one compile_unit DIE (given
// compDir/name) containing the given subprograms as direct children.
func Info(compDir, name string, subs []Subprogram) []byte {
	var body bytes.Buffer

	writeULEB(&body, AbbrevCompileUnit)
	writeCString(&body, compDir)
	writeCString(&body, name)
	binary.Write(&body, binary.LittleEndian, uint32(0)) // stmt_list: .debug_line offset 0

	for _, s := range subs {
		writeULEB(&body, AbbrevSubprogram)
		writeCString(&body, s.Name)
		binary.Write(&body, binary.LittleEndian, s.LowPC)
		binary.Write(&body, binary.LittleEndian, s.HighSize)
		body.WriteByte(s.DeclFile)
		body.WriteByte(s.Inline)
	}
	body.WriteByte(0) // end of compile_unit's children

	var out bytes.Buffer
	unitLen := uint32(2 /* version */ + 4 /* abbrev offset */ + 1 /* addr size */ + body.Len())
	binary.Write(&out, binary.LittleEndian, unitLen)
	binary.Write(&out, binary.LittleEndian, uint16(4)) // DWARF version 4
	binary.Write(&out, binary.LittleEndian, uint32(0)) // debug_abbrev_offset
	out.WriteByte(8)                                   // address_size
	out.Write(body.Bytes())

	return out.Bytes()
}

// LineRow is one row to emit from the fixture line program.
type LineRow struct {
	Addr uint64
	Line int
}

// Line returns a minimal DWARF v4 .debug_line section for a single
// sequence: one DW_LNE_set_address to the first row's address, one row per
// entry in rows (via DW_LNS_copy, advancing pc/line between rows), then
// DW_LNE_end_sequence. fileName is the sole entry in the file_names table
// (index 1, dir_index 0 meaning the implicit compilation directory).
func Line(fileName string, rows []LineRow) []byte {
	var header bytes.Buffer
	header.WriteByte(1) // minimum_instruction_length
	header.WriteByte(1) // maximum_operations_per_instruction (DWARF4)
	header.WriteByte(1) // default_is_stmt
	header.WriteByte(0xfb) // line_base (-5, signed)
	header.WriteByte(14)   // line_range
	header.WriteByte(13)   // opcode_base
	stdLens := []byte{0, 1, 1, 1, 1, 0, 0, 0, 1, 0, 0, 1}
	header.Write(stdLens)
	header.WriteByte(0) // include_directories: empty list
	writeCString(&header, fileName)
	writeULEB(&header, 0) // dir_index
	writeULEB(&header, 0) // mtime
	writeULEB(&header, 0) // length
	header.WriteByte(0)   // file_names terminator

	var program bytes.Buffer
	if len(rows) > 0 {
		// DW_LNE_set_address
		program.WriteByte(0)
		writeULEB(&program, 9) // length of sub-opcode + 8-byte address
		program.WriteByte(2)   // DW_LNE_set_address
		binary.Write(&program, binary.LittleEndian, rows[0].Addr)

		curAddr := rows[0].Addr
		curLine := 1
		for i, r := range rows {
			if i > 0 {
				writeAdvancePC(&program, r.Addr-curAddr)
				writeAdvanceLine(&program, r.Line-curLine)
				curAddr, curLine = r.Addr, r.Line
			} else {
				writeAdvanceLine(&program, r.Line-curLine)
				curLine = r.Line
			}
			program.WriteByte(1) // DW_LNS_copy
		}

		// DW_LNE_end_sequence
		program.WriteByte(0)
		writeULEB(&program, 1)
		program.WriteByte(1)
	}

	var out bytes.Buffer
	headerLength := uint32(header.Len())
	unitLength := uint32(2 /* version */ + 4 /* header_length */ + int(headerLength) + program.Len())

	binary.Write(&out, binary.LittleEndian, unitLength)
	binary.Write(&out, binary.LittleEndian, uint16(4))
	binary.Write(&out, binary.LittleEndian, headerLength)
	out.Write(header.Bytes())
	out.Write(program.Bytes())

	return out.Bytes()
}

func writeAdvancePC(buf *bytes.Buffer, delta uint64) {
	if delta == 0 {
		return
	}
	buf.WriteByte(2) // DW_LNS_advance_pc
	writeULEB(buf, delta)
}

func writeAdvanceLine(buf *bytes.Buffer, delta int) {
	if delta == 0 {
		return
	}
	buf.WriteByte(3) // DW_LNS_advance_line
	writeSLEB(buf, int64(delta))
}

func writeCString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
}

func writeULEB(buf *bytes.Buffer, v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

func writeSLEB(buf *bytes.Buffer, v int64) {
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			more = false
		} else {
			b |= 0x80
		}
		buf.WriteByte(b)
	}
}
