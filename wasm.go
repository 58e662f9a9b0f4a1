package chasm

import (
	"encoding/binary"
	"math"
)

// WebAssembly binary encoding: section ids, value types, opcodes, and
// the LEB128/length-prefix helpers the assembler is built from.

const (
	secType     byte = 1
	secImport   byte = 2
	secFunction byte = 3
	secExport   byte = 7
	secCode     byte = 10
)

const (
	typeFunc byte = 0x60
	valI32   byte = 0x7f
	valF32   byte = 0x7d

	importFunc   byte = 0x00
	importMemory byte = 0x02
	exportFunc   byte = 0x00

	// a limits flag of 0 declares a minimum and no maximum
	limitsMin byte = 0x00

	blockTypeEmpty byte = 0x40
)

const (
	opBlock        byte = 0x02
	opLoop         byte = 0x03
	opIf           byte = 0x04
	opElse         byte = 0x05
	opEnd          byte = 0x0b
	opBr           byte = 0x0c
	opBrIf         byte = 0x0d
	opCall         byte = 0x10
	opLocalGet     byte = 0x20
	opLocalSet     byte = 0x21
	opI32Store8    byte = 0x3a
	opF32Const     byte = 0x43
	opI32Eqz       byte = 0x45
	opF32Eq        byte = 0x5b
	opF32Lt        byte = 0x5d
	opF32Gt        byte = 0x5e
	opI32And       byte = 0x71
	opF32Add       byte = 0x92
	opF32Sub       byte = 0x93
	opF32Mul       byte = 0x94
	opF32Div       byte = 0x95
	opI32TruncF32S byte = 0xa8
)

var moduleHeader = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic: \0asm
	0x01, 0x00, 0x00, 0x00, // version 1
}

// appendUleb appends v as an unsigned LEB128 integer.
func appendUleb(b []byte, v uint64) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b = append(b, c)
		if v == 0 {
			return b
		}
	}
}

// appendF32 appends the 4-byte little-endian IEEE 754 encoding of v.
func appendF32(b []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
}

// appendName appends a length-prefixed UTF-8 name.
func appendName(b []byte, name string) []byte {
	b = appendUleb(b, uint64(len(name)))
	return append(b, name...)
}

// appendSection appends a section id, the LEB128 length of the payload,
// and the payload itself. Payloads are always assembled into their own
// scratch buffer first and measured here, never sized ahead of time.
func appendSection(b []byte, id byte, payload []byte) []byte {
	b = append(b, id)
	b = appendUleb(b, uint64(len(payload)))
	return append(b, payload...)
}

// spliceToFront moves the bytes written at or after mark to the front
// of code, shifting the earlier bytes back. The function body is
// emitted before its locals declaration is known, so the declaration
// is written at the end and spliced into place.
func spliceToFront(code []byte, mark int) {
	tail := append([]byte(nil), code[mark:]...)
	copy(code[len(tail):], code[:mark])
	copy(code, tail)
}
