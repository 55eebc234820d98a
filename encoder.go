// encoder.go - builds RITE02 containers (the loader's inverse)
//
// There is no front-end compiler in this repo, so tests need some way to
// produce loadable bytecode. IREPBuilder plays that role: a minimal,
// in-package assembler mirroring decodeIREP byte-for-byte.

package mrubyc

import (
	"encoding/binary"
	"math"
)

// poolLiteral is one not-yet-encoded literal pool entry.
type poolLiteral struct {
	tag poolTag
	str string
	i   int64
	f   float64
}

// StrLiteral, IntLiteral and FloatLiteral build pool entries for
// IREPBuilder.Literals.
func StrLiteral(s string) poolLiteral   { return poolLiteral{tag: poolStr, str: s} }
func IntLiteral(i int64) poolLiteral    { return poolLiteral{tag: poolInt64, i: i} }
func FloatLiteral(f float64) poolLiteral { return poolLiteral{tag: poolFloat, f: f} }

// IREPBuilder assembles one IREP node (and its children) into bytes.
type IREPBuilder struct {
	NLocals  uint16
	NRegs    uint16
	Code     []byte
	Catches  []CatchHandler
	Literals []poolLiteral
	Symbols  []string
	Children []*IREPBuilder
}

func (b *IREPBuilder) encode() []byte {
	var body []byte
	body = append(body, byte(b.NLocals>>8), byte(b.NLocals))
	body = append(body, byte(b.NRegs>>8), byte(b.NRegs))
	body = append(body, byte(len(b.Children)>>8), byte(len(b.Children)))
	body = append(body, byte(len(b.Catches)>>8), byte(len(b.Catches)))
	body = append(body, byte(len(b.Code)>>8), byte(len(b.Code)))
	body = append(body, b.Code...)

	for _, c := range b.Catches {
		var cb [13]byte
		cb[0] = c.Type
		binary.BigEndian.PutUint32(cb[1:5], c.Begin)
		binary.BigEndian.PutUint32(cb[5:9], c.End)
		binary.BigEndian.PutUint32(cb[9:13], c.Target)
		body = append(body, cb[:]...)
	}

	body = append(body, byte(len(b.Literals)>>8), byte(len(b.Literals)))
	for _, lit := range b.Literals {
		body = append(body, byte(lit.tag))
		switch lit.tag {
		case poolStr, poolSStr:
			s := lit.str
			body = append(body, byte(len(s)>>8), byte(len(s)))
			body = append(body, s...)
			body = append(body, 0)
		case poolInt32:
			var buf [4]byte
			numericByteOrder.PutUint32(buf[:], uint32(int32(lit.i)))
			body = append(body, buf[:]...)
		case poolInt64:
			var buf [8]byte
			numericByteOrder.PutUint64(buf[:], uint64(lit.i))
			body = append(body, buf[:]...)
		case poolFloat:
			var buf [8]byte
			numericByteOrder.PutUint64(buf[:], float64bits(lit.f))
			body = append(body, buf[:]...)
		}
	}

	body = append(body, byte(len(b.Symbols)>>8), byte(len(b.Symbols)))
	for _, s := range b.Symbols {
		body = append(body, byte(len(s)>>8), byte(len(s)))
		body = append(body, s...)
		body = append(body, 0)
	}

	var rec []byte
	recordSize := uint32(len(body) + 4)
	rec = append(rec, byte(recordSize>>24), byte(recordSize>>16), byte(recordSize>>8), byte(recordSize))
	rec = append(rec, body...)

	for _, child := range b.Children {
		rec = append(rec, child.encode()...)
	}
	return rec
}

func float64bits(f float64) uint64 {
	return math.Float64bits(f)
}

// EncodeFile wraps root in a complete RITE02 container: header, one IREP
// section, and an END section, matching the container grammar Load expects.
func EncodeFile(root *IREPBuilder) []byte {
	irepPayload := root.encode()

	var out []byte
	out = append(out, headerIdent...)
	out = append(out, 0, 0) // version major/minor
	totalSizeOffset := len(out)
	out = append(out, 0, 0, 0, 0) // total_size, patched below
	out = append(out, "MATZ"...)
	out = append(out, "0000"...)

	sectionSize := uint32(len(irepPayload) + 8)
	out = append(out, "IREP"...)
	out = append(out, byte(sectionSize>>24), byte(sectionSize>>16), byte(sectionSize>>8), byte(sectionSize))
	out = append(out, irepPayload...)

	out = append(out, "END\x00"...)
	out = append(out, 0, 0, 0, 8)

	total := uint32(len(out))
	out[totalSizeOffset] = byte(total >> 24)
	out[totalSizeOffset+1] = byte(total >> 16)
	out[totalSizeOffset+2] = byte(total >> 8)
	out[totalSizeOffset+3] = byte(total)
	return out
}
