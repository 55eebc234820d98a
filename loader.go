// loader.go - bytecode loader: parses the RITE02 container into an IREP tree

package mrubyc

import (
	"encoding/binary"
	"fmt"
	"math"
)

// numericByteOrder is the byte order used for IREP literal payloads
// (INT32/INT64/FLOAT), as opposed to the container's structural fields,
// which are always big-endian. This is a build-time producer choice the
// loader must simply trust; we default to little-endian, matching the
// reference producer most bytecode in this ecosystem is built with. It is
// an unexported var, so only code inside this package can change it.
var numericByteOrder binary.ByteOrder = binary.LittleEndian

func be16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
func be32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

func float64frombits(bits uint64) float64 { return math.Float64frombits(bits) }

const headerIdent = "RITE02"

// Load parses a complete .mrb-style container and returns its root IREP.
// It is strictly sequential: on any failure (bad header, truncated
// section, unknown literal tag, inconsistent record_size) it returns a
// non-nil error and no partially-built tree escapes (Go's GC reclaims
// whatever was allocated; there is no explicit free step to forget).
func Load(data []byte) (*IREP, error) {
	if len(data) < 20 || string(data[0:6]) != headerIdent {
		return nil, ErrBadHeader
	}
	totalSize := be32(data[8:12])
	if int(totalSize) > len(data) {
		return nil, ErrTruncated
	}

	pos := 20
	for pos+8 <= len(data) {
		tag := string(data[pos : pos+4])
		sectionSize := be32(data[pos+4 : pos+8])
		if sectionSize < 8 || pos+int(sectionSize) > len(data) {
			return nil, ErrTruncated
		}
		payloadStart := pos + 8
		payloadEnd := pos + int(sectionSize)

		switch tag {
		case "END\x00":
			return nil, fmt.Errorf("%w: no IREP section", ErrTruncated)
		case "IREP":
			root, _, err := decodeIREP(data, payloadStart)
			if err != nil {
				return nil, err
			}
			return root, nil
		default:
			// Unknown section (e.g. DEBUG/LINENO): skip.
		}
		pos = payloadEnd
	}
	return nil, ErrTruncated
}

// decodeIREP parses one IREP record (and, recursively, its children)
// starting at pos, returning the node and the position just past the
// entire nested subtree.
func decodeIREP(data []byte, pos int) (*IREP, int, error) {
	start := pos
	if pos+4 > len(data) {
		return nil, 0, ErrTruncated
	}
	recordSize := be32(data[pos : pos+4])
	pos += 4

	if pos+10 > len(data) {
		return nil, 0, ErrTruncated
	}
	r := &IREP{raw: data}
	r.NLocals = be16(data[pos : pos+2])
	pos += 2
	r.NRegs = be16(data[pos : pos+2])
	pos += 2
	rlen := be16(data[pos : pos+2])
	pos += 2
	clen := be16(data[pos : pos+2])
	pos += 2
	ilen := be16(data[pos : pos+2])
	pos += 2

	if pos+int(ilen) > len(data) {
		return nil, 0, ErrTruncated
	}
	r.instructions = data[pos : pos+int(ilen)]
	pos += int(ilen)

	if pos+int(clen)*13 > len(data) {
		return nil, 0, ErrTruncated
	}
	r.Catches = make([]CatchHandler, clen)
	for i := range r.Catches {
		r.Catches[i] = CatchHandler{
			Type:   data[pos],
			Begin:  be32(data[pos+1 : pos+5]),
			End:    be32(data[pos+5 : pos+9]),
			Target: be32(data[pos+9 : pos+13]),
		}
		pos += 13
	}

	if pos+2 > len(data) {
		return nil, 0, ErrTruncated
	}
	plen := be16(data[pos : pos+2])
	pos += 2
	r.poolOffsets = make([]uint32, plen)
	for i := 0; i < int(plen); i++ {
		if pos+1 > len(data) {
			return nil, 0, ErrTruncated
		}
		r.poolOffsets[i] = uint32(pos)
		tag := poolTag(data[pos])
		bodyStart := pos + 1
		switch tag {
		case poolStr, poolSStr:
			if bodyStart+2 > len(data) {
				return nil, 0, ErrTruncated
			}
			n := int(be16(data[bodyStart : bodyStart+2]))
			end := bodyStart + 2 + n + 1 // + NUL
			if end > len(data) {
				return nil, 0, ErrTruncated
			}
			pos = end
		case poolInt32:
			pos = bodyStart + 4
		case poolInt64, poolFloat:
			pos = bodyStart + 8
		default:
			return nil, 0, fmt.Errorf("%w: 0x%02x", ErrBadLiteral, tag)
		}
		if pos > len(data) {
			return nil, 0, ErrTruncated
		}
	}

	if pos+2 > len(data) {
		return nil, 0, ErrTruncated
	}
	slen := be16(data[pos : pos+2])
	pos += 2
	r.Syms = make([]SymID, slen)
	for i := 0; i < int(slen); i++ {
		if pos+2 > len(data) {
			return nil, 0, ErrTruncated
		}
		n := int(be16(data[pos : pos+2]))
		pos += 2
		if pos+n+1 > len(data) {
			return nil, 0, ErrTruncated
		}
		name := string(data[pos : pos+n])
		pos += n + 1 // + NUL
		r.Syms[i] = Intern(name)
	}

	ownSize := uint32(pos - start)
	if recordSize != ownSize {
		return nil, 0, fmt.Errorf("%w: declared %d, actual %d", ErrRecordSize, recordSize, ownSize)
	}

	r.Children = make([]*IREP, rlen)
	for i := 0; i < int(rlen); i++ {
		child, next, err := decodeIREP(data, pos)
		if err != nil {
			return nil, 0, err
		}
		r.Children[i] = child
		pos = next
	}

	return r, pos, nil
}
