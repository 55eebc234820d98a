// irep.go - instruction representation: one method/block's immutable body

package mrubyc

// poolTag identifies the literal pool entry kind, matching the reference
// loader's irep_pool_type enum exactly (the wire values are bit-exact).
type poolTag byte

const (
	poolStr   poolTag = 0
	poolInt32 poolTag = 1
	poolSStr  poolTag = 2
	poolInt64 poolTag = 3
	poolFloat poolTag = 5
)

// CatchHandler is one exception-handler record: a fixed 13-byte entry
// holding a type byte, the PC range it guards, and the PC to jump to when
// it fires. The interpreter does not consult Type: any handler whose range
// covers the PC fires, whatever the exception's class.
type CatchHandler struct {
	Type  uint8
	Begin uint32
	End   uint32
	Target uint32
}

// IREP is one method/block's compiled body: instruction bytes, a lazily-
// materialized literal pool, a resolved symbol table, catch handlers, and
// child IREPs (nested blocks/methods). It is immutable once loaded and is
// borrowed, never refcounted, by every task that runs it.
type IREP struct {
	NLocals uint16
	NRegs   uint16

	instructions []byte

	Catches []CatchHandler

	raw         []byte   // the whole loaded buffer; not copied (zero-copy over the caller's bytes)
	poolOffsets []uint32 // byte offset of literal n within raw

	Syms []SymID // resolved (interned) symbol ids, in file order

	Children []*IREP
}

// Ilen, Plen, Slen, Rlen, Clen mirror the container format's named counters
// directly (derivable from the slices above, exposed for the loader
// round-trip tests and for host introspection).
func (r *IREP) Ilen() int { return len(r.instructions) }
func (r *IREP) Plen() int { return len(r.poolOffsets) }
func (r *IREP) Slen() int { return len(r.Syms) }
func (r *IREP) Rlen() int { return len(r.Children) }
func (r *IREP) Clen() int { return len(r.Catches) }

// PoolValue decodes literal n on demand. Materialization is lazy: the
// loader only recorded a byte offset at load time.
func (r *IREP) PoolValue(vm *VM, n int) (Value, error) {
	if n < 0 || n >= len(r.poolOffsets) {
		return Nil, errLoadInvalid
	}
	off := r.poolOffsets[n]
	tag := poolTag(r.raw[off])
	body := r.raw[off+1:]

	switch tag {
	case poolStr, poolSStr:
		if len(body) < 2 {
			return Nil, errLoadInvalid
		}
		n := int(be16(body))
		if len(body) < 2+n+1 {
			return Nil, errLoadInvalid
		}
		return StringValue(vm, string(body[2:2+n])), nil
	case poolInt32:
		if len(body) < 4 {
			return Nil, errLoadInvalid
		}
		return IntValue(int64(int32(numericByteOrder.Uint32(body[:4])))), nil
	case poolInt64:
		if len(body) < 8 {
			return Nil, errLoadInvalid
		}
		return IntValue(int64(numericByteOrder.Uint64(body[:8]))), nil
	case poolFloat:
		if len(body) < 8 {
			return Nil, errLoadInvalid
		}
		bits := numericByteOrder.Uint64(body[:8])
		return FloatValue(float64frombits(bits)), nil
	default:
		return Nil, errLoadInvalid
	}
}
