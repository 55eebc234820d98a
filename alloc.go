// alloc.go - fixed-pool allocator backing all runtime allocation

package mrubyc

import "sync"

// TaskID tags pool blocks (and, by extension, heap values) with the task
// that owns them, so a terminated task's allocations can be released in
// one pass. NoOwner marks blocks not attributed to any task (e.g. process-
// wide symbol/class bookkeeping).
type TaskID int32

// NoOwner is the owner tag used for allocations made outside any task
// context.
const NoOwner TaskID = -1

const minFragment = 32 // minimum remainder kept when splitting a block

// noPoolHandle marks an objHeader or Task that holds no pool reservation:
// process-wide values (NoOwner) and objects built before a pool reservation
// could be obtained.
const noPoolHandle int32 = -1

// Per-object and per-register accounting sizes charged against a task's
// pool budget. These are not literal payload sizes for the Go structs
// involved (those live on the Go heap regardless, since they carry
// GC-traced pointers/interfaces a raw byte buffer cannot hold); they are
// representative footprints used so the pool's capacity and fragmentation
// stats reflect real allocation pressure instead of standing empty.
const (
	baseObjectFootprint = 32 // charged per heap object header + fixed fields
	valueFootprint      = 40 // charged per Value-sized slot (array/hash elements, registers)
)

// blockDesc describes one carved region of the pool's backing buffer. The
// list is kept in address order via prev/next, exactly as the reference
// allocator's block header links neighbours for coalescing; unlike the
// reference implementation the header itself is not stored inside the
// byte buffer; it is deliberately a separate Go slice so the pool never
// needs unsafe pointer reinterpretation of caller memory; the byte buffer
// stays 100% usable payload, and handles (slice indices) stand in for the
// pointers a C allocator would return.
type blockDesc struct {
	offset   uint32
	size     uint32
	used     bool
	owner    TaskID
	prev     int32
	next     int32
	freeSlot int32 // next free slot in the descriptor freelist, -1 if not free
}

// Pool is a first-fit, immediately-coalescing allocator over a single
// caller-supplied byte buffer. It never grows, never panics, and never
// touches any memory outside buf.
type Pool struct {
	mu        sync.Mutex
	buf       []byte
	blocks    []blockDesc
	head      int32 // first block, address order
	freeDesc  int32 // head of the descriptor freelist, -1 if none
	usedBytes uint32
}

// NewPool carves a fresh allocator out of buf. buf is not copied; the pool
// hands back slices into it from Alloc.
func NewPool(buf []byte) *Pool {
	p := &Pool{buf: buf, head: 0, freeDesc: -1}
	p.blocks = append(p.blocks, blockDesc{
		offset: 0,
		size:   uint32(len(buf)),
		used:   false,
		owner:  NoOwner,
		prev:   -1,
		next:   -1,
	})
	return p
}

func alignUp(n uint32) uint32 {
	const align = 8
	return (n + align - 1) &^ (align - 1)
}

func (p *Pool) newDesc(d blockDesc) int32 {
	if p.freeDesc != -1 {
		idx := p.freeDesc
		p.freeDesc = p.blocks[idx].freeSlot
		p.blocks[idx] = d
		return idx
	}
	p.blocks = append(p.blocks, d)
	return int32(len(p.blocks) - 1)
}

func (p *Pool) releaseDesc(idx int32) {
	p.blocks[idx] = blockDesc{freeSlot: p.freeDesc}
	p.freeDesc = idx
}

// Alloc carves out a size-byte region owned by owner. Returns ok=false on
// exhaustion or fragmentation too severe to satisfy the request; it never
// panics or grows the underlying buffer.
func (p *Pool) Alloc(size uint32, owner TaskID) (handle int32, data []byte, ok bool) {
	if size == 0 {
		size = 1
	}
	size = alignUp(size)

	p.mu.Lock()
	defer p.mu.Unlock()

	cur := p.head
	for cur != -1 {
		b := &p.blocks[cur]
		if !b.used && b.size >= size {
			remainder := b.size - size
			if remainder >= minFragment {
				newIdx := p.newDesc(blockDesc{
					offset: b.offset + size,
					size:   remainder,
					used:   false,
					owner:  NoOwner,
					prev:   cur,
					next:   b.next,
				})
				if b.next != -1 {
					p.blocks[b.next].prev = newIdx
				}
				b = &p.blocks[cur]
				b.next = newIdx
				b.size = size
			}
			b.used = true
			b.owner = owner
			p.usedBytes += b.size
			return cur, p.buf[b.offset : b.offset+b.size : b.offset+b.size], true
		}
		cur = b.next
	}
	return 0, nil, false
}

// Free releases handle, coalescing with any free neighbours.
func (p *Pool) Free(handle int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.freeLocked(handle)
}

func (p *Pool) freeLocked(handle int32) {
	b := &p.blocks[handle]
	if !b.used {
		return
	}
	b.used = false
	b.owner = NoOwner
	p.usedBytes -= b.size
	p.coalesce(handle)
}

// coalesce merges the block at idx with a free predecessor and/or
// successor, as the reference allocator's "immediate coalescing" policy
// requires.
func (p *Pool) coalesce(idx int32) {
	b := &p.blocks[idx]
	if next := b.next; next != -1 && !p.blocks[next].used {
		nb := p.blocks[next]
		b.size += nb.size
		b.next = nb.next
		if nb.next != -1 {
			p.blocks[nb.next].prev = idx
		}
		p.releaseDesc(next)
	}
	if prev := b.prev; prev != -1 && !p.blocks[prev].used {
		pb := &p.blocks[prev]
		pb.size += b.size
		pb.next = b.next
		if b.next != -1 {
			p.blocks[b.next].prev = prev
		}
		p.releaseDesc(idx)
		if idx == p.head {
			p.head = prev
		}
	}
}

// Realloc resizes handle's block to newSize, growing in place when the
// trailing neighbour is free and large enough; otherwise it allocates a
// new block, copies the old payload, and frees the original.
func (p *Pool) Realloc(handle int32, newSize uint32) (int32, []byte, bool) {
	newSize = alignUp(newSize)

	p.mu.Lock()
	b := p.blocks[handle]
	if newSize <= b.size {
		if rem := b.size - newSize; rem >= minFragment {
			newIdx := p.newDesc(blockDesc{offset: b.offset + newSize, size: rem, owner: NoOwner, prev: handle, next: b.next})
			if b.next != -1 {
				p.blocks[b.next].prev = newIdx
			}
			p.blocks[handle].next = newIdx
			p.blocks[handle].size = newSize
			p.usedBytes -= rem
			p.coalesce(newIdx)
		}
		data := p.buf[b.offset : b.offset+newSize : b.offset+newSize]
		p.mu.Unlock()
		return handle, data, true
	}
	if next := b.next; next != -1 {
		nb := p.blocks[next]
		if !nb.used && b.size+nb.size >= newSize {
			grow := newSize - b.size
			p.usedBytes += grow
			nb.offset += grow
			nb.size -= grow
			if nb.size == 0 {
				p.blocks[handle].next = nb.next
				if nb.next != -1 {
					p.blocks[nb.next].prev = handle
				}
				p.releaseDesc(next)
			} else {
				p.blocks[next] = nb
			}
			p.blocks[handle].size = newSize
			data := p.buf[b.offset : b.offset+newSize : b.offset+newSize]
			p.mu.Unlock()
			return handle, data, true
		}
	}
	owner := b.owner
	p.mu.Unlock()

	newHandle, data, ok := p.Alloc(newSize, owner)
	if !ok {
		return 0, nil, false
	}
	copy(data, p.buf[b.offset:b.offset+b.size])
	p.Free(handle)
	return newHandle, data, true
}

// FreeAllOwnedBy releases every block owned by owner, used at task
// teardown.
func (p *Pool) FreeAllOwnedBy(owner TaskID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur := p.head
	for cur != -1 {
		next := p.blocks[cur].next
		if p.blocks[cur].used && p.blocks[cur].owner == owner {
			p.freeLocked(cur)
		}
		cur = next
	}
}

// Stats reports pool-wide totals: total capacity, bytes in use, bytes
// free, and the number of distinct free fragments (a proxy for
// fragmentation pressure).
func (p *Pool) Stats() (total, used, free uint32, fragCount int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	total = uint32(len(p.buf))
	used = p.usedBytes
	cur := p.head
	for cur != -1 {
		b := &p.blocks[cur]
		if !b.used {
			free += b.size
			fragCount++
		}
		cur = b.next
	}
	return
}

// Data returns the payload slice for handle without altering anything.
func (p *Pool) Data(handle int32) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	b := p.blocks[handle]
	return p.buf[b.offset : b.offset+b.size : b.offset+b.size]
}
