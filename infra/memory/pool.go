package memory

import (
	"fmt"
	"unsafe"

	"github.com/cockroachdb/errors"
)

// DefaultBlockSize is the number of slots added per growth step.
const DefaultBlockSize = 4096

// Handle identifies a live pool slot. The low 32 bits carry the slot index
// plus one, the high 32 bits the slot generation at allocation time. The zero
// Handle is Nil.
type Handle uint64

// Nil is the handle that refers to nothing.
const Nil Handle = 0

func makeHandle(idx, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(idx+1))
}

func (h Handle) index() uint32 { return uint32(h) - 1 }
func (h Handle) gen() uint32   { return uint32(h >> 32) }

func (h Handle) String() string {
	if h == Nil {
		return "nil"
	}
	return fmt.Sprintf("%d@%d", h.index(), h.gen())
}

type slot[T any] struct {
	val  T
	gen  uint32
	next uint32 // free list link, index+1, 0 ends the list
	live bool
}

// Pool is a fixed-block arena of T. Slots never move once a block is
// allocated, so pointers returned by Get stay valid while the handle is live.
// Unused slots are threaded on an embedded free list; Alloc and Free are O(1)
// and only growth touches the Go allocator.
type Pool[T any] struct {
	blocks    [][]slot[T]
	blockSize uint32
	free      uint32
	allocated int
	capacity  int
}

// NewPool returns a pool that grows blockSize slots at a time. The first
// block is allocated eagerly.
func NewPool[T any](blockSize int) *Pool[T] {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	p := &Pool[T]{blockSize: uint32(blockSize)}
	p.grow()
	return p
}

// Alloc hands out a zeroed slot, growing the pool when the free list is empty.
func (p *Pool[T]) Alloc() (Handle, *T) {
	if p.free == 0 {
		p.grow()
	}
	idx := p.free - 1
	s := p.slot(idx)
	p.free = s.next
	s.next = 0
	s.live = true
	p.allocated++
	return makeHandle(idx, s.gen), &s.val
}

// Free zeroes the slot behind h and puts it back on the free list. Freeing a
// handle that is not live panics.
func (p *Pool[T]) Free(h Handle) {
	s := p.resolve(h)
	var zero T
	s.val = zero
	s.live = false
	s.gen++
	s.next = p.free
	p.free = h.index() + 1
	p.allocated--
}

// Get returns the element behind a live handle. A stale handle panics.
func (p *Pool[T]) Get(h Handle) *T {
	return &p.resolve(h).val
}

// Live reports whether h still refers to an allocated slot.
func (p *Pool[T]) Live(h Handle) bool {
	if h == Nil || int(h.index()) >= p.capacity {
		return false
	}
	s := p.slot(h.index())
	return s.live && s.gen == h.gen()
}

// Allocated is the number of live slots.
func (p *Pool[T]) Allocated() int { return p.allocated }

// Capacity is the total number of slots owned by the pool. It never shrinks.
func (p *Pool[T]) Capacity() int { return p.capacity }

// Blocks is the number of blocks allocated so far.
func (p *Pool[T]) Blocks() int { return len(p.blocks) }

// MemoryBytes is the footprint of all blocks, free or not.
func (p *Pool[T]) MemoryBytes() uintptr {
	var s slot[T]
	return uintptr(len(p.blocks)) * uintptr(p.blockSize) * unsafe.Sizeof(s)
}

func (p *Pool[T]) slot(idx uint32) *slot[T] {
	return &p.blocks[idx/p.blockSize][idx%p.blockSize]
}

func (p *Pool[T]) resolve(h Handle) *slot[T] {
	if h == Nil || int(h.index()) >= p.capacity {
		panic(errors.AssertionFailedf("memory: handle %s out of range", h))
	}
	s := p.slot(h.index())
	if !s.live || s.gen != h.gen() {
		panic(errors.AssertionFailedf("memory: stale handle %s", h))
	}
	return s
}

// grow appends one block and pushes its slots onto the free list back to
// front, so the block's first slot is handed out first.
func (p *Pool[T]) grow() {
	base := uint32(p.capacity)
	block := make([]slot[T], p.blockSize)
	for i := p.blockSize; i > 0; i-- {
		block[i-1].next = p.free
		p.free = base + i
	}
	p.blocks = append(p.blocks, block)
	p.capacity += int(p.blockSize)
}
