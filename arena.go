package streamarena

import (
	"fmt"
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/grailbio/base/log"
)

// RangeAllocator hands out ranges to streams. Arena and SafeArena implement
// it.
type RangeAllocator interface {
	NewRange(minSize int) (*Range, error)
}

// block is one pool allocation sliced into ranges front to back.
type block struct {
	buf    *memory.Buffer // holds one reference owned by the arena
	offset int            // bytes handed out
}

// Arena draws page-aligned blocks from a Pool and slices them into ranges
// for any number of streams. Not goroutine-safe; use SafeArena when streams
// on different goroutines share one arena.
//
// Ranges never reuse memory: a block is only returned to the pool once the
// arena and every chain referencing it have released it.
type Arena struct {
	pool    *Pool
	opts    arenaOptions
	blocks  []*block
	current *block

	// quantum is the minimum size of the next block; it doubles per block up
	// to opts.maxBlockSize.
	quantum   int
	size      int
	numRanges int
	released  bool
}

var _ RangeAllocator = (*Arena)(nil)

// NewArena creates an Arena drawing from pool. No memory is requested until
// the first range.
func NewArena(pool *Pool, opts ...ArenaOption) *Arena {
	a := &Arena{pool: pool, opts: defaultArenaOptions}
	for _, opt := range opts {
		opt.Apply(&a.opts)
	}
	if a.opts.maxBlockSize < a.opts.quantum {
		a.opts.maxBlockSize = a.opts.quantum
	}
	a.quantum = a.opts.quantum
	return a
}

// NewRange returns a range of exactly minSize bytes. It is sliced from the
// current block when that block has room and from a new block otherwise.
// If the pool cannot provide the block the arena is left unchanged and the
// error wraps ErrOutOfMemory.
func (a *Arena) NewRange(minSize int) (*Range, error) {
	a.panicIfReleased()
	if minSize <= 0 {
		return nil, fmt.Errorf("arena range of %d bytes: %w", minSize, ErrOutOfRange)
	}
	if minSize > maxRequestSize {
		return nil, fmt.Errorf("arena range of %d bytes: %w", minSize, ErrOutOfMemory)
	}

	// Fast path: current block has room
	c := a.current
	if c == nil || alignOffset(c.offset)+minSize > c.buf.Len() {
		if err := a.grow(minSize); err != nil {
			return nil, err
		}
		c = a.current
		if minSize > c.buf.Len() {
			return nil, fmt.Errorf("arena block of %d bytes for %d-byte range: %w", c.buf.Len(), minSize, ErrOutOfMemory)
		}
	}

	off := alignOffset(c.offset)
	end := off + minSize
	c.offset = end
	a.numRanges++
	return &Range{
		buf:    c.buf.Bytes()[off:end:end],
		limit:  minSize,
		block:  c.buf,
		offset: off,
	}, nil
}

// Size returns the bytes reserved from the pool, in use or not.
func (a *Arena) Size() int {
	return a.size
}

// Reset drops the arena's hold on every block and restarts block sizing.
// Blocks still referenced by a Chain stay allocated until the chain is
// released. Ranges obtained before Reset must not be used afterwards.
func (a *Arena) Reset() {
	a.panicIfReleased()
	a.dropBlocks()
	a.quantum = a.opts.quantum
}

// Release drops all blocks and makes the arena unusable.
// Any subsequent operations will panic.
func (a *Arena) Release() {
	if a.released {
		return
	}
	a.dropBlocks()
	a.released = true
}

func (a *Arena) dropBlocks() {
	for _, b := range a.blocks {
		b.buf.Release()
	}
	if len(a.blocks) > 0 {
		log.Debug.Printf("arena: released %d blocks, %d bytes", len(a.blocks), a.size)
	}
	a.blocks = nil
	a.current = nil
	a.size = 0
	a.numRanges = 0
}

// grow requests a new block of at least min bytes from the pool.
func (a *Arena) grow(min int) error {
	if min > maxRequestSize {
		return fmt.Errorf("arena block for %d-byte range: %w", min, ErrOutOfMemory)
	}
	size := roundUp(min, PageSize)
	if size < a.quantum {
		size = a.quantum
	}
	buf, err := a.pool.AllocateBuffer(size)
	if err != nil {
		return fmt.Errorf("arena block for %d-byte range: %w", min, err)
	}
	b := &block{buf: buf}
	a.blocks = append(a.blocks, b)
	a.current = b
	a.size += buf.Len()
	if a.quantum < a.opts.maxBlockSize {
		a.quantum *= 2
		if a.quantum > a.opts.maxBlockSize {
			a.quantum = a.opts.maxBlockSize
		}
	}
	log.Debug.Printf("arena: block %d of %d bytes, %d reserved", len(a.blocks), buf.Len(), a.size)
	return nil
}

// panicIfReleased panics if the arena has been released.
func (a *Arena) panicIfReleased() {
	if a.released {
		log.Panicf("arena: use after Release()")
	}
}

// alignOffset aligns the offset up to pointer size alignment.
func alignOffset(off int) int {
	const align = int(unsafe.Sizeof(uintptr(0)))
	return (off + align - 1) &^ (align - 1)
}
