package streamarena

import (
	"fmt"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/grailbio/base/log"
)

// tryAllocator is implemented by backing allocators that report failure
// instead of panicking, such as the mmap allocator.
type tryAllocator interface {
	TryAllocate(size int) ([]byte, error)
}

// Pool hands out page-granular memory and keeps the allocation statistics
// used to verify that arenas amortize allocations and that chains release
// everything they hold. Pool is safe for concurrent use.
//
// Pool implements memory.Allocator so that ref-counted arrow buffers can
// free their bytes back into it.
type Pool struct {
	opts poolOptions

	numAllocs         atomic.Int64
	numFrees          atomic.Int64
	outstandingAllocs atomic.Int64
	outstandingBytes  atomic.Int64
}

// PoolStats is a snapshot of a Pool's counters.
type PoolStats struct {
	NumAllocs         int64 // Cumulative successful allocations
	NumFrees          int64 // Cumulative frees
	OutstandingAllocs int64 // Allocations not yet freed
	OutstandingBytes  int64 // Bytes not yet freed
	Capacity          int64 // Configured limit, 0 when unlimited
}

var _ memory.Allocator = (*Pool)(nil)

// NewPool creates a Pool. Without options it is unlimited and backed by
// memory.DefaultAllocator.
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{opts: defaultPoolOptions}
	for _, opt := range opts {
		opt.Apply(&p.opts)
	}
	return p
}

// TryAllocate returns size bytes rounded up to a whole number of pages.
// It fails with ErrOutOfMemory when the pool's capacity would be exceeded or
// the backing allocator cannot satisfy the request.
func (p *Pool) TryAllocate(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pool allocate %d bytes: %w", size, ErrOutOfRange)
	}
	if size > maxRequestSize {
		return nil, fmt.Errorf("pool allocate %d bytes: %w", size, ErrOutOfMemory)
	}
	n := roundUp(size, PageSize)
	if err := p.reserve(int64(n)); err != nil {
		return nil, err
	}

	buf, err := p.allocate(n)
	if err != nil || len(buf) != n {
		p.outstandingBytes.Add(-int64(n))
		if err == nil {
			err = fmt.Errorf("backing allocator returned %d bytes", len(buf))
		}
		return nil, fmt.Errorf("pool allocate %d bytes: %w: %v", n, ErrOutOfMemory, err)
	}
	p.numAllocs.Add(1)
	p.outstandingAllocs.Add(1)
	return buf, nil
}

// allocate asks the backing allocator for n bytes. Allocators that panic on
// failure, as arrow's do, report it as an error.
func (p *Pool) allocate(n int) (buf []byte, err error) {
	if ta, ok := p.opts.allocator.(tryAllocator); ok {
		return ta.TryAllocate(n)
	}
	defer func() {
		if r := recover(); r != nil {
			buf, err = nil, fmt.Errorf("backing allocator: %v", r)
		}
	}()
	return p.opts.allocator.Allocate(n), nil
}

func (p *Pool) reserve(n int64) error {
	if p.opts.capacity <= 0 {
		p.outstandingBytes.Add(n)
		return nil
	}
	for {
		cur := p.outstandingBytes.Load()
		if cur+n > p.opts.capacity {
			return fmt.Errorf("pool allocate %d bytes with %d of %d outstanding: %w",
				n, cur, p.opts.capacity, ErrOutOfMemory)
		}
		if p.outstandingBytes.CompareAndSwap(cur, cur+n) {
			return nil
		}
	}
}

// Allocate implements memory.Allocator. It panics when TryAllocate fails,
// which is how arrow allocators report exhaustion.
func (p *Pool) Allocate(size int) []byte {
	buf, err := p.TryAllocate(size)
	if err != nil {
		log.Panicf("%v", err)
	}
	return buf
}

// Reallocate implements memory.Allocator.
func (p *Pool) Reallocate(size int, b []byte) []byte {
	if size <= cap(b) {
		return b[:size]
	}
	nb := p.Allocate(size)
	copy(nb, b)
	p.Free(b)
	return nb[:size]
}

// Free returns b, which must come from this pool. b may have been
// resliced; its capacity identifies the allocation.
func (p *Pool) Free(b []byte) {
	if cap(b) == 0 {
		return
	}
	b = b[:cap(b)]
	n := int64(len(b))
	p.opts.allocator.Free(b)
	p.numFrees.Add(1)
	p.outstandingAllocs.Add(-1)
	p.outstandingBytes.Add(-n)
}

// AllocateBuffer returns a ref-counted buffer of size bytes (rounded up to
// pages) holding one reference. Its memory returns to the pool when the last
// reference is released.
func (p *Pool) AllocateBuffer(size int) (*memory.Buffer, error) {
	buf, err := p.TryAllocate(size)
	if err != nil {
		return nil, err
	}
	return memory.NewBufferWithAllocator(buf, p), nil
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool) Stats() PoolStats {
	capacity := p.opts.capacity
	if capacity < 0 {
		capacity = 0
	}
	return PoolStats{
		NumAllocs:         p.numAllocs.Load(),
		NumFrees:          p.numFrees.Load(),
		OutstandingAllocs: p.outstandingAllocs.Load(),
		OutstandingBytes:  p.outstandingBytes.Load(),
		Capacity:          capacity,
	}
}
