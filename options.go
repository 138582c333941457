package streamarena

import (
	"math"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/powerpuffpenguin/easygo/option"
)

const (
	// PageSize is the allocation granule of a Pool.
	PageSize = 4096

	// DefaultBlockQuantum is the size of the first block an Arena requests.
	DefaultBlockQuantum = 2 * PageSize

	// DefaultMaxBlockSize caps the doubling of block sizes. Requests larger
	// than this still get a block of their own rounded-up size.
	DefaultMaxBlockSize = 1 << 20

	// maxRequestSize is the largest request that can be rounded up to a
	// page without overflowing.
	maxRequestSize = math.MaxInt - PageSize
)

var defaultPoolOptions = poolOptions{
	allocator: memory.DefaultAllocator,
}

type poolOptions struct {
	// capacity <= 0 means unlimited
	capacity  int64
	allocator memory.Allocator
}

type PoolOption = option.Option[poolOptions]

// PoolCapacity limits the bytes a Pool may have outstanding. Values < 1
// remove the limit.
func PoolCapacity(capacity int64) PoolOption {
	return option.New(func(opts *poolOptions) {
		opts.capacity = capacity
	})
}

// PoolAllocator sets the allocator that provides the pool's pages.
func PoolAllocator(allocator memory.Allocator) PoolOption {
	return option.New(func(opts *poolOptions) {
		if allocator == nil {
			opts.allocator = memory.DefaultAllocator
		} else {
			opts.allocator = allocator
		}
	})
}

var defaultArenaOptions = arenaOptions{
	quantum:      DefaultBlockQuantum,
	maxBlockSize: DefaultMaxBlockSize,
}

type arenaOptions struct {
	quantum      int
	maxBlockSize int
}

type ArenaOption = option.Option[arenaOptions]

// ArenaBlockQuantum sets the size of the first block. It is rounded up to a
// whole number of pages.
func ArenaBlockQuantum(quantum int) ArenaOption {
	return option.New(func(opts *arenaOptions) {
		if quantum > 0 {
			opts.quantum = roundUp(quantum, PageSize)
		}
	})
}

// ArenaMaxBlockSize caps block doubling.
func ArenaMaxBlockSize(size int) ArenaOption {
	return option.New(func(opts *arenaOptions) {
		if size > 0 {
			opts.maxBlockSize = roundUp(size, PageSize)
		}
	})
}

func roundUp(n, multiple int) int {
	return (n + multiple - 1) / multiple * multiple
}

// nextPowerOfTwo returns the smallest power of two >= n, and 1 for n <= 1.
func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
