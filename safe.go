package streamarena

import "sync"

// SafeArena is a mutex-protected wrapper around Arena for streams living on
// different goroutines. Each Stream still needs its own caller-side
// serialization; only the shared arena state is guarded here.
type SafeArena struct {
	mu sync.Mutex
	a  *Arena
}

var _ RangeAllocator = (*SafeArena)(nil)

// NewSafeArena creates a new thread-safe arena drawing from pool.
func NewSafeArena(pool *Pool, opts ...ArenaOption) *SafeArena {
	return &SafeArena{a: NewArena(pool, opts...)}
}

// NewRange thread-safely slices a range of minSize bytes, requesting a new
// block from the pool when needed.
func (s *SafeArena) NewRange(minSize int) (*Range, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.NewRange(minSize)
}

// Size thread-safely returns the bytes reserved from the pool.
func (s *SafeArena) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Size()
}

// Reset thread-safely drops the arena's hold on its blocks.
func (s *SafeArena) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.a.Reset()
}

// Release thread-safely drops all blocks and makes the arena unusable.
func (s *SafeArena) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.a.Release()
}
