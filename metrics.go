package streamarena

// SizeInUse returns the bytes handed out as ranges, including alignment
// padding.
func (a *Arena) SizeInUse() int {
	sum := 0
	for _, b := range a.blocks {
		sum += b.offset
	}
	return sum
}

// NumBlocks returns the number of blocks the arena currently holds.
func (a *Arena) NumBlocks() int {
	return len(a.blocks)
}

// NumRanges returns the number of ranges handed out since the last Reset.
func (a *Arena) NumRanges() int {
	return a.numRanges
}

// Capacity returns the total bytes of all blocks; same as Size.
func (a *Arena) Capacity() int {
	return a.size
}

// Utilization returns the ratio of bytes in use to total capacity (0.0 to 1.0).
// Returns 0.0 if the arena has no capacity.
func (a *Arena) Utilization() float64 {
	capacity := a.Capacity()
	if capacity == 0 {
		return 0
	}
	return float64(a.SizeInUse()) / float64(capacity)
}

// BlockQuantum returns the minimum size of the next block.
func (a *Arena) BlockQuantum() int {
	return a.quantum
}

// Metrics returns a snapshot of arena statistics.
func (a *Arena) Metrics() ArenaMetrics {
	return ArenaMetrics{
		SizeInUse:    a.SizeInUse(),
		Capacity:     a.Capacity(),
		NumBlocks:    a.NumBlocks(),
		NumRanges:    a.NumRanges(),
		BlockQuantum: a.BlockQuantum(),
		Utilization:  a.Utilization(),
	}
}

// ArenaMetrics contains statistical information about an arena.
type ArenaMetrics struct {
	SizeInUse    int     // Bytes handed out as ranges
	Capacity     int     // Bytes reserved from the pool
	NumBlocks    int     // Number of blocks
	NumRanges    int     // Ranges handed out
	BlockQuantum int     // Minimum size of the next block
	Utilization  float64 // Ratio of used to total capacity (0.0-1.0)
}

// Metrics thread-safely returns a snapshot of arena statistics.
func (s *SafeArena) Metrics() ArenaMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Metrics()
}
