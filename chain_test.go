package streamarena

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// heapAllocator hands out ranges that do not belong to any arena block.
type heapAllocator struct{}

func (heapAllocator) NewRange(minSize int) (*Range, error) {
	return NewRange(make([]byte, minSize), 0), nil
}

func writtenStream(t *testing.T, alloc RangeAllocator, n int) (*Stream, []byte) {
	t.Helper()
	payload := make([]byte, n)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	s := NewStream(alloc)
	require.NoError(t, s.StartWrite(0))
	require.NoError(t, s.AppendBytes(payload))
	return s, payload
}

func TestFlushZeroCopy(t *testing.T) {
	pool := newCheckedPool(t)
	a := NewArena(pool)
	defer a.Release()
	s, payload := writtenStream(t, a, 300)
	before := pool.Stats()

	c, err := Flush(s)
	require.NoError(t, err)
	defer c.Release()

	assert.Equal(t, before, pool.Stats())
	assert.Equal(t, 300, c.Len())
	require.Equal(t, 2, c.NumSegments())

	segs, err := c.Segments()
	require.NoError(t, err)
	for i, r := range s.Ranges() {
		assert.Same(t, &r.Bytes()[0], &segs[i][0], "segment %d is a copy", i)
		assert.True(t, r.Shared())
	}

	got, err := c.Bytes()
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestFlushSealsStream(t *testing.T) {
	a := NewArena(newCheckedPool(t))
	defer a.Release()
	s, _ := writtenStream(t, a, 50)

	c, err := Flush(s)
	require.NoError(t, err)
	defer c.Release()

	assert.True(t, s.Sealed())
	assert.Equal(t, 50, s.Size())
	assert.Equal(t, ErrStreamSealed, s.AppendBytes([]byte("x")))
	assert.Equal(t, ErrStreamSealed, AppendFixed(s, uint32(1)))
	assert.Equal(t, ErrStreamSealed, s.SeekAbsolute(0))
	assert.Equal(t, ErrRangeShared, s.Ranges()[0].WriteAt(0, []byte("x")))

	_, err = Flush(s)
	assert.Equal(t, ErrStreamSealed, err)

	// A sealed stream can be restarted on fresh ranges
	require.NoError(t, s.StartWrite(0))
	require.NoError(t, s.AppendBytes([]byte("again")))
	assert.Equal(t, 5, s.Size())
}

func TestFlushRequiresWriteStream(t *testing.T) {
	_, err := Flush(NewStream(nil))
	assert.Equal(t, ErrNotWritable, err)

	s := NewStream(nil)
	s.ResetInput([]*Range{NewRange([]byte("abc"), 3)})
	_, err = Flush(s)
	assert.Equal(t, ErrNotWritable, err)
}

func TestFlushEmptyStream(t *testing.T) {
	a := NewArena(newCheckedPool(t))
	defer a.Release()
	s := NewStream(a)
	require.NoError(t, s.StartWrite(0))

	c, err := Flush(s)
	require.NoError(t, err)
	defer c.Release()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.NumSegments())
	flat, err := c.Flatten()
	require.NoError(t, err)
	assert.Empty(t, flat)
}

func TestFlushCopiesRangesWithoutBlock(t *testing.T) {
	s, payload := writtenStream(t, heapAllocator{}, 300)
	c, err := Flush(s)
	require.NoError(t, err)
	defer c.Release()

	segs, err := c.Segments()
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.NotSame(t, &s.Ranges()[0].Bytes()[0], &segs[0][0])

	// The chain does not observe later changes to the caller's memory
	s.Ranges()[0].Bytes()[0] ^= 0xff
	got, err := c.Bytes()
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestChainOutlivesArena(t *testing.T) {
	pool := newCheckedPool(t)
	a := NewArena(pool)
	s, payload := writtenStream(t, a, 3000)

	c, err := Flush(s)
	require.NoError(t, err)
	clone, err := c.Clone()
	require.NoError(t, err)

	a.Release()
	assert.Equal(t, int64(1), pool.Stats().OutstandingAllocs)

	c.Release()
	assert.Equal(t, int64(1), pool.Stats().OutstandingAllocs)

	got, err := clone.Bytes()
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	clone.Release()
	stats := pool.Stats()
	assert.Equal(t, int64(0), stats.OutstandingAllocs)
	assert.Equal(t, int64(0), stats.OutstandingBytes)
	assert.Equal(t, stats.NumAllocs, stats.NumFrees)
}

func TestChainFlatten(t *testing.T) {
	pool := newCheckedPool(t)
	a := NewArena(pool)
	s, payload := writtenStream(t, a, 1000)

	c, err := Flush(s)
	require.NoError(t, err)
	require.Greater(t, c.NumSegments(), 1)
	clone, err := c.Clone()
	require.NoError(t, err)

	flat, err := clone.Flatten()
	require.NoError(t, err)
	assert.Equal(t, payload, flat)
	assert.Equal(t, 1, clone.NumSegments())
	assert.Greater(t, c.NumSegments(), 1)

	// The flattened clone holds no block references
	a.Release()
	c.Release()
	assert.Equal(t, int64(0), pool.Stats().OutstandingAllocs)
	assert.Equal(t, payload, flat)

	again, err := clone.Flatten()
	require.NoError(t, err)
	assert.Same(t, &flat[0], &again[0])
	clone.Release()
}

func TestChainSegmentsAfterFlatten(t *testing.T) {
	a := NewArena(newCheckedPool(t))
	defer a.Release()
	s, payload := writtenStream(t, a, 1000)

	c, err := Flush(s)
	require.NoError(t, err)
	defer c.Release()

	flat, err := c.Flatten()
	require.NoError(t, err)
	segs, err := c.Segments()
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Same(t, &flat[0], &segs[0][0])
	assert.Equal(t, payload, segs[0])
	assert.Equal(t, 1000, c.Len())
}

func TestChainFlattenSingleSegment(t *testing.T) {
	a := NewArena(newCheckedPool(t))
	defer a.Release()
	s, payload := writtenStream(t, a, 100)

	c, err := Flush(s)
	require.NoError(t, err)
	defer c.Release()
	require.Equal(t, 1, c.NumSegments())

	flat, err := c.Flatten()
	require.NoError(t, err)
	assert.Equal(t, payload, flat)
	assert.Same(t, &s.Ranges()[0].Bytes()[0], &flat[0])
}

func TestChainWriteTo(t *testing.T) {
	a := NewArena(newCheckedPool(t))
	defer a.Release()
	s, payload := writtenStream(t, a, 3000)

	c, err := Flush(s)
	require.NoError(t, err)
	defer c.Release()

	var buf bytes.Buffer
	n, err := c.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), n)
	assert.Equal(t, payload, buf.Bytes())

	// WriteTo leaves the chain intact
	assert.Equal(t, 3000, c.Len())
	buf.Reset()
	_, err = c.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, buf.Bytes())
}

func TestChainReleased(t *testing.T) {
	a := NewArena(newCheckedPool(t))
	defer a.Release()
	s, _ := writtenStream(t, a, 300)

	c, err := Flush(s)
	require.NoError(t, err)
	c.Release()

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.NumSegments())
	_, err = c.Segments()
	assert.True(t, errors.Is(err, ErrChainReleased))
	_, err = c.Clone()
	assert.True(t, errors.Is(err, ErrChainReleased))
	_, err = c.Flatten()
	assert.True(t, errors.Is(err, ErrChainReleased))
	_, err = c.Bytes()
	assert.True(t, errors.Is(err, ErrChainReleased))
	_, err = c.WriteTo(&bytes.Buffer{})
	assert.True(t, errors.Is(err, ErrChainReleased))

	assert.Panics(t, func() { c.Release() })
}

func TestChainConcurrentCloneRelease(t *testing.T) {
	pool := newCheckedPool(t)
	a := NewArena(pool)
	s, payload := writtenStream(t, a, 20000)

	c, err := Flush(s)
	require.NoError(t, err)
	a.Release()

	const numClones = 16
	clones := make([]*Chain, numClones)
	for i := range clones {
		clones[i], err = c.Clone()
		require.NoError(t, err)
	}
	c.Release()

	var wg sync.WaitGroup
	errs := make([]error, numClones)
	for i, clone := range clones {
		wg.Add(1)
		go func(i int, clone *Chain) {
			defer wg.Done()
			got, err := clone.Bytes()
			if err == nil && !bytes.Equal(payload, got) {
				err = errors.New("clone content mismatch")
			}
			errs[i] = err
			clone.Release()
		}(i, clone)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "clone %d", i)
	}
	assert.Equal(t, int64(0), pool.Stats().OutstandingAllocs)
}

func BenchmarkFlush(b *testing.B) {
	pool := NewPool()
	payload := make([]byte, 64<<10)
	b.SetBytes(int64(len(payload)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		a := NewArena(pool)
		s := NewStream(a)
		s.StartWrite(len(payload))
		s.AppendBytes(payload)
		c, _ := Flush(s)
		a.Release()
		c.Release()
	}
}
