package streamarena

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSafeArena(t *testing.T) {
	s := NewSafeArena(NewPool())
	if s == nil {
		t.Fatal("NewSafeArena returned nil")
	}
	if s.a == nil {
		t.Fatal("SafeArena.a is nil")
	}
}

func TestSafeArenaOperations(t *testing.T) {
	s := NewSafeArena(newCheckedPool(t))

	r, err := s.NewRange(100)
	require.NoError(t, err)
	assert.Equal(t, 100, r.Cap())
	assert.Equal(t, DefaultBlockQuantum, s.Size())

	s.Reset()
	assert.Equal(t, 0, s.Size())

	s.Release()
	// After release, operations should panic
	assert.Panics(t, func() { s.NewRange(100) })
}

func TestSafeArenaConcurrentStreams(t *testing.T) {
	pool := newCheckedPool(t)
	s := NewSafeArena(pool)
	defer s.Release()

	const numStreams = 8
	const numAppends = 500

	var wg sync.WaitGroup
	streams := make([]*Stream, numStreams)
	expected := make([][]byte, numStreams)
	errs := make([]error, numStreams)
	wg.Add(numStreams)
	for i := 0; i < numStreams; i++ {
		go func(id int) {
			defer wg.Done()
			st := NewStream(s)
			if errs[id] = st.StartWrite(0); errs[id] != nil {
				return
			}
			var ref bytes.Buffer
			for j := 0; j < numAppends; j++ {
				chunk := bytes.Repeat([]byte{byte(id)}, 1+(j*7)%50)
				if errs[id] = st.AppendBytes(chunk); errs[id] != nil {
					return
				}
				ref.Write(chunk)
			}
			streams[id] = st
			expected[id] = ref.Bytes()
		}(i)
	}
	wg.Wait()

	for i := 0; i < numStreams; i++ {
		require.NoError(t, errs[i])
		got := make([]byte, streams[i].Size())
		in := NewStream(nil)
		in.ResetInput(streams[i].Ranges())
		require.NoError(t, in.ReadBytes(got))
		assert.Equal(t, expected[i], got, "stream %d", i)
	}
	m := s.Metrics()
	assert.Greater(t, m.NumRanges, numStreams)
	assert.Less(t, pool.Stats().NumAllocs, int64(m.NumRanges))
}

func BenchmarkSafeArenaConcurrent(b *testing.B) {
	s := NewSafeArena(NewPool(), ArenaBlockQuantum(1<<20))
	defer s.Release()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			s.NewRange(64)
			i++
			if i%1000 == 999 {
				s.Reset()
			}
		}
	})
}
