package streamarena

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRange(t *testing.T) {
	tests := []struct {
		name string
		cap  int
		used int
		want int
	}{
		{"empty", 16, 0, 0},
		{"partial", 16, 5, 5},
		{"full", 16, 16, 16},
		{"nil buffer", 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRange(make([]byte, tt.cap), tt.used)
			assert.Equal(t, tt.cap, r.Cap())
			assert.Equal(t, tt.want, r.Len())
			assert.Len(t, r.Bytes(), tt.want)
		})
	}
}

func TestNewRangeUsedOutsideCapacity(t *testing.T) {
	for _, used := range []int{-1, 17} {
		assert.Panics(t, func() { NewRange(make([]byte, 16), used) }, "used %d", used)
	}
}

func TestRangeWriteReadAt(t *testing.T) {
	r := NewRange(make([]byte, 8), 0)

	require.NoError(t, r.WriteAt(2, []byte("abc")))
	assert.Equal(t, 5, r.Len())

	// Overwrite inside used bytes does not move the used mark
	require.NoError(t, r.WriteAt(0, []byte("xy")))
	assert.Equal(t, 5, r.Len())
	assert.Equal(t, "xyabc", string(r.Bytes()))

	err := r.WriteAt(6, []byte("abc"))
	assert.True(t, errors.Is(err, ErrOutOfRange), "err = %v", err)
	assert.Equal(t, 5, r.Len())

	got := make([]byte, 3)
	require.NoError(t, r.ReadAt(1, got))
	assert.Equal(t, "yab", string(got))

	err = r.ReadAt(4, got)
	assert.True(t, errors.Is(err, ErrOutOfRange), "err = %v", err)
	err = r.ReadAt(-1, got)
	assert.True(t, errors.Is(err, ErrOutOfRange), "err = %v", err)
}

func TestRangeClear(t *testing.T) {
	r := NewRange([]byte("hello"), 5)
	r.Clear()
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 5, r.Cap())
	assert.Equal(t, "(0/5)", r.String())
}

func TestRangeSharedRejectsWrites(t *testing.T) {
	r := NewRange(make([]byte, 4), 0)
	r.state = rangeShared
	assert.True(t, r.Shared())
	assert.Equal(t, ErrRangeShared, r.WriteAt(0, []byte{1}))
}
