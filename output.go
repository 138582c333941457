package streamarena

import (
	"fmt"
	"io"
)

// OutputStream is a write stream that owns its arena. Its bytes are handed
// off with Chain; Release drops the arena, after which only chains keep the
// memory alive. Writes, seeks and flushes after Release fail with
// ErrOutputReleased.
type OutputStream struct {
	arena    *Arena
	stream   *Stream
	released bool
}

// NewOutputStream creates an output stream whose first range is sized for
// initialSize bytes.
func NewOutputStream(pool *Pool, initialSize int, opts ...ArenaOption) (*OutputStream, error) {
	a := NewArena(pool, opts...)
	s := NewStream(a)
	if err := s.StartWrite(initialSize); err != nil {
		a.Release()
		return nil, err
	}
	return &OutputStream{arena: a, stream: s}, nil
}

// Write implements io.Writer.
func (o *OutputStream) Write(p []byte) (int, error) {
	if o.released {
		return 0, ErrOutputReleased
	}
	return o.stream.Write(p)
}

// WriteString appends the bytes of s.
func (o *OutputStream) WriteString(s string) (int, error) {
	if o.released {
		return 0, ErrOutputReleased
	}
	return o.stream.WriteString(s)
}

// Seek implements io.Seeker. The target must lie within the bytes written
// so far.
func (o *OutputStream) Seek(offset int64, whence int) (int64, error) {
	if o.released {
		return 0, ErrOutputReleased
	}
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(o.stream.Tell())
	case io.SeekEnd:
		base = int64(o.stream.Size())
	default:
		return 0, fmt.Errorf("seek whence %d: %w", whence, ErrOutOfRange)
	}
	target := base + offset
	if err := o.stream.SeekAbsolute(int(target)); err != nil {
		return 0, err
	}
	return target, nil
}

// Tell returns the write position.
func (o *OutputStream) Tell() int {
	return o.stream.Tell()
}

// Size returns the number of bytes written.
func (o *OutputStream) Size() int {
	return o.stream.Size()
}

// Stream returns the underlying write stream.
func (o *OutputStream) Stream() *Stream {
	return o.stream
}

// Arena returns the arena owned by the output stream.
func (o *OutputStream) Arena() *Arena {
	return o.arena
}

// Chain flushes the written bytes into a Chain and seals the stream.
func (o *OutputStream) Chain() (*Chain, error) {
	if o.released {
		return nil, ErrOutputReleased
	}
	return Flush(o.stream)
}

// Release drops the output stream's hold on its memory.
func (o *OutputStream) Release() {
	o.arena.Release()
	o.released = true
}
