package streamarena

import (
	"fmt"
	"io"
)

// ResetInput puts the stream in read mode over ranges, whose used lengths
// define the readable bytes. The cursor moves to the start. The ranges must
// not change while the stream reads them.
func (s *Stream) ResetInput(ranges []*Range) {
	s.ranges = ranges
	s.cur, s.pos, s.base, s.size = 0, 0, 0, 0
	s.mode = modeRead
	s.sealed = false
	s.allocatedBytes = 0
	for _, r := range ranges {
		s.allocatedBytes += r.Cap()
		s.size += r.used
	}
}

// RemainingSize returns the bytes between the cursor and the end.
func (s *Stream) RemainingSize() int {
	return s.Size() - s.Tell()
}

// AtEnd reports whether no bytes remain.
func (s *Stream) AtEnd() bool {
	return s.RemainingSize() == 0
}

// ReadBytes fills dst from the cursor, crossing range boundaries as needed.
// It fails without consuming anything when fewer than len(dst) bytes remain.
func (s *Stream) ReadBytes(dst []byte) error {
	if remaining := s.RemainingSize(); len(dst) > remaining {
		return fmt.Errorf("read %d bytes with %d remaining: %w", len(dst), remaining, ErrInsufficientData)
	}
	s.copyOut(dst)
	return nil
}

// SkipBytes advances the cursor by n bytes.
func (s *Stream) SkipBytes(n int) error {
	if n < 0 {
		return fmt.Errorf("skip %d bytes: %w", n, ErrOutOfRange)
	}
	if remaining := s.RemainingSize(); n > remaining {
		return fmt.Errorf("skip %d bytes with %d remaining: %w", n, remaining, ErrInsufficientData)
	}
	return s.SeekAbsolute(s.Tell() + n)
}

// Read implements io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	remaining := s.RemainingSize()
	if remaining == 0 {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := min(len(p), remaining)
	s.copyOut(p[:n])
	return n, nil
}

// ReadByte implements io.ByteReader.
func (s *Stream) ReadByte() (byte, error) {
	if s.AtEnd() {
		return 0, io.EOF
	}
	return ReadFixed[byte](s)
}

// copyOut reads len(dst) bytes at the cursor. The bytes must be available.
func (s *Stream) copyOut(dst []byte) {
	for len(dst) > 0 {
		r := s.ranges[s.cur]
		n := copy(dst, r.buf[s.pos:r.used])
		s.pos += n
		dst = dst[n:]
		if len(dst) == 0 {
			break
		}
		s.base += r.used
		s.cur++
		s.pos = 0
	}
}
