package streamarena

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/grailbio/base/log"
)

const (
	// minRangeSize is the first range of a write stream.
	minRangeSize = 128

	// smallRangeThreshold is the allocated size after which ranges grow in
	// steps of this many bytes until a page is reached.
	smallRangeThreshold = 512

	// maxUnsplitWidth is the widest fixed-size value kept within one range.
	maxUnsplitWidth = minRangeSize
)

type streamMode uint8

const (
	modeIdle streamMode = iota
	modeWrite
	modeRead
)

// Stream reads and writes bytes across an ordered sequence of ranges.
//
// In write mode (after StartWrite) appends grow the stream with ranges from
// its RangeAllocator, and SeekAbsolute allows overwriting bytes already
// written. In read mode (after ResetInput) the stream reads caller-supplied
// ranges and never grows.
//
// Stream is not goroutine-safe.
type Stream struct {
	alloc  RangeAllocator
	ranges []*Range

	// cur and pos locate the cursor: the range under it and the offset
	// within that range. A cursor at the end of a range moves to the next
	// range lazily. base is the used bytes of the ranges before cur.
	cur  int
	pos  int
	base int
	size int

	mode           streamMode
	sealed         bool
	allocatedBytes int
}

// NewStream creates a stream growing through alloc. alloc may be nil for
// streams used only in read mode.
func NewStream(alloc RangeAllocator) *Stream {
	return &Stream{alloc: alloc}
}

// StartWrite prepares an empty write stream with a first range sized for
// initialSize bytes.
func (s *Stream) StartWrite(initialSize int) error {
	if s.alloc == nil {
		return fmt.Errorf("start write without allocator: %w", ErrNotWritable)
	}
	// The previous slice may belong to the caller of ResetInput
	s.ranges = nil
	s.cur, s.pos, s.base, s.size = 0, 0, 0, 0
	s.mode = modeWrite
	s.sealed = false
	s.allocatedBytes = 0
	if initialSize < 0 {
		initialSize = 0
	}
	if err := s.extend(initialSize); err != nil {
		s.mode = modeIdle
		return err
	}
	return nil
}

// AppendBytes appends p, splitting it across as many ranges as needed. All
// missing capacity is requested before any byte is written, so an
// allocation failure leaves the stream unchanged.
func (s *Stream) AppendBytes(p []byte) error {
	if err := s.checkWrite(); err != nil {
		return err
	}
	if err := s.reserve(len(p)); err != nil {
		return err
	}
	s.copyIn(p)
	return nil
}

// Write implements io.Writer.
func (s *Stream) Write(p []byte) (int, error) {
	if err := s.AppendBytes(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteString appends the bytes of str.
func (s *Stream) WriteString(str string) (int, error) {
	return s.Write(unsafe.Slice(unsafe.StringData(str), len(str)))
}

// WriteByte implements io.ByteWriter.
func (s *Stream) WriteByte(c byte) error {
	return AppendFixed(s, c)
}

// appendUnsplit writes b without splitting it across ranges when the
// cursor is at the end of the stream: if the last range lacks room, the
// stream grows first and the old range's tail is abandoned.
func (s *Stream) appendUnsplit(b []byte) error {
	if err := s.checkWrite(); err != nil {
		return err
	}
	s.advanceWrite()
	r := s.ranges[s.cur]
	if s.pos+len(b) <= r.limit {
		s.copyIn(b)
		return nil
	}
	last := s.cur == len(s.ranges)-1
	if !last || s.pos != r.used || len(b) > maxUnsplitWidth {
		return s.AppendBytes(b)
	}
	if err := s.extend(len(b)); err != nil {
		return err
	}
	r.limit = r.used
	s.base += r.used
	s.cur++
	s.pos = 0
	s.copyIn(b)
	return nil
}

// SeekAbsolute moves the cursor to offset, which must not exceed Size().
// In write mode later writes overwrite existing bytes from there and grow
// the stream once they pass its end.
func (s *Stream) SeekAbsolute(offset int) error {
	if s.mode == modeWrite && s.sealed {
		return ErrStreamSealed
	}
	if offset < 0 || offset > s.size {
		return fmt.Errorf("seek to %d in stream of %d bytes: %w", offset, s.size, ErrOutOfRange)
	}
	base := 0
	for i, r := range s.ranges {
		if offset-base < r.used || i == len(s.ranges)-1 {
			s.cur, s.pos, s.base = i, offset-base, base
			return nil
		}
		base += r.used
	}
	s.cur, s.pos, s.base = 0, 0, 0
	return nil
}

// Tell returns the cursor's offset from the start of the stream.
func (s *Stream) Tell() int {
	return s.base + s.pos
}

// Size returns the number of bytes in the stream.
func (s *Stream) Size() int {
	return s.size
}

// LastRangeEnd returns the used bytes of the final range.
func (s *Stream) LastRangeEnd() int {
	if len(s.ranges) == 0 {
		return 0
	}
	return s.ranges[len(s.ranges)-1].used
}

// UsedBytes recounts the used bytes across ranges. It equals Size and
// exists for diagnostics.
func (s *Stream) UsedBytes() int {
	used := 0
	for _, r := range s.ranges {
		used += r.used
	}
	return used
}

// AllocatedBytes returns the summed capacity of the stream's ranges.
func (s *Stream) AllocatedBytes() int {
	return s.allocatedBytes
}

// NumRanges returns the number of ranges.
func (s *Stream) NumRanges() int {
	return len(s.ranges)
}

// Ranges returns the stream's ranges in order. The ranges are shared, not
// copied, and must not be written to while the stream uses them.
func (s *Stream) Ranges() []*Range {
	return append([]*Range(nil), s.ranges...)
}

// Sealed reports whether the stream's ranges were flushed to a Chain.
func (s *Stream) Sealed() bool {
	return s.sealed
}

// String renders the ranges as (position/size) pairs, marking the range
// under the cursor. Size is the capacity in write mode and the used length
// in read mode.
func (s *Stream) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Stream[lastRangeEnd %d, %d ranges (position/size) [", s.LastRangeEnd(), len(s.ranges))
	for i, r := range s.ranges {
		if i > 0 {
			sb.WriteByte(',')
		}
		size := r.used
		if s.mode == modeWrite {
			size = r.Cap()
		}
		switch {
		case i < s.cur:
			fmt.Fprintf(&sb, "(%d/%d)", r.used, size)
		case i == s.cur:
			fmt.Fprintf(&sb, "(%d/%d current)", s.pos, size)
		default:
			fmt.Fprintf(&sb, "(0/%d)", size)
		}
	}
	sb.WriteString("]]")
	return sb.String()
}

func (s *Stream) checkWrite() error {
	if s.mode != modeWrite {
		return ErrNotWritable
	}
	if s.sealed {
		return ErrStreamSealed
	}
	return nil
}

// reserve makes sure n bytes fit between the cursor and the end of the
// last range, adding one range if they do not.
func (s *Stream) reserve(n int) error {
	avail := s.ranges[s.cur].limit - s.pos
	for i := s.cur + 1; i < len(s.ranges); i++ {
		avail += s.ranges[i].limit
	}
	if avail >= n {
		return nil
	}
	return s.extend(n - avail)
}

// extend appends a range sized by the growth policy for bytes more bytes.
func (s *Stream) extend(bytes int) error {
	r, err := s.alloc.NewRange(s.newRangeSize(bytes))
	if err != nil {
		return fmt.Errorf("extend stream by %d bytes: %w", bytes, err)
	}
	s.ranges = append(s.ranges, r)
	s.allocatedBytes += r.Cap()
	return nil
}

// newRangeSize returns the size of the next range. Below a page ranges come
// in 128-byte steps until 512 bytes are allocated and in 512-byte steps after
// that, or the next power of two of the request if larger; from a page on
// they cover the request in whole pages.
func (s *Stream) newRangeSize(bytes int) int {
	if bytes > maxRequestSize {
		// Left for the allocator to reject
		return bytes
	}
	if s.allocatedBytes >= PageSize || bytes > PageSize {
		return roundUp(max(bytes, 1), PageSize)
	}
	step := minRangeSize
	if s.allocatedBytes >= smallRangeThreshold {
		step = smallRangeThreshold
	}
	return max(step, nextPowerOfTwo(bytes))
}

// advanceWrite moves a cursor sitting at the end of a non-final range to the
// start of the next one.
func (s *Stream) advanceWrite() {
	for s.cur < len(s.ranges)-1 && s.pos >= s.ranges[s.cur].limit {
		s.base += s.ranges[s.cur].used
		s.cur++
		s.pos = 0
	}
}

// copyIn writes p at the cursor. Capacity must already be reserved.
func (s *Stream) copyIn(p []byte) {
	for len(p) > 0 {
		s.advanceWrite()
		r := s.ranges[s.cur]
		n := copy(r.buf[s.pos:r.limit], p)
		if n == 0 {
			log.Panicf("stream: write of %d bytes past reserved capacity: %v", len(p), s)
		}
		s.pos += n
		if s.pos > r.used {
			s.size += s.pos - r.used
			r.used = s.pos
		}
		p = p[n:]
	}
}
