package streamarena

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/grailbio/base/log"
)

type rangeState uint8

const (
	// rangeBorrowed ranges are mutable by the stream holding them and live
	// as long as the arena (or caller) that provided their memory.
	rangeBorrowed rangeState = iota
	// rangeShared ranges were flushed into a Chain; their bytes are frozen
	// and their lifetime follows the chain's reference counts.
	rangeShared
)

// Range is a contiguous span of bytes with a used length. Capacity is fixed
// at creation. A Range from an Arena borrows a slice of one arena block.
type Range struct {
	buf  []byte
	used int

	// limit is the writable extent for a write-mode stream. It equals the
	// capacity until the stream abandons the range's tail.
	limit int

	// block and offset locate buf inside an arena block. block is nil for
	// caller-owned ranges.
	block  *memory.Buffer
	offset int

	state rangeState
}

// NewRange wraps caller-owned memory, typically to feed a read-mode stream.
// It panics if used is outside [0, len(buf)].
func NewRange(buf []byte, used int) *Range {
	if used < 0 || used > len(buf) {
		log.Panicf("range: used %d outside capacity %d", used, len(buf))
	}
	return &Range{buf: buf, used: used, limit: len(buf)}
}

// Cap returns the capacity of the range.
func (r *Range) Cap() int { return len(r.buf) }

// Len returns the number of used bytes.
func (r *Range) Len() int { return r.used }

// Bytes returns the used bytes without copying.
func (r *Range) Bytes() []byte { return r.buf[:r.used] }

// Shared reports whether the range was handed to a Chain.
func (r *Range) Shared() bool { return r.state == rangeShared }

// WriteAt copies p into the range at off and extends the used length when
// the write ends past it. The whole write must fit in the capacity.
func (r *Range) WriteAt(off int, p []byte) error {
	if r.state == rangeShared {
		return ErrRangeShared
	}
	if off < 0 || off+len(p) > len(r.buf) {
		return fmt.Errorf("range write [%d, %d) with capacity %d: %w", off, off+len(p), len(r.buf), ErrOutOfRange)
	}
	copy(r.buf[off:], p)
	if end := off + len(p); end > r.used {
		r.used = end
	}
	return nil
}

// ReadAt copies len(p) bytes starting at off into p. The read must stay
// within the used bytes.
func (r *Range) ReadAt(off int, p []byte) error {
	if off < 0 || off+len(p) > r.used {
		return fmt.Errorf("range read [%d, %d) with %d used: %w", off, off+len(p), r.used, ErrOutOfRange)
	}
	copy(p, r.buf[off:])
	return nil
}

// Clear resets the used length to zero so the range can be refilled.
func (r *Range) Clear() {
	r.used = 0
	r.limit = len(r.buf)
}

func (r *Range) String() string {
	return fmt.Sprintf("(%d/%d)", r.used, len(r.buf))
}
