package streamarena

import "errors"

var (
	// ErrOutOfMemory indicates the pool could not satisfy a block request,
	// either because its capacity is exhausted or the backing allocator failed.
	ErrOutOfMemory = errors.New("streamarena: out of memory")

	// ErrOutOfRange indicates an offset or length beyond the written bytes of a
	// stream or the capacity of a range.
	ErrOutOfRange = errors.New("streamarena: offset out of range")

	// ErrInsufficientData indicates a read asked for more bytes than remain.
	ErrInsufficientData = errors.New("streamarena: insufficient data")

	// ErrStreamSealed is returned by write operations on a stream whose ranges
	// were handed to a Chain.
	ErrStreamSealed = errors.New("streamarena: stream sealed by flush")

	// ErrNotWritable is returned by write operations on a read-mode stream.
	ErrNotWritable = errors.New("streamarena: stream not in write mode")

	// ErrRangeShared is returned when writing into a range owned by a Chain.
	ErrRangeShared = errors.New("streamarena: range owned by chain")

	// ErrChainReleased is returned by accessors of a released Chain.
	ErrChainReleased = errors.New("streamarena: chain released")

	// ErrOutputReleased is returned by writes, seeks and flushes of a
	// released OutputStream.
	ErrOutputReleased = errors.New("streamarena: output stream released")
)
