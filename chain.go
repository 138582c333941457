package streamarena

import (
	"bytes"
	"io"
	"net"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/grailbio/base/log"
)

// Chain is an ordered list of ref-counted byte segments handed to consumers
// without copying. Each segment either references a slice of an arena block
// or holds bytes copied from a range that had no block.
//
// A Chain keeps the blocks it references alive: the memory returns to the
// pool once the arena and every chain and clone referencing it have been
// released. Reference counts are atomic, so clones may be released on any
// goroutine; a single Chain value must not be used concurrently.
type Chain struct {
	segs     []*memory.Buffer
	length   int
	released atomic.Bool
}

// Flush hands every non-empty range of a write stream to a new Chain without
// copying and seals the stream: its bytes are frozen and further writes or
// seeks fail with ErrStreamSealed. The stream keeps reporting its sizes.
func Flush(s *Stream) (*Chain, error) {
	if err := s.checkWrite(); err != nil {
		return nil, err
	}
	c := &Chain{}
	for _, r := range s.ranges {
		if r.used > 0 {
			var seg *memory.Buffer
			if r.block != nil {
				seg = memory.SliceBuffer(r.block, r.offset, r.used)
			} else {
				seg = memory.NewBufferBytes(bytes.Clone(r.Bytes()))
			}
			c.segs = append(c.segs, seg)
			c.length += r.used
		}
		r.state = rangeShared
	}
	s.sealed = true
	return c, nil
}

// Len returns the total number of bytes in the chain.
func (c *Chain) Len() int {
	if c.released.Load() {
		return 0
	}
	return c.length
}

// NumSegments returns the number of segments.
func (c *Chain) NumSegments() int {
	if c.released.Load() {
		return 0
	}
	return len(c.segs)
}

// Segments returns read-only views of the segments in order. The views are
// valid until the next Flatten or Release of this chain.
func (c *Chain) Segments() ([][]byte, error) {
	if c.released.Load() {
		return nil, ErrChainReleased
	}
	views := make([][]byte, len(c.segs))
	for i, seg := range c.segs {
		views[i] = seg.Bytes()
	}
	return views, nil
}

// Clone returns an independent chain referencing the same segments.
func (c *Chain) Clone() (*Chain, error) {
	if c.released.Load() {
		return nil, ErrChainReleased
	}
	for _, seg := range c.segs {
		seg.Retain()
	}
	return &Chain{
		segs:   append([]*memory.Buffer(nil), c.segs...),
		length: c.length,
	}, nil
}

// Flatten returns the chain's bytes as one contiguous slice. A
// multi-segment chain is coalesced into a single heap buffer and drops its
// references to the shared segments; other chains over the same segments
// are not affected, but views from an earlier Segments call may no longer be
// used. The returned slice stays valid until Release.
func (c *Chain) Flatten() ([]byte, error) {
	if c.released.Load() {
		return nil, ErrChainReleased
	}
	switch len(c.segs) {
	case 0:
		return []byte{}, nil
	case 1:
		return c.segs[0].Bytes(), nil
	}
	flat := make([]byte, 0, c.length)
	for _, seg := range c.segs {
		flat = append(flat, seg.Bytes()...)
		seg.Release()
	}
	c.segs = []*memory.Buffer{memory.NewBufferBytes(flat)}
	return flat, nil
}

// Bytes returns a copy of the chain's bytes, leaving the segments as they
// are.
func (c *Chain) Bytes() ([]byte, error) {
	if c.released.Load() {
		return nil, ErrChainReleased
	}
	out := make([]byte, 0, c.length)
	for _, seg := range c.segs {
		out = append(out, seg.Bytes()...)
	}
	return out, nil
}

// WriteTo implements io.WriterTo. Writers that support vectored writes,
// such as network connections, receive all segments in one call.
func (c *Chain) WriteTo(w io.Writer) (int64, error) {
	views, err := c.Segments()
	if err != nil {
		return 0, err
	}
	bufs := net.Buffers(views)
	return bufs.WriteTo(w)
}

// Release drops this chain's references. Memory is returned to the pool
// when no other chain or arena references it. Releasing twice panics.
func (c *Chain) Release() {
	if !c.released.CompareAndSwap(false, true) {
		log.Panicf("chain: released twice")
	}
	for _, seg := range c.segs {
		seg.Release()
	}
	log.Debug.Printf("chain: released %d segments, %d bytes", len(c.segs), c.length)
	c.segs = nil
}
