// Package streamarena implements pooled arena memory and growable byte
// streams for serializing intermediate results, with zero-copy hand-off of
// the produced bytes.
//
// # Overview
//
// Memory flows through four layers:
//
//   - Pool: page-granular allocations with allocation statistics
//   - Arena: draws large blocks from a Pool and slices them into ranges
//   - Stream: reads and writes across a sequence of ranges
//   - Chain: ref-counted segments sharing a stream's memory with consumers
//
// Arenas amortize pool calls: blocks start at two pages and double as the
// arena keeps growing, so many small appends spread over many streams cost
// a logarithmic number of pool allocations.
//
// # Basic Usage
//
//	pool := streamarena.NewPool()
//	a := streamarena.NewArena(pool)
//	defer a.Release()
//
//	s := streamarena.NewStream(a)
//	if err := s.StartWrite(0); err != nil {
//		return err
//	}
//	streamarena.AppendFixed(s, int64(42))
//	s.AppendBytes(payload)
//
//	// Patch a header written earlier
//	s.SeekAbsolute(0)
//	streamarena.AppendFixed(s, int64(len(payload)))
//
//	chain, err := streamarena.Flush(s)
//	if err != nil {
//		return err
//	}
//	defer chain.Release()
//	chain.WriteTo(conn)
//
// # Reading
//
// A stream switches to read mode with ResetInput over ranges whose used
// lengths are set:
//
//	s.ResetInput(ranges)
//	for !s.AtEnd() {
//		v, err := streamarena.ReadFixed[int64](s)
//		...
//	}
//
// # Ownership
//
// Every arena block is ref-counted. The arena holds one reference and every
// chain segment holds another, so releasing an arena (or an OutputStream)
// frees only the blocks no chain references; the rest return to the pool
// when the last chain or clone is released. Flush seals the stream: bytes
// handed to a chain are never written again.
//
// # Thread Safety
//
// Streams and Arenas are not goroutine-safe. Streams on different goroutines
// may share a SafeArena. Chain reference counts are atomic, so clones can be
// released from any goroutine.
package streamarena
