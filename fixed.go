package streamarena

import "unsafe"

// Fixed lists the value types that can be appended and read as raw bytes
// of a statically known width, in the machine's native byte order.
type Fixed interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 |
		~float32 | ~float64 | ~int | ~uint | ~uintptr
}

// AppendFixed appends the unsafe.Sizeof(v) bytes of v. When appending at
// the end of the stream the value is never split across ranges.
func AppendFixed[T Fixed](s *Stream, v T) error {
	b := unsafe.Slice((*byte)(unsafe.Pointer(&v)), unsafe.Sizeof(v))
	return s.appendUnsplit(b)
}

// AppendFixedSlice appends every element of values, each kept whole.
func AppendFixedSlice[T Fixed](s *Stream, values []T) error {
	for _, v := range values {
		if err := AppendFixed(s, v); err != nil {
			return err
		}
	}
	return nil
}

// ReadFixed reads one value written by AppendFixed.
func ReadFixed[T Fixed](s *Stream) (T, error) {
	var v T
	b := unsafe.Slice((*byte)(unsafe.Pointer(&v)), unsafe.Sizeof(v))
	if err := s.ReadBytes(b); err != nil {
		return v, err
	}
	return v, nil
}
