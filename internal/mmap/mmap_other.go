//go:build !unix

// Package mmap provides a page-aligned allocator. On platforms without
// mmap it falls back to the Go heap.
package mmap

import (
	"fmt"
	"os"
)

type Allocator struct{}

func New() *Allocator {
	return &Allocator{}
}

func PageSize() int {
	return os.Getpagesize()
}

func (a *Allocator) TryAllocate(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mmap: invalid size %d", size)
	}
	return make([]byte, size), nil
}

func (a *Allocator) Allocate(size int) []byte {
	b, err := a.TryAllocate(size)
	if err != nil {
		panic(err)
	}
	return b
}

func (a *Allocator) Reallocate(size int, b []byte) []byte {
	if size <= cap(b) {
		return b[:size]
	}
	nb := make([]byte, size)
	copy(nb, b)
	return nb
}

func (a *Allocator) Free(b []byte) {}
