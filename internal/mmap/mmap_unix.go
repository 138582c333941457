//go:build unix

// Package mmap provides a page-aligned allocator over anonymous private
// mappings. Freed memory goes straight back to the kernel.
package mmap

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Allocator maps every allocation separately. It satisfies
// arrow's memory.Allocator and additionally reports failures through
// TryAllocate instead of panicking.
type Allocator struct{}

// New returns an Allocator.
func New() *Allocator {
	return &Allocator{}
}

// PageSize is the operating system page size.
func PageSize() int {
	return os.Getpagesize()
}

// TryAllocate maps size bytes rounded up to the OS page size and returns a
// slice whose length and capacity are exactly size.
func (a *Allocator) TryAllocate(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mmap: invalid size %d", size)
	}
	page := PageSize()
	n := (size + page - 1) / page * page
	b, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes: %w", n, err)
	}
	return b[:size:size], nil
}

// Allocate panics when the mapping fails.
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
	nb := a.Allocate(size)
	copy(nb, b)
	a.Free(b)
	return nb
}

// Free unmaps b. The slice must start where Allocate's result started and
// keep its capacity.
func (a *Allocator) Free(b []byte) {
	if cap(b) == 0 {
		return
	}
	page := PageSize()
	mapped := unsafe.Slice(unsafe.SliceData(b), (cap(b)+page-1)/page*page)
	if err := unix.Munmap(mapped); err != nil {
		panic(fmt.Errorf("munmap: %w", err))
	}
}
