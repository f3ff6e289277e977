package memory

import (
	"encoding/binary"
	"fmt"
)

// Arena is a heap backed by a Go byte slice. Addresses are virtual: address
// base+n refers to data[n], so growing never invalidates handles.
type Arena struct {
	data []byte
	base uint64
}

// NewArena creates an arena of size bytes starting at base. base must be
// 8-byte aligned so that heap handles keep their low three bits clear.
func NewArena(base, size uint64) (*Arena, error) {
	if base%8 != 0 {
		return nil, fmt.Errorf("arena base %#x is not 8-byte aligned", base)
	}
	return &Arena{base: base, data: make([]byte, size)}, nil
}

func (a *Arena) Base() uint64 { return a.base }

func (a *Arena) Size() uint64 { return uint64(len(a.data)) }

// Grow extends the arena to at least size bytes, doubling when it can.
func (a *Arena) Grow(size uint64) error {
	if size <= uint64(len(a.data)) {
		return nil
	}
	n := max(size, 2*uint64(len(a.data)))
	next := make([]byte, n)
	copy(next, a.data)
	a.data = next
	return nil
}

// ReadU64 reads a little-endian word.
func (a *Arena) ReadU64(addr uint64) (uint64, error) {
	off, err := a.offset(addr)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(a.data[off:]), nil
}

// WriteU64 writes a little-endian word.
func (a *Arena) WriteU64(addr uint64, v uint64) error {
	off, err := a.offset(addr)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(a.data[off:], v)
	return nil
}

func (a *Arena) offset(addr uint64) (uint64, error) {
	size := uint64(len(a.data))
	if addr < a.base || addr-a.base > size || size-(addr-a.base) < 8 {
		return 0, fmt.Errorf("memory access out of bounds: addr=%#x, base=%#x, size=%d", addr, a.base, len(a.data))
	}
	return addr - a.base, nil
}
