package memory

import "github.com/wippyai/rubyext/value"

// Heap is a writable, growable foreign heap.
type Heap interface {
	value.Memory
	WriteU64(addr uint64, v uint64) error
	// Base is the lowest valid address.
	Base() uint64
	// Size is the number of addressable bytes starting at Base.
	Size() uint64
	// Grow ensures at least size bytes are addressable from Base.
	Grow(size uint64) error
}
