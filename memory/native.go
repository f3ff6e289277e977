package memory

import (
	"fmt"
	"unsafe"
)

// Native reads process memory directly. It is only sound for handles that
// the foreign runtime produced in this process and still keeps alive.
type Native struct{}

// ReadU64 reads an aligned machine word at addr.
func (Native) ReadU64(addr uint64) (uint64, error) {
	if addr == 0 {
		return 0, fmt.Errorf("memory read at null address")
	}
	if addr%8 != 0 {
		return 0, fmt.Errorf("memory read misaligned: addr=%#x", addr)
	}
	return *(*uint64)(unsafe.Pointer(uintptr(addr))), nil
}
