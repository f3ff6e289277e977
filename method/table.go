package method

import (
	"sync"

	"github.com/wippyai/rubyext/errors"
)

// EntryStride is the distance between consecutive table addresses.
const EntryStride = 16

// Table hands out synthetic entry addresses for methods dispatched in
// process. Entries are never removed: registration is irrevocable.
type Table struct {
	entries []Method
	base    uintptr
	mu      sync.RWMutex
}

// NewTable creates a table whose first entry lives at base.
func NewTable(base uintptr) *Table {
	return &Table{
		entries: make([]Method, 0, 64),
		base:    base,
	}
}

// Link stores m and returns its address.
func (t *Table) Link(m Method) (uintptr, error) {
	if IsNil(m) {
		return 0, errors.InvalidInput(errors.PhaseRegistration, "cannot link nil method")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, m)
	return t.base + uintptr(len(t.entries)-1)*EntryStride, nil
}

// Lookup resolves an address produced by Link.
func (t *Table) Lookup(addr uintptr) (Method, bool) {
	if addr < t.base || (addr-t.base)%EntryStride != 0 {
		return nil, false
	}
	idx := (addr - t.base) / EntryStride

	t.mu.RLock()
	defer t.mu.RUnlock()
	if idx >= uintptr(len(t.entries)) {
		return nil, false
	}
	return t.entries[idx], true
}

// Len returns the number of linked entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
