package method

import (
	"github.com/wippyai/rubyext/errors"
	"github.com/wippyai/rubyext/value"
)

// Linker produces the entry address the foreign runtime will call for m.
type Linker interface {
	Link(m Method) (uintptr, error)
}

// Descriptor is everything the foreign method table needs for one entry.
type Descriptor struct {
	Name  value.ID
	Entry uintptr
	Arity Arity
}

// Describe links m and pairs its address with its arity.
func Describe(l Linker, name value.ID, m Method) (Descriptor, error) {
	if IsNil(m) {
		return Descriptor{}, errors.InvalidInput(errors.PhaseRegistration, "method is nil")
	}
	entry, err := l.Link(m)
	if err != nil {
		return Descriptor{}, errors.Wrap(errors.PhaseRegistration, errors.KindAllocation, err, "link entry point")
	}
	return Descriptor{Name: name, Entry: entry, Arity: m.Arity()}, nil
}
