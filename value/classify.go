package value

import (
	"github.com/wippyai/rubyext/errors"
)

// Memory gives read access to the foreign heap. Implementations decide how an
// address is resolved: process memory, a byte arena, or wasm linear memory.
type Memory interface {
	ReadU64(addr uint64) (uint64, error)
}

var heapTypes = map[uint64]Type{
	0x01: TypeObject,
	0x02: TypeClass,
	0x03: TypeModule,
	0x04: TypeFloat,
	0x05: TypeString,
	0x11: TypeNil,
	0x12: TypeTrue,
	0x13: TypeFalse,
	0x14: TypeSymbol,
	0x15: TypeFixnum,
	0x16: TypeUndef,
}

// Classify maps a handle to its canonical type tag. Foreign memory is read
// only when the handle is heap-shaped, and then exactly once.
//
// The order of the immediate checks matters: a fixnum test must win over the
// flonum test, and both over the special constants.
func Classify(v Value, mem Memory) (Type, error) {
	if v.IsImmediate() {
		switch {
		case v&FixnumFlag == FixnumFlag:
			return TypeFixnum, nil
		case v&FlonumMask == FlonumFlag:
			return TypeFloat, nil
		case v == Qtrue:
			return TypeTrue, nil
		case v&SpecialMask == SymbolFlag:
			return TypeSymbol, nil
		case v == Qundef:
			return TypeUndef, nil
		}
		return TypeNone, errors.InvalidTag(uint64(v), uint64(v&SpecialMask), "immediate")
	}

	if !v.Truthy() {
		if v == Qnil {
			return TypeNil, nil
		}
		return TypeFalse, nil
	}

	flags, err := readFlags(v, mem)
	if err != nil {
		return TypeNone, err
	}
	tag := flags & TypeMask
	t, ok := heapTypes[tag]
	if !ok {
		return TypeNone, errors.InvalidTag(uint64(v), tag, "header")
	}
	return t, nil
}

// HeaderOf reads the full header of a heap handle.
func HeaderOf(v Value, mem Memory) (Header, error) {
	if v.IsSpecialConst() {
		return Header{}, errors.New(errors.PhaseDecode, errors.KindInvalidInput).
			Value(uint64(v)).
			Detail("handle %s is not heap allocated", v).
			Build()
	}
	flags, err := readFlags(v, mem)
	if err != nil {
		return Header{}, err
	}
	klass, err := mem.ReadU64(uint64(v) + HeaderWordSize)
	if err != nil {
		return Header{}, errors.OutOfBounds(uint64(v)+HeaderWordSize, err)
	}
	return Header{Flags: flags, Klass: Value(klass)}, nil
}

func readFlags(v Value, mem Memory) (uint64, error) {
	if mem == nil {
		return 0, errors.New(errors.PhaseDecode, errors.KindNotInitialized).
			Value(uint64(v)).
			Detail("no heap memory to resolve %s", v).
			Build()
	}
	flags, err := mem.ReadU64(uint64(v))
	if err != nil {
		return 0, errors.OutOfBounds(uint64(v), err)
	}
	return flags, nil
}
