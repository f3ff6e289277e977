package value

import "fmt"

// Value is an opaque machine word denoting a foreign runtime value. The bits
// are interpreted using the 64-bit flonum layout: immediates carry their
// payload in the word, everything else is the address of a heap header.
type Value uint64

// ID is an interned method or constant name. IDs live in a separate
// namespace from Values and are only produced by interning.
type ID uint64

// Special constants of the immediate encoding.
const (
	Qfalse Value = 0x00
	Qnil   Value = 0x08
	Qtrue  Value = 0x14
	Qundef Value = 0x34
)

// Bit masks of the immediate encoding.
const (
	ImmediateMask  = 0x07
	FixnumFlag     = 0x01
	FlonumMask     = 0x03
	FlonumFlag     = 0x02
	SymbolFlag     = 0x0c
	SpecialShift   = 8
	SpecialMask    = 0xff
	TypeMask       = 0x1f
	HeaderWordSize = 8
)

// Type is the canonical type tag of a value. Heap headers store it in the
// low five bits of their flags word.
type Type uint8

const (
	TypeNone   Type = 0x00
	TypeObject Type = 0x01
	TypeClass  Type = 0x02
	TypeModule Type = 0x03
	TypeFloat  Type = 0x04
	TypeString Type = 0x05
	TypeNil    Type = 0x11
	TypeTrue   Type = 0x12
	TypeFalse  Type = 0x13
	TypeSymbol Type = 0x14
	TypeFixnum Type = 0x15
	TypeUndef  Type = 0x16
)

var typeNames = map[Type]string{
	TypeNone:   "None",
	TypeObject: "Object",
	TypeClass:  "Class",
	TypeModule: "Module",
	TypeFloat:  "Float",
	TypeString: "String",
	TypeNil:    "Nil",
	TypeTrue:   "True",
	TypeFalse:  "False",
	TypeSymbol: "Symbol",
	TypeFixnum: "Fixnum",
	TypeUndef:  "Undef",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%#x)", uint8(t))
}

// Declared reports whether t is part of the declared tag enumeration.
// TypeNone is a placeholder and never declared.
func (t Type) Declared() bool {
	_, ok := typeNames[t]
	return ok && t != TypeNone
}

// IsImmediate reports whether v carries its payload in the word itself.
func (v Value) IsImmediate() bool {
	return v&ImmediateMask != 0
}

// Truthy mirrors RTEST: every value except nil and false is truthy.
func (v Value) Truthy() bool {
	return v&^Qnil != 0
}

// IsSpecialConst reports whether v is an immediate or one of nil/false.
func (v Value) IsSpecialConst() bool {
	return v.IsImmediate() || !v.Truthy()
}

func (v Value) String() string {
	return fmt.Sprintf("%#x", uint64(v))
}

// Header is the fixed prefix of every heap object.
type Header struct {
	Flags uint64
	Klass Value
}

// Type returns the canonical tag stored in the flags word.
func (h Header) Type() Type {
	return Type(h.Flags & TypeMask)
}

// FixnumOf encodes n as an immediate fixnum. Values outside the 63-bit
// range wrap.
func FixnumOf(n int64) Value {
	return Value(uint64(n)<<1 | FixnumFlag)
}

// StaticSymbolOf encodes an ID serial as an immediate symbol.
func StaticSymbolOf(serial uint64) Value {
	return Value(serial<<SpecialShift | SymbolFlag)
}
