package value

import (
	"fmt"

	"github.com/wippyai/rubyext/errors"
)

// Transient is a decoded, shape-tagged view of a handle. Heap-backed views
// borrow the foreign object: they hold the handle as an integer and stay
// meaningful only while the foreign runtime keeps the object alive. Views
// are only produced by Decode.
type Transient interface {
	Type() Type
	// Value returns the handle the view was decoded from. Heap-tagged nil,
	// true and false canonicalize to their immediate constants.
	Value() Value
	isTransient()
}

// Namespace is a view that can own methods and constants.
type Namespace interface {
	Transient
	isNamespace()
}

// Object is a borrowed plain heap object.
type Object struct{ v Value }

// Class is a borrowed class, including singleton classes.
type Class struct{ v Value }

// Module is a borrowed module.
type Module struct{ v Value }

type (
	Nil   struct{}
	True  struct{}
	False struct{}
)

// Symbol is a static symbol; Index is the serial stored above the tag byte.
type Symbol struct{ Index uint64 }

// Fixnum is an immediate integer.
type Fixnum struct{ Int int64 }

func (Object) Type() Type { return TypeObject }
func (Class) Type() Type  { return TypeClass }
func (Module) Type() Type { return TypeModule }
func (Nil) Type() Type    { return TypeNil }
func (True) Type() Type   { return TypeTrue }
func (False) Type() Type  { return TypeFalse }
func (Symbol) Type() Type { return TypeSymbol }
func (Fixnum) Type() Type { return TypeFixnum }

func (o Object) Value() Value { return o.v }
func (c Class) Value() Value  { return c.v }
func (m Module) Value() Value { return m.v }
func (Nil) Value() Value      { return Qnil }
func (True) Value() Value     { return Qtrue }
func (False) Value() Value    { return Qfalse }
func (s Symbol) Value() Value { return StaticSymbolOf(s.Index) }
func (f Fixnum) Value() Value { return FixnumOf(f.Int) }

func (Object) isTransient() {}
func (Class) isTransient()  {}
func (Module) isTransient() {}
func (Nil) isTransient()    {}
func (True) isTransient()   {}
func (False) isTransient()  {}
func (Symbol) isTransient() {}
func (Fixnum) isTransient() {}

func (Class) isNamespace()  {}
func (Module) isNamespace() {}

func (o Object) String() string { return fmt.Sprintf("Object(%s)", o.v) }
func (c Class) String() string  { return fmt.Sprintf("Class(%s)", c.v) }
func (m Module) String() string { return fmt.Sprintf("Module(%s)", m.v) }
func (Nil) String() string      { return "nil" }
func (True) String() string     { return "true" }
func (False) String() string    { return "false" }
func (s Symbol) String() string { return fmt.Sprintf("Symbol(%d)", s.Index) }
func (f Fixnum) String() string { return fmt.Sprintf("Fixnum(%d)", f.Int) }

// Decode classifies v and builds the matching view. Float, String and Undef
// are declared but deliberately unimplemented, as are heap symbol and heap
// integer payloads; they fail with an unsupported decode error, which is
// distinct from the error returned for undeclared tags.
func Decode(v Value, mem Memory) (Transient, error) {
	t, err := Classify(v, mem)
	if err != nil {
		return nil, err
	}

	switch t {
	case TypeObject:
		return Object{v: v}, nil
	case TypeClass:
		return Class{v: v}, nil
	case TypeModule:
		return Module{v: v}, nil
	case TypeNil:
		return Nil{}, nil
	case TypeTrue:
		return True{}, nil
	case TypeFalse:
		return False{}, nil
	case TypeFixnum:
		if v.IsImmediate() {
			return Fixnum{Int: int64(v) >> 1}, nil
		}
		return nil, errors.Unsupported(uint64(v), "heap Fixnum")
	case TypeSymbol:
		if v.IsImmediate() {
			return Symbol{Index: uint64(v) >> SpecialShift}, nil
		}
		return nil, errors.Unsupported(uint64(v), "dynamic Symbol")
	}
	return nil, errors.Unsupported(uint64(v), t.String())
}
