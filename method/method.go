// Package method maps native callables onto the calling conventions a
// foreign class accepts.
//
// The foreign runtime understands exactly four shapes, so Method is a closed
// set. Each shape fixes its arity at compile time:
//
//	Func0  func(self) Value                     arity 0
//	Func1  func(self, a) Value                  arity 1
//	Func2  func(self, a, b) Value               arity 2
//	FuncN  func(argc, argv, self) Value         arity -1
//
// A runtime backend turns a Method into an entry address through its Linker.
package method

import (
	"unsafe"

	"github.com/wippyai/rubyext/errors"
	"github.com/wippyai/rubyext/value"
)

// Arity is the declared parameter count of an entry point.
type Arity int32

// Variadic entry points receive (argc, argv, self).
const Variadic Arity = -1

func (a Arity) String() string {
	switch a {
	case Variadic:
		return "variadic"
	case 0:
		return "0"
	case 1:
		return "1"
	case 2:
		return "2"
	}
	return "invalid"
}

// Method is a native callable of one of the supported shapes.
type Method interface {
	Arity() Arity
	isMethod()
}

type (
	Func0 func(self value.Value) value.Value
	Func1 func(self, a value.Value) value.Value
	Func2 func(self, a, b value.Value) value.Value
	FuncN func(argc int, argv *value.Value, self value.Value) value.Value
)

func (Func0) Arity() Arity { return 0 }
func (Func1) Arity() Arity { return 1 }
func (Func2) Arity() Arity { return 2 }
func (FuncN) Arity() Arity { return Variadic }

func (Func0) isMethod() {}
func (Func1) isMethod() {}
func (Func2) isMethod() {}
func (FuncN) isMethod() {}

// Args views a variadic argument vector as a slice. The slice aliases argv
// and is only valid for the duration of the call.
func Args(argc int, argv *value.Value) []value.Value {
	if argc <= 0 || argv == nil {
		return nil
	}
	return unsafe.Slice(argv, argc)
}

// IsNil reports whether m is absent or wraps a nil function.
func IsNil(m Method) bool {
	switch f := m.(type) {
	case Func0:
		return f == nil
	case Func1:
		return f == nil
	case Func2:
		return f == nil
	case FuncN:
		return f == nil
	}
	return true
}

// Invoke calls m with args using the calling convention of its arity.
func Invoke(name string, m Method, self value.Value, args []value.Value) (value.Value, error) {
	switch f := m.(type) {
	case Func0:
		if len(args) != 0 {
			return value.Qnil, errors.Arity(name, len(args), 0)
		}
		return f(self), nil
	case Func1:
		if len(args) != 1 {
			return value.Qnil, errors.Arity(name, len(args), 1)
		}
		return f(self, args[0]), nil
	case Func2:
		if len(args) != 2 {
			return value.Qnil, errors.Arity(name, len(args), 2)
		}
		return f(self, args[0], args[1]), nil
	case FuncN:
		if len(args) == 0 {
			return f(0, nil, self), nil
		}
		return f(len(args), &args[0], self), nil
	}
	return value.Qnil, errors.InvalidInput(errors.PhaseInvoke, "unknown method shape")
}
