// Package abi declares the foreign entry points the binding layer consumes.
//
// Runtime mirrors the CRuby extension API one call per method:
//
//	DefineClassUnder   rb_define_class_under
//	DefineModuleUnder  rb_define_module_under
//	DefineClass        rb_define_class
//	DefineModule       rb_define_module
//	SingletonClass     rb_singleton_class
//	DefineMethodID     rb_define_method_id
//	Intern             rb_intern2
//	Root               rb_mKernel, rb_mEnumerable, rb_cObject
//
// Implementations return handles undecoded; validation and decoding belong
// to the caller. Names are passed already validated (non-empty, NUL-free).
// Calls are synchronous and must come from the thread that owns the
// foreign VM.
package abi

import (
	"github.com/wippyai/rubyext/method"
	"github.com/wippyai/rubyext/value"
)

// Root names a well-known foreign constant.
type Root int

const (
	KernelModule Root = iota
	EnumerableModule
	ObjectClass
)

func (r Root) String() string {
	switch r {
	case KernelModule:
		return "Kernel"
	case EnumerableModule:
		return "Enumerable"
	case ObjectClass:
		return "Object"
	}
	return "unknown"
}

// Runtime is the host ABI of the foreign runtime.
type Runtime interface {
	method.Linker

	DefineClassUnder(outer value.Value, name string, super value.Value) (value.Value, error)
	DefineModuleUnder(outer value.Value, name string) (value.Value, error)
	DefineClass(name string, super value.Value) (value.Value, error)
	DefineModule(name string) (value.Value, error)
	SingletonClass(v value.Value) (value.Value, error)
	DefineMethodID(class value.Value, id value.ID, entry uintptr, arity int32) error
	Intern(name []byte) (value.ID, error)
	Root(r Root) (value.Value, error)

	// Memory resolves heap handles produced by this runtime.
	Memory() value.Memory
}

// Includer is implemented by runtimes that expose module mixing
// (rb_include_module, rb_extend_object).
type Includer interface {
	IncludeModule(class, module value.Value) error
	ExtendObject(obj, module value.Value) error
}

// Caller is implemented by runtimes that can dispatch a method call
// (rb_funcallv).
type Caller interface {
	Funcall(recv value.Value, id value.ID, args []value.Value) (value.Value, error)
}
