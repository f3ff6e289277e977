// Package rubyext is a typed binding layer for writing CRuby extensions in Go.
//
// The layer never touches the foreign object graph except through the host
// ABI (package abi) and never hands out raw pointers. Every handle that comes
// back from the runtime is decoded into a value.Transient and checked against
// the variant the operation promises.
//
// # Architecture Overview
//
//	rubyext/        Binding: module/class/method definition
//	├── value/      handle decoding and Transient views
//	├── method/     closed set of callable shapes, entry descriptors
//	├── abi/        host ABI declarations
//	│   └── native/ libruby loaded with purego
//	├── memory/     heap readers: process, arena, wasm linear memory
//	├── sim/        in-process simulated runtime
//	├── manifest/   YAML extension manifests
//	└── errors/     structured error types
//
// # Quick Start
//
//	rt, _ := sim.New(sim.DefaultOptions())
//	b := rubyext.NewWithDefaults(rt)
//
//	hello, err := b.DefineModule("Hello")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = b.DefineModuleFunction(hello, "hello", method.Func0(func(self value.Value) value.Value {
//	    fmt.Println("Hello from Go!")
//	    return value.Qnil
//	}))
//
// # Errors
//
// Contract violations are returned, never raised: a decode failure
// (errors.IsDecode), a definition call that produced the wrong variant
// (errors.IsTypeMismatch) or a name that cannot cross the ABI
// (errors.IsNameEncoding). A host loading many extensions can keep going
// after one fails to register.
//
// # Thread Safety
//
// A Binding is NOT safe for concurrent use. The foreign runtime is assumed to
// be single-threaded and every call completes synchronously. Well-known roots
// are resolved once and cached.
//
// # Lifetimes
//
// Views borrow foreign objects. They hold handles as integers, so the Go
// collector is unaffected, but nothing here keeps a foreign object alive:
// use a view only while the runtime is known to retain the object, in
// practice for the duration of the enclosing foreign call or for objects
// reachable from constants.
package rubyext
