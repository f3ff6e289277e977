// Package native binds abi.Runtime to a real libruby loaded at run time with
// purego, without cgo.
//
// Entry points are resolved with dlsym and method shapes become C function
// pointers through purego callbacks. purego supports a fixed number of
// callbacks per process, so Link fails once MaxCallbacks methods have been
// linked.
//
// The VM is single-threaded: call runtime.LockOSThread before Open and make
// every subsequent call from the same goroutine. Ruby exceptions raised by a
// foreign call unwind with longjmp and must not cross Go frames, so callers
// should only pass arguments the runtime accepts without raising.
package native
