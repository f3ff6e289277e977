// Package sim implements abi.Runtime as an in-process simulation of the
// CRuby object space.
//
// Objects are laid out in a memory.Heap using the same 64-bit header format
// the decoder reads, so handles produced here exercise the real decoding
// path. The simulation covers what extension registration touches: the
// constant table under Object, the class hierarchy with singleton classes,
// module inclusion, per-class method tables, interned names and method
// dispatch with arity checks.
//
//	rt, _ := sim.New(sim.DefaultOptions())
//	mod, _ := rt.DefineModule("Hello")
//
// Where CRuby would raise, the simulation either returns an error or, for a
// constant that already names a different kind of object, returns that
// object so the caller's variant check reports the mismatch.
package sim
