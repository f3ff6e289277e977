// Package value decodes foreign runtime handles into typed views.
//
// A handle is a machine word in one of two encodings. Immediates carry their
// payload in the word:
//
//	xxxx...xxx1  fixnum (payload is the word shifted right by one)
//	xxxx...xx10  flonum
//	0x14         true
//	xxxx0c       static symbol (serial above the tag byte)
//	0x34         undef
//
// nil (0x08) and false (0x00) are the only words that fail RTEST. Every other
// word is the address of a heap object whose Header flags carry the type tag
// in their low five bits.
//
// Classify returns the canonical Type; Decode returns a Transient view:
//
//	view, err := value.Decode(h, mem)
//	switch v := view.(type) {
//	case value.Module:
//	    ...
//	case value.Fixnum:
//	    fmt.Println(v.Int)
//	}
//
// Heap handles are resolved through a Memory so that the same decoder works
// against process memory, a byte arena, or wasm linear memory.
package value
