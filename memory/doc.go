// Package memory provides value.Memory implementations for the places a
// foreign heap can live.
//
//	Native   process memory; the handle is a real pointer (extensions loaded
//	         into a CRuby process)
//	Arena    a growable byte slice addressed from a fixed base
//	Linear   a wazero linear memory, bounds checked by the engine
//
// Arena and Linear are also writable Heaps, which the simulated runtime uses
// to lay out object headers in the same 64-bit format the decoder reads.
package memory
