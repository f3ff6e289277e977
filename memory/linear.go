package memory

import (
	"context"
	"fmt"
	"math"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

const pageSize = 65536

// memoryModule is a minimal WASM module with 1 page of memory exported as "memory"
var memoryModule = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	0x05, 0x03, 0x01, 0x00, 0x01, // memory section: 1 page, no max
	0x07, 0x0a, 0x01, // export section: 10 bytes, 1 export
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, // name: "memory"
	0x02, 0x00, // kind: memory, index 0
}

// NewLinear instantiates a standalone linear memory in rt. The returned
// module owns the memory and must be closed by the caller.
func NewLinear(ctx context.Context, rt wazero.Runtime) (*Linear, api.Module, error) {
	compiled, err := rt.CompileModule(ctx, memoryModule)
	if err != nil {
		return nil, nil, fmt.Errorf("compile memory module: %w", err)
	}
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, nil, fmt.Errorf("instantiate memory module: %w", err)
	}
	return WrapLinear(mod.ExportedMemory("memory")), mod, nil
}

// Linear adapts a wazero api.Memory. Addresses are offsets into the linear
// memory, so every read is bounds checked by the engine and a bogus handle
// can never fault the host process.
type Linear struct {
	Mem api.Memory
}

// WrapLinear returns nil for a nil memory.
func WrapLinear(mem api.Memory) *Linear {
	if mem == nil {
		return nil
	}
	return &Linear{Mem: mem}
}

func (m *Linear) Base() uint64 { return 0 }

func (m *Linear) Size() uint64 { return uint64(m.Mem.Size()) }

// Grow adds pages until at least size bytes are addressable.
func (m *Linear) Grow(size uint64) error {
	cur := uint64(m.Mem.Size())
	if size <= cur {
		return nil
	}
	if size > math.MaxUint32 {
		return fmt.Errorf("memory grow beyond 4GiB: size=%d", size)
	}
	pages := (size - cur + pageSize - 1) / pageSize
	if _, ok := m.Mem.Grow(uint32(pages)); !ok {
		return fmt.Errorf("memory grow failed: %d pages", pages)
	}
	return nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (m *Linear) ReadU64(addr uint64) (uint64, error) {
	if addr > math.MaxUint32 {
		return 0, fmt.Errorf("memory read out of bounds: offset=%#x", addr)
	}
	v, ok := m.Mem.ReadUint64Le(uint32(addr))
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%#x", addr)
	}
	return v, nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (m *Linear) WriteU64(addr uint64, v uint64) error {
	if addr > math.MaxUint32 || !m.Mem.WriteUint64Le(uint32(addr), v) {
		return fmt.Errorf("memory write out of bounds: offset=%#x", addr)
	}
	return nil
}
