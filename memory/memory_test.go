package memory

import (
	"context"
	"runtime"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"

	"github.com/wippyai/rubyext/errors"
	"github.com/wippyai/rubyext/value"
)

func TestWrapLinear_Nil(t *testing.T) {
	assert.Nil(t, WrapLinear(nil))
}

func TestLinear_ReadWriteGrow(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	mem, mod, err := NewLinear(ctx, rt)
	require.NoError(t, err)
	defer mod.Close(ctx)

	assert.Equal(t, uint64(pageSize), mem.Size())
	require.NoError(t, mem.WriteU64(0x40, 0xdead_beef))
	v, err := mem.ReadU64(0x40)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xdead_beef), v)

	_, err = mem.ReadU64(pageSize - 4)
	assert.Error(t, err)
	_, err = mem.ReadU64(1 << 40)
	assert.Error(t, err)

	require.NoError(t, mem.Grow(pageSize+16))
	assert.Equal(t, uint64(2*pageSize), mem.Size())
	require.NoError(t, mem.WriteU64(pageSize+8, 7))
}

func TestArena_Bounds(t *testing.T) {
	_, err := NewArena(0x1001, 64)
	assert.Error(t, err)

	a, err := NewArena(0x1000, 32)
	require.NoError(t, err)

	require.NoError(t, a.WriteU64(0x1018, 3))
	v, err := a.ReadU64(0x1018)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), v)

	_, err = a.ReadU64(0x0ff8)
	assert.Error(t, err, "below base")
	_, err = a.ReadU64(0x1020)
	assert.Error(t, err, "past end")

	require.NoError(t, a.Grow(64))
	assert.Equal(t, uint64(64), a.Size())
	require.NoError(t, a.WriteU64(0x1038, 9))
	v, err = a.ReadU64(0x1018)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), v, "growing keeps contents")
}

func TestArena_DecodeThroughHeap(t *testing.T) {
	a, err := NewArena(0x10000, 64)
	require.NoError(t, err)
	require.NoError(t, a.WriteU64(0x10010, uint64(value.TypeModule)))

	view, err := value.Decode(0x10010, a)
	require.NoError(t, err)
	assert.Equal(t, value.TypeModule, view.Type())

	_, err = value.Decode(0x20000, a)
	assert.True(t, errors.IsDecode(err))
}

func TestArena_AddressWrap(t *testing.T) {
	a, err := NewArena(0, 64)
	require.NoError(t, err)

	const top = 0xffff_ffff_ffff_fff8
	_, err = a.ReadU64(top)
	assert.Error(t, err)
	assert.Error(t, a.WriteU64(top, 1))

	_, err = value.Decode(top, a)
	require.Error(t, err)
	assert.True(t, errors.IsDecode(err))

	_, err = a.ReadU64(60)
	assert.Error(t, err, "word straddles the end")
	_, err = a.ReadU64(56)
	assert.NoError(t, err)
}

func TestNative_Read(t *testing.T) {
	hdr := &[2]uint64{uint64(value.TypeClass) | 0x2000, 0}
	addr := uint64(uintptr(unsafe.Pointer(hdr)))

	var mem Native
	got, err := value.Classify(value.Value(addr), mem)
	require.NoError(t, err)
	assert.Equal(t, value.TypeClass, got)
	runtime.KeepAlive(hdr)

	_, err = mem.ReadU64(0)
	assert.Error(t, err)
	_, err = mem.ReadU64(addr + 1)
	assert.Error(t, err)
}
