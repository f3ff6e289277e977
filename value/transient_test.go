package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/rubyext/errors"
)

func TestDecode_Immediates(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want Transient
	}{
		{"nil", Qnil, Nil{}},
		{"false", Qfalse, False{}},
		{"true", Qtrue, True{}},
		{"fixnum", FixnumOf(21), Fixnum{Int: 21}},
		{"negative fixnum", FixnumOf(-1), Fixnum{Int: -1}},
		{"symbol", StaticSymbolOf(99), Symbol{Index: 99}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.v, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.v, got.Value(), "view round-trips to its handle")
		})
	}
}

func TestDecode_HeapViewsBorrowTheHandle(t *testing.T) {
	const addr = 0x7f00_1000
	tests := []struct {
		flags uint64
		want  Type
	}{
		{0x01, TypeObject},
		{0x02, TypeClass},
		{0x03, TypeModule},
	}

	for _, tt := range tests {
		got, err := Decode(addr, heapWith(addr, tt.flags))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got.Type())
		assert.Equal(t, Value(addr), got.Value())
	}

	cls, err := Decode(addr, heapWith(addr, 0x02))
	require.NoError(t, err)
	_, isNamespace := cls.(Namespace)
	assert.True(t, isNamespace)

	obj, err := Decode(addr, heapWith(addr, 0x01))
	require.NoError(t, err)
	_, isNamespace = obj.(Namespace)
	assert.False(t, isNamespace)
}

func TestDecode_HeapTaggedSpecials(t *testing.T) {
	got, err := Decode(0x1000, heapWith(0x1000, 0x11))
	require.NoError(t, err)
	assert.Equal(t, Nil{}, got)

	got, err = Decode(0x1000, heapWith(0x1000, 0x12))
	require.NoError(t, err)
	assert.Equal(t, True{}, got)

	got, err = Decode(0x1000, heapWith(0x1000, 0x13))
	require.NoError(t, err)
	assert.Equal(t, False{}, got)
}

func TestDecode_Unsupported(t *testing.T) {
	cases := map[string]struct {
		v   Value
		mem Memory
	}{
		"flonum":         {0x02, nil},
		"undef":          {Qundef, nil},
		"heap float":     {0x1000, heapWith(0x1000, 0x04)},
		"heap string":    {0x1000, heapWith(0x1000, 0x05)},
		"dynamic symbol": {0x1000, heapWith(0x1000, 0x14)},
		"heap fixnum":    {0x1000, heapWith(0x1000, 0x15)},
		"heap undef":     {0x1000, heapWith(0x1000, 0x16)},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(tc.v, tc.mem)
			require.Error(t, err)
			assert.True(t, errors.IsUnsupported(err))
			assert.False(t, errors.IsCorrupt(err))
		})
	}
}

func TestDecode_Corrupt(t *testing.T) {
	_, err := Decode(0x1000, heapWith(0x1000, 0x1f))
	require.Error(t, err)
	assert.True(t, errors.IsCorrupt(err))
	assert.False(t, errors.IsUnsupported(err))
}
