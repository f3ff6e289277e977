package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"

	"github.com/wippyai/rubyext/abi"
	"github.com/wippyai/rubyext/errors"
	"github.com/wippyai/rubyext/memory"
	"github.com/wippyai/rubyext/method"
	"github.com/wippyai/rubyext/value"
)

func newRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt, err := New(DefaultOptions())
	require.NoError(t, err)
	return rt
}

func decode(t *testing.T, rt *Runtime, h value.Value) value.Transient {
	t.Helper()
	v, err := value.Decode(h, rt.Memory())
	require.NoError(t, err)
	return v
}

func TestNew_Roots(t *testing.T) {
	rt := newRuntime(t)

	for root, want := range map[abi.Root]value.Type{
		abi.KernelModule:     value.TypeModule,
		abi.EnumerableModule: value.TypeModule,
		abi.ObjectClass:      value.TypeClass,
	} {
		h, err := rt.Root(root)
		require.NoError(t, err)
		assert.Equal(t, want, decode(t, rt, h).Type(), root.String())
		assert.Equal(t, root.String(), rt.Name(h))
	}

	_, err := rt.Root(abi.Root(42))
	assert.Error(t, err)
}

func TestNew_SmallArenaGrows(t *testing.T) {
	arena, err := memory.NewArena(0x1000, 64)
	require.NoError(t, err)
	rt, err := New(Options{Heap: arena})
	require.NoError(t, err, "arena grows on demand")
	assert.NotNil(t, rt)
}

func TestDefineModule_Reopen(t *testing.T) {
	rt := newRuntime(t)

	a, err := rt.DefineModule("Foo")
	require.NoError(t, err)
	b, err := rt.DefineModule("Foo")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, value.TypeModule, decode(t, rt, a).Type())

	object, _ := rt.Builtin("Object")
	assert.Contains(t, rt.Constants(object), "Foo")
}

func TestDefineClassUnder(t *testing.T) {
	rt := newRuntime(t)
	object, _ := rt.Builtin("Object")

	outer, err := rt.DefineModule("Outer")
	require.NoError(t, err)
	inner, err := rt.DefineClassUnder(outer, "Inner", object)
	require.NoError(t, err)

	assert.Equal(t, value.TypeClass, decode(t, rt, inner).Type())
	assert.Equal(t, "Outer::Inner", rt.Name(inner))
	assert.Equal(t, []string{"Inner"}, rt.Constants(outer))

	_, err = rt.DefineClassUnder(outer, "Other", outer)
	assert.Error(t, err, "a module is not a superclass")

	again, err := rt.DefineClassUnder(outer, "Inner", object)
	require.NoError(t, err)
	assert.Equal(t, inner, again)

	_, err = rt.DefineClassUnder(outer, "Inner", inner)
	assert.ErrorContains(t, err, "superclass mismatch")
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseRegistration, Kind: errors.KindTypeMismatch})
}

func TestDefineClass_ReturnsExistingConstant(t *testing.T) {
	rt := newRuntime(t)
	object, _ := rt.Builtin("Object")

	mod, err := rt.DefineModule("Thing")
	require.NoError(t, err)
	got, err := rt.DefineClass("Thing", object)
	require.NoError(t, err)
	assert.Equal(t, mod, got)
	assert.Equal(t, value.TypeModule, decode(t, rt, got).Type())
}

func TestSingletonClass(t *testing.T) {
	rt := newRuntime(t)
	object, _ := rt.Builtin("Object")

	base, err := rt.DefineClass("Base", object)
	require.NoError(t, err)
	derived, err := rt.DefineClass("Derived", base)
	require.NoError(t, err)

	meta, err := rt.SingletonClass(derived)
	require.NoError(t, err)
	again, err := rt.SingletonClass(derived)
	require.NoError(t, err)
	assert.Equal(t, meta, again)

	hdr, err := value.HeaderOf(meta, rt.Memory())
	require.NoError(t, err)
	assert.Equal(t, value.TypeClass, hdr.Type())
	assert.NotZero(t, hdr.Flags&flSingleton)

	hdr, err = value.HeaderOf(derived, rt.Memory())
	require.NoError(t, err)
	assert.Equal(t, meta, hdr.Klass, "object header points at its singleton class")

	baseMeta, err := rt.SingletonClass(base)
	require.NoError(t, err)
	assert.Contains(t, rt.Ancestors(meta), baseMeta)

	nilClass, err := rt.SingletonClass(value.Qnil)
	require.NoError(t, err)
	assert.Equal(t, "NilClass", rt.Name(nilClass))

	_, err = rt.SingletonClass(value.FixnumOf(3))
	assert.Error(t, err)
}

func TestIntern(t *testing.T) {
	rt := newRuntime(t)

	a, err := rt.Intern([]byte("hello"))
	require.NoError(t, err)
	b, err := rt.Intern([]byte("hello"))
	require.NoError(t, err)
	c, err := rt.Intern([]byte("world"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	sym := rt.Symbol("hello")
	v := decode(t, rt, sym)
	s, ok := v.(value.Symbol)
	require.True(t, ok)
	name, ok := rt.SymbolName(s.Index)
	require.True(t, ok)
	assert.Equal(t, "hello", name)
}

func TestDefineMethodAndFuncall(t *testing.T) {
	rt := newRuntime(t)
	object, _ := rt.Builtin("Object")

	cls, err := rt.DefineClass("Counter", object)
	require.NoError(t, err)

	calls := 0
	inc := method.Func1(func(_, n value.Value) value.Value {
		calls++
		v, _ := value.Decode(n, nil)
		return value.FixnumOf(v.(value.Fixnum).Int + 1)
	})
	entry, err := rt.Link(inc)
	require.NoError(t, err)
	id, _ := rt.Intern([]byte("succ"))
	require.NoError(t, rt.DefineMethodID(cls, id, entry, 1))

	obj, err := rt.NewObject(cls)
	require.NoError(t, err)
	assert.Equal(t, value.TypeObject, decode(t, rt, obj).Type())

	got, err := rt.Funcall(obj, id, []value.Value{value.FixnumOf(41)})
	require.NoError(t, err)
	assert.Equal(t, value.FixnumOf(42), got)
	assert.Equal(t, 1, calls)

	_, err = rt.Funcall(obj, id, nil)
	assert.ErrorIs(t, err, errors.ErrArity)
	assert.Equal(t, 1, calls)

	missing, _ := rt.Intern([]byte("missing"))
	_, err = rt.Funcall(obj, missing, nil)
	assert.ErrorIs(t, err, errors.ErrMethodNotFound)

	assert.Equal(t, map[string]int32{"succ": 1}, rt.Methods(cls))
}

func TestDefineMethodID_Validation(t *testing.T) {
	rt := newRuntime(t)
	object, _ := rt.Builtin("Object")
	id, _ := rt.Intern([]byte("m"))

	entry, err := rt.Link(method.Func0(func(s value.Value) value.Value { return s }))
	require.NoError(t, err)

	assert.Error(t, rt.DefineMethodID(object, id, entry+1, 0), "unlinked entry")
	assert.Error(t, rt.DefineMethodID(object, id, entry, 2), "arity disagrees with shape")
	assert.Error(t, rt.DefineMethodID(value.Qnil, id, entry, 0), "not a namespace")
	assert.Error(t, rt.DefineMethodID(object, 0, entry, 0), "unknown id")
	assert.Error(t, rt.DefineMethodID(object, id+1, entry, 0), "id with scope bits")
	assert.Error(t, rt.DefineMethodID(object, id+1<<idScopeShift, entry, 0), "id past the intern table")

	notFound := &errors.Error{Phase: errors.PhaseRegistration, Kind: errors.KindNotFound}
	for _, bad := range []value.ID{1, 5, 15} {
		err := rt.DefineMethodID(object, bad, entry, 0)
		require.Error(t, err, "id %d", bad)
		assert.ErrorIs(t, err, notFound)
	}
	assert.Empty(t, rt.Methods(object))

	assert.ErrorIs(t, rt.DefineMethodID(object, id, entry, 2),
		&errors.Error{Phase: errors.PhaseRegistration, Kind: errors.KindArity})
	assert.ErrorIs(t, rt.DefineMethodID(value.Qnil, id, entry, 0),
		&errors.Error{Phase: errors.PhaseRegistration, Kind: errors.KindTypeMismatch})

	assert.NoError(t, rt.DefineMethodID(object, id, entry, 0))
	assert.Equal(t, map[string]int32{"m": 0}, rt.Methods(object))
}

func TestSymbolName_RejectsUnknownIndexes(t *testing.T) {
	rt := newRuntime(t)
	id, _ := rt.Intern([]byte("x"))

	for _, index := range []uint64{0, 1, 5, uint64(id) + 1, uint64(id) << 1} {
		_, ok := rt.SymbolName(index)
		assert.False(t, ok, "index %d", index)
	}
	name, ok := rt.SymbolName(uint64(id))
	require.True(t, ok)
	assert.Equal(t, "x", name)
}

func TestIncludeAndExtend(t *testing.T) {
	rt := newRuntime(t)
	object, _ := rt.Builtin("Object")

	greet, err := rt.DefineModule("Greet")
	require.NoError(t, err)
	entry, err := rt.Link(method.Func0(func(value.Value) value.Value { return value.Qtrue }))
	require.NoError(t, err)
	id, _ := rt.Intern([]byte("greet"))
	require.NoError(t, rt.DefineMethodID(greet, id, entry, 0))

	cls, err := rt.DefineClass("Person", object)
	require.NoError(t, err)
	require.NoError(t, rt.IncludeModule(cls, greet))
	require.NoError(t, rt.IncludeModule(cls, greet), "including twice is a no-op")
	assert.Equal(t, []value.Value{cls, greet}, rt.Ancestors(cls)[:2])

	obj, err := rt.NewObject(cls)
	require.NoError(t, err)
	got, err := rt.Funcall(obj, id, nil)
	require.NoError(t, err)
	assert.Equal(t, value.Qtrue, got)

	_, err = rt.Funcall(greet, id, nil)
	assert.ErrorIs(t, err, errors.ErrMethodNotFound)
	require.NoError(t, rt.ExtendObject(greet, greet))
	got, err = rt.Funcall(greet, id, nil)
	require.NoError(t, err)
	assert.Equal(t, value.Qtrue, got)

	assert.Error(t, rt.IncludeModule(cls, object), "classes cannot be included")
}

func TestFuncall_Reentrant(t *testing.T) {
	rt := newRuntime(t)
	object, _ := rt.Builtin("Object")
	inner, _ := rt.Intern([]byte("inner"))
	outer, _ := rt.Intern([]byte("outer"))

	e1, _ := rt.Link(method.Func0(func(value.Value) value.Value { return value.FixnumOf(7) }))
	e2, _ := rt.Link(method.Func0(func(self value.Value) value.Value {
		v, err := rt.Funcall(self, inner, nil)
		if err != nil {
			return value.Qnil
		}
		return v
	}))
	require.NoError(t, rt.DefineMethodID(object, inner, e1, 0))
	require.NoError(t, rt.DefineMethodID(object, outer, e2, 0))

	obj, err := rt.NewObject(object)
	require.NoError(t, err)
	got, err := rt.Funcall(obj, outer, nil)
	require.NoError(t, err)
	assert.Equal(t, value.FixnumOf(7), got)
}

func TestFuncall_Immediates(t *testing.T) {
	rt := newRuntime(t)
	integer, _ := rt.Builtin("Integer")
	id, _ := rt.Intern([]byte("double"))
	entry, _ := rt.Link(method.Func0(func(self value.Value) value.Value {
		return value.FixnumOf((int64(self) >> 1) * 2)
	}))
	require.NoError(t, rt.DefineMethodID(integer, id, entry, 0))

	got, err := rt.Funcall(value.FixnumOf(21), id, nil)
	require.NoError(t, err)
	assert.Equal(t, value.FixnumOf(42), got)
}

func TestLinearHeap(t *testing.T) {
	ctx := context.Background()
	wrt := wazero.NewRuntime(ctx)
	defer wrt.Close(ctx)

	mem, mod, err := memory.NewLinear(ctx, wrt)
	require.NoError(t, err)
	defer mod.Close(ctx)

	rt, err := New(Options{Heap: mem})
	require.NoError(t, err)

	h, err := rt.DefineModule("Sandboxed")
	require.NoError(t, err)
	assert.Less(t, uint64(h), mem.Size())
	assert.Equal(t, value.TypeModule, decode(t, rt, h).Type())

	// enough objects to force the linear memory to grow a page
	object, _ := rt.Builtin("Object")
	for i := 0; i < 5000; i++ {
		_, err := rt.NewObject(object)
		require.NoError(t, err)
	}
	assert.Greater(t, mem.Size(), uint64(65536))
}
