package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseRegistration,
				Kind:   KindTypeMismatch,
				Op:     "define_class_under",
				Path:   []string{"Outer", "Inner"},
				Want:   "Class",
				Got:    "Module",
				Detail: "constant already defined",
			},
			contains: []string{"[registration]", "type_mismatch", "define_class_under", "Outer::Inner", "want Class", "got Module", "constant already defined"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseDecode,
				Kind:  KindInvalidTag,
			},
			contains: []string{"[decode]", "invalid_tag"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseDecode,
				Kind:   KindOutOfBounds,
				Detail: "cannot read header",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[decode]", "out_of_bounds", "cannot read header", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				assert.Contains(t, msg, s)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := OutOfBounds(0x1000, cause)

	assert.ErrorIs(t, err.Unwrap(), cause)
	assert.ErrorIs(t, errors.Unwrap(err), cause)
}

func TestError_Is(t *testing.T) {
	err := &Error{Phase: PhaseDecode, Kind: KindUnsupported, Got: "String"}

	assert.True(t, err.Is(&Error{Phase: PhaseDecode, Kind: KindUnsupported}))
	assert.True(t, err.Is(&Error{Phase: PhaseDecode}), "kind-less target matches phase")
	assert.False(t, err.Is(&Error{Phase: PhaseEncode, Kind: KindUnsupported}))
	assert.False(t, err.Is(&Error{Phase: PhaseDecode, Kind: KindInvalidTag}))
	assert.False(t, err.Is(errors.New("plain")))
}

func TestPredicates(t *testing.T) {
	unsupported := Unsupported(0x2, "Float")
	corrupt := InvalidTag(0x1000, 0x1f, "header")
	mismatch := TypeMismatch("define_module", []string{"Foo"}, "Module", "Class")
	name := InvalidName("a\x00b", 1, "interior NUL")

	assert.True(t, IsDecode(unsupported))
	assert.True(t, IsDecode(corrupt))
	assert.True(t, IsUnsupported(unsupported))
	assert.False(t, IsUnsupported(corrupt), "unsupported must be distinct from corruption")
	assert.True(t, IsCorrupt(corrupt))
	assert.False(t, IsCorrupt(unsupported))

	assert.True(t, IsTypeMismatch(mismatch))
	assert.False(t, IsDecode(mismatch))

	assert.True(t, IsNameEncoding(name))
	assert.Equal(t, 1, name.Value)

	wrapped := Wrap(PhaseLoad, KindInvalidInput, mismatch, "apply manifest")
	assert.True(t, IsTypeMismatch(wrapped), "predicates see through causes")
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseRegistration, KindTypeMismatch).
		Op("singleton_class").
		Path("Foo").
		Want("Class").
		Got("Object").
		Value(uint64(0x40)).
		Cause(cause).
		Detail("expected %s, got %s", "Class", "Object").
		Build()

	require.NotNil(t, err)
	assert.Equal(t, PhaseRegistration, err.Phase)
	assert.Equal(t, KindTypeMismatch, err.Kind)
	assert.Equal(t, "singleton_class", err.Op)
	assert.Equal(t, []string{"Foo"}, err.Path)
	assert.Equal(t, "Class", err.Want)
	assert.Equal(t, "Object", err.Got)
	assert.Equal(t, uint64(0x40), err.Value)
	assert.ErrorIs(t, err.Cause, cause)
	assert.Equal(t, "expected Class, got Object", err.Detail)
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("Arity", func(t *testing.T) {
		err := Arity("hello", 2, 0)
		assert.Equal(t, KindArity, err.Kind)
		assert.Contains(t, err.Detail, "given 2, expected 0")
		assert.ErrorIs(t, err, ErrArity)
	})

	t.Run("MethodNotFound", func(t *testing.T) {
		err := MethodNotFound("missing", 0x40)
		assert.ErrorIs(t, err, ErrMethodNotFound)
	})

	t.Run("InvalidInput", func(t *testing.T) {
		err := InvalidInput(PhaseLoad, "empty manifest")
		assert.Equal(t, KindInvalidInput, err.Kind)
		assert.Equal(t, PhaseLoad, err.Phase)
	})

	t.Run("Host", func(t *testing.T) {
		cause := errors.New("symbol not found")
		err := Host("rb_define_module", cause)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "rb_define_module")
	})
}
