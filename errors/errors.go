package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDecode       Phase = "decode"       // handle to view
	PhaseEncode       Phase = "encode"       // Go name to C string
	PhaseRegistration Phase = "registration" // class/module/method definition
	PhaseInvoke       Phase = "invoke"       // method dispatch
	PhaseLoad         Phase = "load"         // manifest or library loading
	PhaseHost         Phase = "host"         // foreign runtime failures
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidTag     Kind = "invalid_tag"
	KindUnsupported    Kind = "unsupported"
	KindTypeMismatch   Kind = "type_mismatch"
	KindInvalidName    Kind = "invalid_name"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindAllocation     Kind = "allocation"
	KindNotFound       Kind = "not_found"
	KindArity          Kind = "arity"
	KindInvalidInput   Kind = "invalid_input"
	KindNotInitialized Kind = "not_initialized"
)

// Error is the structured error type used throughout the binding layer
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Op     string
	Want   string
	Got    string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "::"))
	}

	if e.Want != "" || e.Got != "" {
		b.WriteString(": ")
		if e.Want != "" && e.Got != "" {
			b.WriteString("want ")
			b.WriteString(e.Want)
			b.WriteString(", got ")
			b.WriteString(e.Got)
		} else if e.Want != "" {
			b.WriteString("want ")
			b.WriteString(e.Want)
		} else {
			b.WriteString("got ")
			b.WriteString(e.Got)
		}
	}

	if e.Detail != "" {
		if e.Want != "" || e.Got != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// An empty Kind in the target matches any kind within the phase.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		if e.Phase != t.Phase {
			return false
		}
		return t.Kind == "" || e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Op sets the operation name
func (b *Builder) Op(op string) *Builder {
	b.err.Op = op
	return b
}

// Path sets the constant path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Want sets the expected variant or shape
func (b *Builder) Want(w string) *Builder {
	b.err.Want = w
	return b
}

// Got sets the observed variant or shape
func (b *Builder) Got(g string) *Builder {
	b.err.Got = g
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Targets for errors.Is. Kind-less targets match the whole phase.
var (
	ErrDecode         = &Error{Phase: PhaseDecode}
	ErrUnsupported    = &Error{Phase: PhaseDecode, Kind: KindUnsupported}
	ErrCorrupt        = &Error{Phase: PhaseDecode, Kind: KindInvalidTag}
	ErrTypeMismatch   = &Error{Phase: PhaseRegistration, Kind: KindTypeMismatch}
	ErrNameEncoding   = &Error{Phase: PhaseEncode, Kind: KindInvalidName}
	ErrArity          = &Error{Phase: PhaseInvoke, Kind: KindArity}
	ErrMethodNotFound = &Error{Phase: PhaseInvoke, Kind: KindNotFound}
)

// IsDecode reports whether err is any decode failure
func IsDecode(err error) bool { return errors.Is(err, ErrDecode) }

// IsUnsupported reports whether err is a decode failure for a reserved variant
func IsUnsupported(err error) bool { return errors.Is(err, ErrUnsupported) }

// IsCorrupt reports whether err is a decode failure for an undeclared tag
func IsCorrupt(err error) bool { return errors.Is(err, ErrCorrupt) }

// IsTypeMismatch reports whether err is a registration type mismatch
func IsTypeMismatch(err error) bool { return errors.Is(err, ErrTypeMismatch) }

// IsNameEncoding reports whether err is a name encoding failure
func IsNameEncoding(err error) bool { return errors.Is(err, ErrNameEncoding) }

// Convenience constructors for common error patterns

// InvalidTag creates a decode error for a handle whose bits map to no declared tag
func InvalidTag(handle uint64, tag uint64, where string) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindInvalidTag,
		Value:  handle,
		Detail: fmt.Sprintf("%s tag %#x of handle %#x is not declared", where, tag, handle),
	}
}

// Unsupported creates a decode error for a declared but unimplemented variant
func Unsupported(handle uint64, variant string) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindUnsupported,
		Value:  handle,
		Got:    variant,
		Detail: fmt.Sprintf("decoding %s values is not supported", variant),
	}
}

// OutOfBounds creates a decode error for an unreadable heap header
func OutOfBounds(addr uint64, cause error) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindOutOfBounds,
		Value:  addr,
		Detail: fmt.Sprintf("cannot read header at %#x", addr),
		Cause:  cause,
	}
}

// TypeMismatch creates a registration error for a foreign call whose result
// decoded to an unexpected variant
func TypeMismatch(op string, path []string, want, got string) *Error {
	return &Error{
		Phase: PhaseRegistration,
		Kind:  KindTypeMismatch,
		Op:    op,
		Path:  path,
		Want:  want,
		Got:   got,
	}
}

// InvalidName creates a name encoding error. offset is the position of the
// offending byte, or -1 when the name as a whole is unusable.
func InvalidName(name string, offset int, detail string) *Error {
	return &Error{
		Phase:  PhaseEncode,
		Kind:   KindInvalidName,
		Path:   []string{name},
		Value:  offset,
		Detail: detail,
	}
}

// Arity creates a dispatch error for a wrong argument count
func Arity(method string, got, want int) *Error {
	return &Error{
		Phase:  PhaseInvoke,
		Kind:   KindArity,
		Op:     method,
		Value:  got,
		Detail: fmt.Sprintf("wrong number of arguments (given %d, expected %d)", got, want),
	}
}

// MethodNotFound creates a dispatch error for an undefined method
func MethodNotFound(method string, receiver uint64) *Error {
	return &Error{
		Phase:  PhaseInvoke,
		Kind:   KindNotFound,
		Op:     method,
		Value:  receiver,
		Detail: fmt.Sprintf("undefined method for receiver %#x", receiver),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Load creates a loading error
func Load(detail string, cause error) *Error {
	return Wrap(PhaseLoad, KindInvalidInput, cause, detail)
}

// Host creates an error for a failed foreign call
func Host(op string, cause error) *Error {
	return &Error{
		Phase: PhaseHost,
		Kind:  KindInvalidInput,
		Op:    op,
		Cause: cause,
	}
}
