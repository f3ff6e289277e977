package rubyext

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/rubyext/abi"
	"github.com/wippyai/rubyext/errors"
	"github.com/wippyai/rubyext/method"
	"github.com/wippyai/rubyext/value"
)

// Options configures a Binding.
type Options struct {
	// Logger overrides the package logger.
	Logger *zap.Logger
}

// DefaultOptions returns default binding configuration.
func DefaultOptions() Options {
	return Options{}
}

// Binding defines modules, classes and methods through a foreign runtime.
type Binding struct {
	rt    abi.Runtime
	log   *zap.Logger
	names map[value.Value]string
	roots [3]rootEntry
}

type rootEntry struct {
	view value.Transient
	err  error
	once sync.Once
}

// New creates a Binding over rt.
func New(rt abi.Runtime, opts Options) *Binding {
	log := opts.Logger
	if log == nil {
		log = Logger()
	}
	return &Binding{
		rt:    rt,
		log:   log,
		names: make(map[value.Value]string),
	}
}

// NewWithDefaults creates a Binding with default options.
func NewWithDefaults(rt abi.Runtime) *Binding {
	return New(rt, DefaultOptions())
}

// Runtime returns the underlying host ABI.
func (b *Binding) Runtime() abi.Runtime {
	return b.rt
}

// Decode decodes a handle produced by this binding's runtime.
func (b *Binding) Decode(v value.Value) (value.Transient, error) {
	return value.Decode(v, b.rt.Memory())
}

// DefineModule defines or reopens a top-level module.
func (b *Binding) DefineModule(name string) (value.Module, error) {
	if err := checkName(name); err != nil {
		return value.Module{}, err
	}
	h, err := b.rt.DefineModule(name)
	if err != nil {
		return value.Module{}, errors.Host("define_module", err)
	}
	return b.expectModule("define_module", name, h)
}

// DefineModuleUnder defines or reopens a module nested in parent.
func (b *Binding) DefineModuleUnder(parent value.Namespace, name string) (value.Module, error) {
	if parent == nil {
		return value.Module{}, errors.InvalidInput(errors.PhaseRegistration, "parent namespace is nil")
	}
	if err := checkName(name); err != nil {
		return value.Module{}, err
	}
	h, err := b.rt.DefineModuleUnder(parent.Value(), name)
	if err != nil {
		return value.Module{}, errors.Host("define_module_under", err)
	}
	return b.expectModule("define_module_under", b.nested(parent, name), h)
}

// DefineClass defines or reopens a top-level class.
func (b *Binding) DefineClass(name string, super value.Class) (value.Class, error) {
	if err := checkName(name); err != nil {
		return value.Class{}, err
	}
	if err := checkSuper(super); err != nil {
		return value.Class{}, err
	}
	h, err := b.rt.DefineClass(name, super.Value())
	if err != nil {
		return value.Class{}, errors.Host("define_class", err)
	}
	return b.expectClass("define_class", name, h)
}

// DefineClassUnder defines or reopens a class nested in parent.
func (b *Binding) DefineClassUnder(parent value.Namespace, name string, super value.Class) (value.Class, error) {
	if parent == nil {
		return value.Class{}, errors.InvalidInput(errors.PhaseRegistration, "parent namespace is nil")
	}
	if err := checkName(name); err != nil {
		return value.Class{}, err
	}
	if err := checkSuper(super); err != nil {
		return value.Class{}, err
	}
	h, err := b.rt.DefineClassUnder(parent.Value(), name, super.Value())
	if err != nil {
		return value.Class{}, errors.Host("define_class_under", err)
	}
	return b.expectClass("define_class_under", b.nested(parent, name), h)
}

// SingletonClass resolves the per-object class of v.
func (b *Binding) SingletonClass(v value.Transient) (value.Class, error) {
	if v == nil {
		return value.Class{}, errors.InvalidInput(errors.PhaseRegistration, "receiver is nil")
	}
	h, err := b.rt.SingletonClass(v.Value())
	if err != nil {
		return value.Class{}, errors.Host("singleton_class", err)
	}
	return b.expectClass("singleton_class", "#<Class:"+b.nameOf(v.Value())+">", h)
}

// Intern returns the identifier for name. Equal names yield equal IDs.
func (b *Binding) Intern(name string) (value.ID, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}
	id, err := b.rt.Intern([]byte(name))
	if err != nil {
		return 0, errors.Host("intern", err)
	}
	return id, nil
}

// Symbol returns the immediate symbol for name, like ID2SYM on an interned
// identifier.
func (b *Binding) Symbol(name string) (value.Value, error) {
	id, err := b.Intern(name)
	if err != nil {
		return value.Qnil, err
	}
	return value.StaticSymbolOf(uint64(id)), nil
}

// DefineMethod registers m as an instance method of ns.
func (b *Binding) DefineMethod(ns value.Namespace, name string, m method.Method) error {
	if ns == nil {
		return errors.InvalidInput(errors.PhaseRegistration, "namespace is nil")
	}
	return b.defineMethod(ns.Value(), name, m)
}

// DefineSingletonMethod registers m on the singleton class of ns, making it
// callable on ns itself.
func (b *Binding) DefineSingletonMethod(ns value.Namespace, name string, m method.Method) error {
	if ns == nil {
		return errors.InvalidInput(errors.PhaseRegistration, "namespace is nil")
	}
	if err := checkName(name); err != nil {
		return err
	}
	meta, err := b.SingletonClass(ns)
	if err != nil {
		return err
	}
	return b.defineMethod(meta.Value(), name, m)
}

// DefineModuleFunction registers m both as an instance method of mod and as
// a singleton method, like rb_define_module_function.
func (b *Binding) DefineModuleFunction(mod value.Module, name string, m method.Method) error {
	if err := b.DefineMethod(mod, name, m); err != nil {
		return err
	}
	return b.DefineSingletonMethod(mod, name, m)
}

// IncludeModule appends mod to the ancestors of ns.
func (b *Binding) IncludeModule(ns value.Namespace, mod value.Module) error {
	if ns == nil {
		return errors.InvalidInput(errors.PhaseRegistration, "namespace is nil")
	}
	inc, ok := b.rt.(abi.Includer)
	if !ok {
		return errors.New(errors.PhaseRegistration, errors.KindUnsupported).
			Op("include_module").
			Detail("runtime does not support module inclusion").
			Build()
	}
	if err := inc.IncludeModule(ns.Value(), mod.Value()); err != nil {
		return errors.Host("include_module", err)
	}
	b.log.Debug("included module",
		zap.String("into", b.nameOf(ns.Value())),
		zap.String("module", b.nameOf(mod.Value())))
	return nil
}

// ExtendObject includes mod into the singleton class of obj.
func (b *Binding) ExtendObject(obj value.Transient, mod value.Module) error {
	if obj == nil {
		return errors.InvalidInput(errors.PhaseRegistration, "object is nil")
	}
	inc, ok := b.rt.(abi.Includer)
	if !ok {
		return errors.New(errors.PhaseRegistration, errors.KindUnsupported).
			Op("extend_object").
			Detail("runtime does not support module inclusion").
			Build()
	}
	if err := inc.ExtendObject(obj.Value(), mod.Value()); err != nil {
		return errors.Host("extend_object", err)
	}
	return nil
}

// Call dispatches name on recv with args and returns the raw result.
func (b *Binding) Call(recv value.Transient, name string, args ...value.Value) (value.Value, error) {
	if recv == nil {
		return value.Qnil, errors.InvalidInput(errors.PhaseInvoke, "receiver is nil")
	}
	caller, ok := b.rt.(abi.Caller)
	if !ok {
		return value.Qnil, errors.New(errors.PhaseInvoke, errors.KindUnsupported).
			Op(name).
			Detail("runtime does not support method calls").
			Build()
	}
	id, err := b.Intern(name)
	if err != nil {
		return value.Qnil, err
	}
	return caller.Funcall(recv.Value(), id, args)
}

// Kernel returns the Kernel module.
func (b *Binding) Kernel() (value.Module, error) {
	t, err := b.root(abi.KernelModule)
	if err != nil {
		return value.Module{}, err
	}
	return t.(value.Module), nil
}

// Enumerable returns the Enumerable module.
func (b *Binding) Enumerable() (value.Module, error) {
	t, err := b.root(abi.EnumerableModule)
	if err != nil {
		return value.Module{}, err
	}
	return t.(value.Module), nil
}

// Object returns the Object class.
func (b *Binding) Object() (value.Class, error) {
	t, err := b.root(abi.ObjectClass)
	if err != nil {
		return value.Class{}, err
	}
	return t.(value.Class), nil
}

// root resolves a well-known constant once. A failed resolution is cached
// too: the constants are fixed for the lifetime of the VM.
func (b *Binding) root(r abi.Root) (value.Transient, error) {
	e := &b.roots[r]
	e.once.Do(func() {
		h, err := b.rt.Root(r)
		if err != nil {
			e.err = errors.Host("root "+r.String(), err)
			return
		}
		if r == abi.ObjectClass {
			e.view, e.err = b.expectClass("root", r.String(), h)
		} else {
			e.view, e.err = b.expectModule("root", r.String(), h)
		}
	})
	return e.view, e.err
}

func (b *Binding) defineMethod(target value.Value, name string, m method.Method) error {
	id, err := b.Intern(name)
	if err != nil {
		return err
	}
	desc, err := method.Describe(b.rt, id, m)
	if err != nil {
		return err
	}
	if err := b.rt.DefineMethodID(target, desc.Name, desc.Entry, int32(desc.Arity)); err != nil {
		return errors.Host("define_method_id", err)
	}
	b.log.Debug("defined method",
		zap.String("owner", b.nameOf(target)),
		zap.String("name", name),
		zap.Stringer("arity", desc.Arity),
		zap.Uintptr("entry", desc.Entry))
	return nil
}

func (b *Binding) expectModule(op, path string, h value.Value) (value.Module, error) {
	t, err := b.Decode(h)
	if err != nil {
		return value.Module{}, err
	}
	mod, ok := t.(value.Module)
	if !ok {
		return value.Module{}, errors.TypeMismatch(op, []string{path}, value.TypeModule.String(), t.Type().String())
	}
	b.remember(h, path)
	b.log.Debug("resolved module", zap.String("op", op), zap.String("name", path), zap.Stringer("handle", h))
	return mod, nil
}

func (b *Binding) expectClass(op, path string, h value.Value) (value.Class, error) {
	t, err := b.Decode(h)
	if err != nil {
		return value.Class{}, err
	}
	cls, ok := t.(value.Class)
	if !ok {
		return value.Class{}, errors.TypeMismatch(op, []string{path}, value.TypeClass.String(), t.Type().String())
	}
	b.remember(h, path)
	b.log.Debug("resolved class", zap.String("op", op), zap.String("name", path), zap.Stringer("handle", h))
	return cls, nil
}

func (b *Binding) remember(h value.Value, path string) {
	if _, ok := b.names[h]; !ok {
		b.names[h] = path
	}
}

func (b *Binding) nameOf(h value.Value) string {
	if name, ok := b.names[h]; ok {
		return name
	}
	return h.String()
}

func (b *Binding) nested(parent value.Namespace, name string) string {
	if parent.Value() == b.rootValue(abi.ObjectClass) {
		return name
	}
	return b.nameOf(parent.Value()) + "::" + name
}

// rootValue reports a cached root handle without resolving it.
func (b *Binding) rootValue(r abi.Root) value.Value {
	if e := &b.roots[r]; e.view != nil {
		return e.view.Value()
	}
	return value.Qundef
}

func checkSuper(super value.Class) error {
	if super.Value() == value.Qfalse {
		return errors.InvalidInput(errors.PhaseRegistration, "superclass is not a decoded class")
	}
	return nil
}
