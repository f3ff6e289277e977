//go:build darwin || linux

package native

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/ebitengine/purego"
	"go.uber.org/zap"

	"github.com/wippyai/rubyext/abi"
	"github.com/wippyai/rubyext/errors"
	"github.com/wippyai/rubyext/memory"
	"github.com/wippyai/rubyext/method"
	"github.com/wippyai/rubyext/value"
)

// MaxCallbacks is the purego callback limit.
const MaxCallbacks = 2000

// LibraryEnv names the environment variable consulted when Options.Library
// is empty.
const LibraryEnv = "RUBYEXT_LIBRUBY"

// Options configures how libruby is loaded.
type Options struct {
	Logger *zap.Logger
	// Library is the path of libruby. Empty means $RUBYEXT_LIBRUBY, then
	// the platform default name.
	Library string
	// Setup initializes the VM with ruby_setup. Leave false when the Go code
	// runs inside an already running Ruby process.
	Setup bool
}

// DefaultOptions returns default loading configuration.
func DefaultOptions() Options {
	return Options{Setup: true}
}

// Runtime implements abi.Runtime, abi.Includer and abi.Caller over libruby.
type Runtime struct {
	log *zap.Logger
	mem memory.Native

	defineClassUnder  func(outer uintptr, name string, super uintptr) uintptr
	defineModuleUnder func(outer uintptr, name string) uintptr
	defineClass       func(name string, super uintptr) uintptr
	defineModule      func(name string) uintptr
	singletonClass    func(obj uintptr) uintptr
	defineMethodID    func(klass uintptr, id uintptr, fn uintptr, arity int32)
	intern2           func(name string, length int64) uintptr
	includeModule     func(klass uintptr, module uintptr)
	extendObject      func(obj uintptr, module uintptr)
	funcallv          func(recv uintptr, mid uintptr, argc int32, argv *value.Value) uintptr

	roots     [3]uintptr
	lib       uintptr
	callbacks int
}

// Open loads libruby and resolves every entry point the binding uses.
func Open(opts Options) (*Runtime, error) {
	path := opts.Library
	if path == "" {
		path = os.Getenv(LibraryEnv)
	}
	if path == "" {
		path = defaultLibrary
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, errors.Load("dlopen "+path, err)
	}

	r := &Runtime{log: log, lib: lib}
	binds := []struct {
		fptr any
		name string
	}{
		{&r.defineClassUnder, "rb_define_class_under"},
		{&r.defineModuleUnder, "rb_define_module_under"},
		{&r.defineClass, "rb_define_class"},
		{&r.defineModule, "rb_define_module"},
		{&r.singletonClass, "rb_singleton_class"},
		{&r.defineMethodID, "rb_define_method_id"},
		{&r.intern2, "rb_intern2"},
		{&r.includeModule, "rb_include_module"},
		{&r.extendObject, "rb_extend_object"},
		{&r.funcallv, "rb_funcallv"},
	}
	for _, b := range binds {
		sym, err := purego.Dlsym(lib, b.name)
		if err != nil {
			_ = purego.Dlclose(lib)
			return nil, errors.Load("resolve "+b.name, err)
		}
		purego.RegisterFunc(b.fptr, sym)
	}

	for root, name := range map[abi.Root]string{
		abi.KernelModule:     "rb_mKernel",
		abi.EnumerableModule: "rb_mEnumerable",
		abi.ObjectClass:      "rb_cObject",
	} {
		sym, err := purego.Dlsym(lib, name)
		if err != nil {
			_ = purego.Dlclose(lib)
			return nil, errors.Load("resolve "+name, err)
		}
		r.roots[root] = sym
	}

	if opts.Setup {
		var setup func() int32
		sym, err := purego.Dlsym(lib, "ruby_setup")
		if err != nil {
			_ = purego.Dlclose(lib)
			return nil, errors.Load("resolve ruby_setup", err)
		}
		purego.RegisterFunc(&setup, sym)
		if state := setup(); state != 0 {
			_ = purego.Dlclose(lib)
			return nil, errors.Load(fmt.Sprintf("ruby_setup returned state %d", state), nil)
		}
	}

	log.Debug("libruby loaded", zap.String("path", path), zap.Bool("setup", opts.Setup))
	return r, nil
}

// Close unloads the library. Handles and linked entries become invalid.
func (r *Runtime) Close() error {
	return purego.Dlclose(r.lib)
}

// Memory implements abi.Runtime.
func (r *Runtime) Memory() value.Memory {
	return r.mem
}

// Root reads the current value of a well-known global.
func (r *Runtime) Root(root abi.Root) (value.Value, error) {
	if int(root) < 0 || int(root) >= len(r.roots) {
		return 0, errors.New(errors.PhaseRegistration, errors.KindNotFound).
			Detail("unknown root %d", int(root)).
			Build()
	}
	v, err := r.mem.ReadU64(uint64(r.roots[root]))
	if err != nil {
		return 0, err
	}
	return value.Value(v), nil
}

func (r *Runtime) DefineClassUnder(outer value.Value, name string, super value.Value) (value.Value, error) {
	return value.Value(r.defineClassUnder(uintptr(outer), name, uintptr(super))), nil
}

func (r *Runtime) DefineModuleUnder(outer value.Value, name string) (value.Value, error) {
	return value.Value(r.defineModuleUnder(uintptr(outer), name)), nil
}

func (r *Runtime) DefineClass(name string, super value.Value) (value.Value, error) {
	return value.Value(r.defineClass(name, uintptr(super))), nil
}

func (r *Runtime) DefineModule(name string) (value.Value, error) {
	return value.Value(r.defineModule(name)), nil
}

func (r *Runtime) SingletonClass(v value.Value) (value.Value, error) {
	return value.Value(r.singletonClass(uintptr(v))), nil
}

func (r *Runtime) DefineMethodID(class value.Value, id value.ID, entry uintptr, arity int32) error {
	if entry == 0 {
		return errors.InvalidInput(errors.PhaseRegistration, "null entry point")
	}
	r.defineMethodID(uintptr(class), uintptr(id), entry, arity)
	return nil
}

func (r *Runtime) Intern(name []byte) (value.ID, error) {
	return value.ID(r.intern2(string(name), int64(len(name)))), nil
}

func (r *Runtime) IncludeModule(class, module value.Value) error {
	r.includeModule(uintptr(class), uintptr(module))
	return nil
}

func (r *Runtime) ExtendObject(obj, module value.Value) error {
	r.extendObject(uintptr(obj), uintptr(module))
	return nil
}

func (r *Runtime) Funcall(recv value.Value, id value.ID, args []value.Value) (value.Value, error) {
	var argv *value.Value
	if len(args) > 0 {
		argv = &args[0]
	}
	return value.Value(r.funcallv(uintptr(recv), uintptr(id), int32(len(args)), argv)), nil
}

// Link wraps m in a C-callable trampoline.
func (r *Runtime) Link(m method.Method) (entry uintptr, err error) {
	if method.IsNil(m) {
		return 0, errors.InvalidInput(errors.PhaseRegistration, "cannot link nil method")
	}
	if r.callbacks >= MaxCallbacks {
		return 0, errors.New(errors.PhaseRegistration, errors.KindAllocation).
			Detail("callback limit of %d reached", MaxCallbacks).
			Build()
	}

	var cb any
	switch f := m.(type) {
	case method.Func0:
		cb = func(self uintptr) uintptr {
			return r.guard(func() value.Value { return f(value.Value(self)) })
		}
	case method.Func1:
		cb = func(self, a uintptr) uintptr {
			return r.guard(func() value.Value { return f(value.Value(self), value.Value(a)) })
		}
	case method.Func2:
		cb = func(self, a, b uintptr) uintptr {
			return r.guard(func() value.Value { return f(value.Value(self), value.Value(a), value.Value(b)) })
		}
	case method.FuncN:
		// argc is a C int: only the low 32 bits of the register are defined
		cb = func(argc, argv, self uintptr) uintptr {
			return r.guard(func() value.Value {
				return f(int(int32(argc)), (*value.Value)(unsafe.Pointer(argv)), value.Value(self))
			})
		}
	}

	defer func() {
		if p := recover(); p != nil {
			entry, err = 0, errors.New(errors.PhaseRegistration, errors.KindAllocation).
				Detail("create callback: %v", p).
				Build()
		}
	}()
	entry = purego.NewCallback(cb)
	r.callbacks++
	r.log.Debug("linked entry", zap.Stringer("arity", m.Arity()), zap.Uintptr("entry", entry))
	return entry, nil
}

// guard runs a method body. A panic must not unwind into the VM's C frames,
// so it is logged and the call returns nil.
func (r *Runtime) guard(call func() value.Value) (out uintptr) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("method panicked", zap.Any("panic", p))
			out = uintptr(value.Qnil)
		}
	}()
	return uintptr(call())
}
