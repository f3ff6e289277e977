package manifest

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/wippyai/rubyext"
	"github.com/wippyai/rubyext/errors"
	"github.com/wippyai/rubyext/method"
	"github.com/wippyai/rubyext/value"
)

// Result holds what Apply defined.
type Result struct {
	namespaces map[string]value.Namespace
	calls      map[string]*atomic.Int64
}

// Namespace returns a defined module or class by constant path.
func (r *Result) Namespace(path string) (value.Namespace, bool) {
	ns, ok := r.namespaces[path]
	return ns, ok
}

// Paths lists every defined constant path in sorted order.
func (r *Result) Paths() []string {
	out := make([]string, 0, len(r.namespaces))
	for p := range r.namespaces {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Calls reports how many times a defined method ran. Keys use Ruby's
// notation: "Hello#hello" for instance methods, "Hello.hello" for
// singleton methods. Module functions count under the singleton form.
func (r *Result) Calls(key string) int64 {
	if c, ok := r.calls[key]; ok {
		return c.Load()
	}
	return 0
}

// Apply defines every namespace and method in m through b, in order.
func Apply(b *rubyext.Binding, m *Manifest) (*Result, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	res := &Result{
		namespaces: make(map[string]value.Namespace),
		calls:      make(map[string]*atomic.Int64),
	}
	a := applier{b: b, res: res}
	for i, ns := range m.Namespaces {
		if err := a.namespace(ns); err != nil {
			return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err,
				fmt.Sprintf("namespaces[%d] %s", i, ns.Path()))
		}
	}
	return res, nil
}

type applier struct {
	b   *rubyext.Binding
	res *Result
}

func (a *applier) resolve(path string) (value.Namespace, error) {
	if ns, ok := a.res.namespaces[path]; ok {
		return ns, nil
	}
	switch path {
	case "Object":
		return a.b.Object()
	case "Kernel":
		return a.b.Kernel()
	case "Enumerable":
		return a.b.Enumerable()
	}
	return nil, errors.New(errors.PhaseLoad, errors.KindNotFound).
		Path(path).
		Detail("namespace is not defined").
		Build()
}

func (a *applier) module(path string) (value.Module, error) {
	ns, err := a.resolve(path)
	if err != nil {
		return value.Module{}, err
	}
	mod, ok := ns.(value.Module)
	if !ok {
		return value.Module{}, errors.TypeMismatch("resolve", []string{path}, value.TypeModule.String(), ns.Type().String())
	}
	return mod, nil
}

func (a *applier) namespace(ns Namespace) error {
	var parent value.Namespace
	if ns.Under != "" {
		p, err := a.resolve(ns.Under)
		if err != nil {
			return err
		}
		parent = p
	}

	var (
		def value.Namespace
		err error
	)
	switch ns.Kind {
	case KindModule:
		if parent == nil {
			def, err = a.b.DefineModule(ns.Name)
		} else {
			def, err = a.b.DefineModuleUnder(parent, ns.Name)
		}
	case KindClass:
		def, err = a.class(parent, ns)
	default:
		err = errors.InvalidInput(errors.PhaseLoad, "unknown kind "+string(ns.Kind))
	}
	if err != nil {
		return err
	}
	path := ns.Path()
	a.res.namespaces[path] = def

	for _, p := range ns.Include {
		mod, err := a.module(p)
		if err != nil {
			return err
		}
		if err := a.b.IncludeModule(def, mod); err != nil {
			return err
		}
	}
	for _, p := range ns.Extend {
		mod, err := a.module(p)
		if err != nil {
			return err
		}
		if err := a.b.ExtendObject(def, mod); err != nil {
			return err
		}
	}

	for _, m := range ns.Methods {
		fn, err := a.build(m, path+"#"+m.Name)
		if err != nil {
			return err
		}
		if err := a.b.DefineMethod(def, m.Name, fn); err != nil {
			return err
		}
	}
	for _, m := range ns.SingletonMethods {
		fn, err := a.build(m, path+"."+m.Name)
		if err != nil {
			return err
		}
		if err := a.b.DefineSingletonMethod(def, m.Name, fn); err != nil {
			return err
		}
	}
	if len(ns.ModuleFunctions) > 0 {
		mod, ok := def.(value.Module)
		if !ok {
			return errors.TypeMismatch("module_function", []string{path}, value.TypeModule.String(), def.Type().String())
		}
		for _, m := range ns.ModuleFunctions {
			fn, err := a.build(m, path+"."+m.Name)
			if err != nil {
				return err
			}
			if err := a.b.DefineModuleFunction(mod, m.Name, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *applier) class(parent value.Namespace, ns Namespace) (value.Class, error) {
	superPath := ns.Super
	if superPath == "" {
		superPath = "Object"
	}
	sup, err := a.resolve(superPath)
	if err != nil {
		return value.Class{}, err
	}
	super, ok := sup.(value.Class)
	if !ok {
		return value.Class{}, errors.TypeMismatch("superclass", []string{superPath}, value.TypeClass.String(), sup.Type().String())
	}
	if parent == nil {
		return a.b.DefineClass(ns.Name, super)
	}
	return a.b.DefineClassUnder(parent, ns.Name, super)
}

// build turns a canned behaviour into a method of the declared shape. Every
// invocation bumps the counters named by keys.
func (a *applier) build(m Method, keys ...string) (method.Method, error) {
	counters := make([]*atomic.Int64, len(keys))
	for i, k := range keys {
		c, ok := a.res.calls[k]
		if !ok {
			c = new(atomic.Int64)
			a.res.calls[k] = c
		}
		counters[i] = c
	}

	var fixed value.Value
	switch m.Returns {
	case ReturnsNil:
		fixed = value.Qnil
	case ReturnsTrue:
		fixed = value.Qtrue
	case ReturnsFalse:
		fixed = value.Qfalse
	case ReturnsInt:
		fixed = value.FixnumOf(m.Int)
	case ReturnsSymbol:
		sym, err := a.b.Symbol(m.Symbol)
		if err != nil {
			return nil, err
		}
		fixed = sym
	case ReturnsSelf, ReturnsArg, ReturnsArgc:
	default:
		return nil, errors.InvalidInput(errors.PhaseLoad, "unknown behaviour "+string(m.Returns))
	}

	eval := func(self value.Value, args []value.Value) value.Value {
		for _, c := range counters {
			c.Add(1)
		}
		switch m.Returns {
		case ReturnsSelf:
			return self
		case ReturnsArg:
			if len(args) == 0 {
				return value.Qnil
			}
			return args[0]
		case ReturnsArgc:
			return value.FixnumOf(int64(len(args)))
		}
		return fixed
	}

	switch m.Arity {
	case 0:
		return method.Func0(func(self value.Value) value.Value {
			return eval(self, nil)
		}), nil
	case 1:
		return method.Func1(func(self, a0 value.Value) value.Value {
			return eval(self, []value.Value{a0})
		}), nil
	case 2:
		return method.Func2(func(self, a0, a1 value.Value) value.Value {
			return eval(self, []value.Value{a0, a1})
		}), nil
	case int(method.Variadic):
		return method.FuncN(func(argc int, argv *value.Value, self value.Value) value.Value {
			return eval(self, method.Args(argc, argv))
		}), nil
	}
	return nil, errors.Arity(m.Name, m.Arity, 0)
}
