package sim

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/rubyext/abi"
	"github.com/wippyai/rubyext/errors"
	"github.com/wippyai/rubyext/memory"
	"github.com/wippyai/rubyext/method"
	"github.com/wippyai/rubyext/value"
)

const (
	// DefaultHeapBase is where the default arena starts.
	DefaultHeapBase = 0x10000
	// DefaultEntryBase is the first synthetic method address.
	DefaultEntryBase = 0x4000_0000

	// flSingleton marks singleton classes in the flags word.
	flSingleton = 1 << 13

	objectSize    = 16
	reservedBytes = 0x40
	idScopeShift  = 4
)

// Options configures a simulated runtime.
type Options struct {
	// Heap receives object headers. Nil selects an arena at DefaultHeapBase.
	Heap memory.Heap
	// EntryBase is the first address handed out for linked methods.
	EntryBase uintptr
	// Logger overrides the package logger.
	Logger *zap.Logger
}

// DefaultOptions returns default simulation configuration.
func DefaultOptions() Options {
	return Options{
		EntryBase: DefaultEntryBase,
	}
}

type object struct {
	consts    map[string]value.Value
	methods   map[value.ID]methodEntry
	name      string
	includes  []value.Value
	klass     value.Value
	super     value.Value
	attached  value.Value
	typ       value.Type
	singleton bool
}

type methodEntry struct {
	entry uintptr
	arity int32
}

// Runtime is a simulated foreign runtime. It is safe for concurrent use, but
// methods dispatched by Funcall run without the lock held so they may call
// back into the runtime.
type Runtime struct {
	heap    memory.Heap
	log     *zap.Logger
	entries *method.Table
	objects map[value.Value]*object
	ids     map[string]value.ID
	names   []string
	builtin map[string]value.Value
	next    uint64
	mu      sync.Mutex
}

// New creates a runtime and bootstraps the core hierarchy:
// BasicObject, Object, Module, Class, Kernel, Enumerable and the classes of
// immediates.
func New(opts Options) (*Runtime, error) {
	heap := opts.Heap
	if heap == nil {
		arena, err := memory.NewArena(DefaultHeapBase, 4096)
		if err != nil {
			return nil, err
		}
		heap = arena
	}
	if heap.Base()%8 != 0 {
		return nil, errors.New(errors.PhaseLoad, errors.KindInvalidInput).
			Detail("heap base %#x is not 8-byte aligned", heap.Base()).
			Build()
	}
	entryBase := opts.EntryBase
	if entryBase == 0 {
		entryBase = DefaultEntryBase
	}
	log := opts.Logger
	if log == nil {
		log = Logger()
	}

	r := &Runtime{
		heap:    heap,
		log:     log,
		entries: method.NewTable(entryBase),
		objects: make(map[value.Value]*object),
		ids:     make(map[string]value.ID),
		builtin: make(map[string]value.Value),
		next:    heap.Base() + reservedBytes,
	}
	if err := r.bootstrap(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runtime) bootstrap() error {
	basic, err := r.alloc(value.TypeClass, 0, 0)
	if err != nil {
		return err
	}
	r.objects[basic].name = "BasicObject"

	define := func(name string, typ value.Type, super value.Value) (value.Value, error) {
		h, err := r.alloc(typ, 0, super)
		if err != nil {
			return 0, err
		}
		r.objects[h].name = name
		r.builtin[name] = h
		return h, nil
	}

	object, err := define("Object", value.TypeClass, basic)
	if err != nil {
		return err
	}
	module, err := define("Module", value.TypeClass, object)
	if err != nil {
		return err
	}
	class, err := define("Class", value.TypeClass, module)
	if err != nil {
		return err
	}
	r.builtin["BasicObject"] = basic

	for _, h := range []value.Value{basic, object, module, class} {
		if err := r.setKlass(h, class); err != nil {
			return err
		}
	}

	for _, name := range []string{"Kernel", "Enumerable", "Comparable"} {
		h, err := define(name, value.TypeModule, 0)
		if err != nil {
			return err
		}
		if err := r.setKlass(h, module); err != nil {
			return err
		}
	}
	r.objects[object].includes = append(r.objects[object].includes, r.builtin["Kernel"])

	for _, name := range []string{"NilClass", "TrueClass", "FalseClass", "Integer", "Symbol", "Float", "String"} {
		h, err := define(name, value.TypeClass, object)
		if err != nil {
			return err
		}
		if err := r.setKlass(h, class); err != nil {
			return err
		}
	}

	consts := r.objects[object].consts
	for name, h := range r.builtin {
		consts[name] = h
	}
	return nil
}

// alloc lays out a new header. Callers hold the lock or are bootstrapping.
func (r *Runtime) alloc(typ value.Type, klass, super value.Value) (value.Value, error) {
	addr := r.next
	if err := r.heap.Grow(addr - r.heap.Base() + objectSize); err != nil {
		return 0, errors.Wrap(errors.PhaseRegistration, errors.KindAllocation, err, "heap exhausted")
	}
	if err := r.heap.WriteU64(addr, uint64(typ)); err != nil {
		return 0, err
	}
	if err := r.heap.WriteU64(addr+8, uint64(klass)); err != nil {
		return 0, err
	}
	r.next += objectSize

	h := value.Value(addr)
	obj := &object{typ: typ, klass: klass, super: super}
	if typ == value.TypeClass || typ == value.TypeModule {
		obj.consts = make(map[string]value.Value)
		obj.methods = make(map[value.ID]methodEntry)
	}
	r.objects[h] = obj
	return h, nil
}

func (r *Runtime) setKlass(h, klass value.Value) error {
	r.objects[h].klass = klass
	return r.heap.WriteU64(uint64(h)+8, uint64(klass))
}

func (r *Runtime) setFlags(h value.Value, flags uint64) error {
	return r.heap.WriteU64(uint64(h), flags)
}

// Memory returns the heap the runtime lays objects out in.
func (r *Runtime) Memory() value.Memory {
	return r.heap
}

// Link implements method.Linker.
func (r *Runtime) Link(m method.Method) (uintptr, error) {
	return r.entries.Link(m)
}

// Root implements abi.Runtime.
func (r *Runtime) Root(root abi.Root) (value.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.builtin[root.String()]
	if !ok {
		return 0, failure(errors.KindNotFound, "unknown root %d", int(root))
	}
	return h, nil
}

// Builtin returns a bootstrapped class or module by name.
func (r *Runtime) Builtin(name string) (value.Value, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.builtin[name]
	return h, ok
}

// DefineModule implements abi.Runtime.
func (r *Runtime) DefineModule(name string) (value.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.defineModuleUnder(r.builtin["Object"], name)
}

// DefineModuleUnder implements abi.Runtime.
func (r *Runtime) DefineModuleUnder(outer value.Value, name string) (value.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.defineModuleUnder(outer, name)
}

func (r *Runtime) defineModuleUnder(outer value.Value, name string) (value.Value, error) {
	ns, err := r.namespace(outer)
	if err != nil {
		return 0, err
	}
	if existing, ok := ns.consts[name]; ok {
		return existing, nil
	}
	h, err := r.alloc(value.TypeModule, r.builtin["Module"], 0)
	if err != nil {
		return 0, err
	}
	r.objects[h].name = r.qualify(outer, name)
	ns.consts[name] = h
	r.log.Debug("module defined", zap.String("name", r.objects[h].name), zap.Stringer("handle", h))
	return h, nil
}

// DefineClass implements abi.Runtime.
func (r *Runtime) DefineClass(name string, super value.Value) (value.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.defineClassUnder(r.builtin["Object"], name, super)
}

// DefineClassUnder implements abi.Runtime.
func (r *Runtime) DefineClassUnder(outer value.Value, name string, super value.Value) (value.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.defineClassUnder(outer, name, super)
}

func (r *Runtime) defineClassUnder(outer value.Value, name string, super value.Value) (value.Value, error) {
	ns, err := r.namespace(outer)
	if err != nil {
		return 0, err
	}
	sup, ok := r.objects[super]
	if !ok || sup.typ != value.TypeClass || sup.singleton {
		return 0, failure(errors.KindInvalidInput, "superclass must be a Class (%s given)", super)
	}
	if existing, ok := ns.consts[name]; ok {
		if obj := r.objects[existing]; obj != nil && obj.typ == value.TypeClass && obj.super != super {
			return 0, failure(errors.KindTypeMismatch, "superclass mismatch for class %s", name)
		}
		return existing, nil
	}
	h, err := r.alloc(value.TypeClass, r.builtin["Class"], super)
	if err != nil {
		return 0, err
	}
	r.objects[h].name = r.qualify(outer, name)
	ns.consts[name] = h
	r.log.Debug("class defined", zap.String("name", r.objects[h].name), zap.Stringer("super", super))
	return h, nil
}

// SingletonClass implements abi.Runtime.
func (r *Runtime) SingletonClass(v value.Value) (value.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.singletonClass(v)
}

func (r *Runtime) singletonClass(v value.Value) (value.Value, error) {
	switch {
	case v == value.Qnil:
		return r.builtin["NilClass"], nil
	case v == value.Qtrue:
		return r.builtin["TrueClass"], nil
	case v == value.Qfalse:
		return r.builtin["FalseClass"], nil
	case v.IsImmediate():
		return 0, failure(errors.KindInvalidInput, "can't define singleton for immediate %s", v)
	}

	obj, ok := r.objects[v]
	if !ok {
		return 0, failure(errors.KindNotFound, "unknown object %s", v)
	}
	if k := r.objects[obj.klass]; k != nil && k.singleton && k.attached == v {
		return obj.klass, nil
	}

	super := obj.klass
	if obj.typ == value.TypeClass && obj.super != 0 {
		// class methods are inherited: the metaclass of C inherits from the
		// metaclass of C's superclass
		metaSuper, err := r.singletonClass(obj.super)
		if err != nil {
			return 0, err
		}
		super = metaSuper
	}

	meta, err := r.alloc(value.TypeClass, r.builtin["Class"], super)
	if err != nil {
		return 0, err
	}
	m := r.objects[meta]
	m.singleton = true
	m.attached = v
	m.name = "#<Class:" + r.name(v) + ">"
	if err := r.setFlags(meta, uint64(value.TypeClass)|flSingleton); err != nil {
		return 0, err
	}
	if err := r.setKlass(v, meta); err != nil {
		return 0, err
	}
	return meta, nil
}

// DefineMethodID implements abi.Runtime.
func (r *Runtime) DefineMethodID(class value.Value, id value.ID, entry uintptr, arity int32) error {
	m, ok := r.entries.Lookup(entry)
	if !ok {
		return failure(errors.KindNotFound, "entry %#x was not linked by this runtime", entry)
	}
	if int32(m.Arity()) != arity {
		return failure(errors.KindArity, "arity %d does not match entry shape %s", arity, m.Arity())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	ns, err := r.namespace(class)
	if err != nil {
		return err
	}
	if !r.known(id) {
		return failure(errors.KindNotFound, "unknown id %d", id)
	}
	ns.methods[id] = methodEntry{entry: entry, arity: arity}
	r.log.Debug("method defined",
		zap.String("owner", ns.name),
		zap.String("name", r.idName(id)),
		zap.Int32("arity", arity))
	return nil
}

// Intern implements abi.Runtime.
func (r *Runtime) Intern(name []byte) (value.ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.intern(string(name)), nil
}

func (r *Runtime) intern(name string) value.ID {
	if id, ok := r.ids[name]; ok {
		return id
	}
	r.names = append(r.names, name)
	id := value.ID(len(r.names)) << idScopeShift
	r.ids[name] = id
	return id
}

// IncludeModule implements abi.Includer.
func (r *Runtime) IncludeModule(class, module value.Value) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.include(class, module)
}

func (r *Runtime) include(class, module value.Value) error {
	ns, err := r.namespace(class)
	if err != nil {
		return err
	}
	mod, ok := r.objects[module]
	if !ok || mod.typ != value.TypeModule {
		return failure(errors.KindTypeMismatch, "wrong argument type %s (expected Module)", module)
	}
	for _, inc := range ns.includes {
		if inc == module {
			return nil
		}
	}
	ns.includes = append(ns.includes, module)
	return nil
}

// ExtendObject implements abi.Includer.
func (r *Runtime) ExtendObject(obj, module value.Value) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	meta, err := r.singletonClass(obj)
	if err != nil {
		return err
	}
	return r.include(meta, module)
}

// NewObject allocates a plain instance of class.
func (r *Runtime) NewObject(class value.Value) (value.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cls, ok := r.objects[class]
	if !ok || cls.typ != value.TypeClass || cls.singleton {
		return 0, failure(errors.KindInvalidInput, "%s is not an instantiable class", class)
	}
	return r.alloc(value.TypeObject, class, 0)
}

// Funcall implements abi.Caller. The method runs without the runtime lock.
func (r *Runtime) Funcall(recv value.Value, id value.ID, args []value.Value) (value.Value, error) {
	r.mu.Lock()
	name := r.idName(id)
	class, err := r.dispatchClass(recv)
	if err != nil {
		r.mu.Unlock()
		return value.Qnil, err
	}
	entry, found := r.lookup(class, id)
	r.mu.Unlock()

	if !found {
		return value.Qnil, errors.MethodNotFound(name, uint64(recv))
	}
	m, ok := r.entries.Lookup(entry.entry)
	if !ok {
		return value.Qnil, errors.New(errors.PhaseInvoke, errors.KindNotFound).
			Op(name).
			Detail("entry %#x vanished", entry.entry).
			Build()
	}
	return method.Invoke(name, m, recv, args)
}

// Symbol returns the static symbol for name. Its index is the interned ID.
func (r *Runtime) Symbol(name string) value.Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	return value.StaticSymbolOf(uint64(r.intern(name)))
}

// SymbolName resolves the name behind a decoded symbol index.
func (r *Runtime) SymbolName(index uint64) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.known(value.ID(index)) {
		return "", false
	}
	return r.names[index>>idScopeShift-1], true
}

// known reports whether id was handed out by Intern.
func (r *Runtime) known(id value.ID) bool {
	serial := uint64(id >> idScopeShift)
	return id&(1<<idScopeShift-1) == 0 && serial != 0 && serial <= uint64(len(r.names))
}

// ClassOf returns the class a method call on v would search first.
func (r *Runtime) ClassOf(v value.Value) value.Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.classOf(v)
}

// Name returns the constant path of a class or module, or a description.
func (r *Runtime) Name(v value.Value) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name(v)
}

// Constants lists the constant names defined directly under ns.
func (r *Runtime) Constants(ns value.Value) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj, ok := r.objects[ns]
	if !ok || obj.consts == nil {
		return nil
	}
	names := make([]string, 0, len(obj.consts))
	for name := range obj.consts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Methods lists the method names defined directly on ns with their arity.
func (r *Runtime) Methods(ns value.Value) map[string]int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj, ok := r.objects[ns]
	if !ok || obj.methods == nil {
		return nil
	}
	out := make(map[string]int32, len(obj.methods))
	for id, e := range obj.methods {
		out[r.idName(id)] = e.arity
	}
	return out
}

// Ancestors returns the method resolution order starting at class.
func (r *Runtime) Ancestors(class value.Value) []value.Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ancestors(class)
}

func (r *Runtime) ancestors(class value.Value) []value.Value {
	var out []value.Value
	for c := class; c != 0; {
		obj, ok := r.objects[c]
		if !ok {
			break
		}
		out = append(out, c)
		out = append(out, r.moduleChain(obj.includes)...)
		c = obj.super
	}
	return out
}

// moduleChain expands includes, most recently included first.
func (r *Runtime) moduleChain(includes []value.Value) []value.Value {
	var out []value.Value
	for i := len(includes) - 1; i >= 0; i-- {
		m := includes[i]
		out = append(out, m)
		if obj, ok := r.objects[m]; ok {
			out = append(out, r.moduleChain(obj.includes)...)
		}
	}
	return out
}

func (r *Runtime) lookup(class value.Value, id value.ID) (methodEntry, bool) {
	for _, c := range r.ancestors(class) {
		if e, ok := r.objects[c].methods[id]; ok {
			return e, true
		}
	}
	return methodEntry{}, false
}

// dispatchClass is classOf, except that a class receiver always dispatches
// through its metaclass so inherited class methods resolve. Metaclasses are
// materialized on first dispatch.
func (r *Runtime) dispatchClass(recv value.Value) (value.Value, error) {
	if obj, ok := r.objects[recv]; ok && obj.typ == value.TypeClass && !obj.singleton {
		return r.singletonClass(recv)
	}
	return r.classOf(recv), nil
}

func (r *Runtime) classOf(v value.Value) value.Value {
	switch {
	case v == value.Qnil:
		return r.builtin["NilClass"]
	case v == value.Qtrue:
		return r.builtin["TrueClass"]
	case v == value.Qfalse:
		return r.builtin["FalseClass"]
	case v&value.FixnumFlag == value.FixnumFlag:
		return r.builtin["Integer"]
	case v&value.FlonumMask == value.FlonumFlag:
		return r.builtin["Float"]
	case v&value.SpecialMask == value.SymbolFlag:
		return r.builtin["Symbol"]
	}
	if obj, ok := r.objects[v]; ok {
		return obj.klass
	}
	return 0
}

// failure builds a registration error the way the VM would raise one.
func failure(kind errors.Kind, format string, args ...any) error {
	return errors.New(errors.PhaseRegistration, kind).Detail(format, args...).Build()
}

func (r *Runtime) namespace(h value.Value) (*object, error) {
	obj, ok := r.objects[h]
	if !ok || (obj.typ != value.TypeClass && obj.typ != value.TypeModule) {
		return nil, failure(errors.KindTypeMismatch, "%s is not a class/module", h)
	}
	return obj, nil
}

func (r *Runtime) qualify(outer value.Value, name string) string {
	if outer == r.builtin["Object"] {
		return name
	}
	return r.name(outer) + "::" + name
}

func (r *Runtime) name(v value.Value) string {
	if obj, ok := r.objects[v]; ok {
		if obj.name != "" {
			return obj.name
		}
		if k, ok := r.objects[obj.klass]; ok {
			return fmt.Sprintf("#<%s:%s>", k.name, v)
		}
	}
	return v.String()
}

func (r *Runtime) idName(id value.ID) string {
	if !r.known(id) {
		return fmt.Sprintf("id:%d", id)
	}
	return r.names[id>>idScopeShift-1]
}
