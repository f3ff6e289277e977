package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/rubyext"
	"github.com/wippyai/rubyext/abi"
	"github.com/wippyai/rubyext/abi/native"
	"github.com/wippyai/rubyext/manifest"
	"github.com/wippyai/rubyext/memory"
	"github.com/wippyai/rubyext/sim"
	"github.com/wippyai/rubyext/value"
)

// session is one binding plus whatever a manifest defined through it.
type session struct {
	b      *rubyext.Binding
	sim    *sim.Runtime
	close  func() error
	man    *manifest.Manifest
	res    *manifest.Result
	source string
}

type methodRef struct {
	target string
	arity  int
}

// openSession loads libruby from lib, or simulates a runtime when lib is
// empty. wasmHeap places the simulated heap in wazero linear memory.
func openSession(lib string, wasmHeap bool, log *zap.Logger) (*session, error) {
	if lib == "" {
		if wasmHeap {
			return openLinearSession(log)
		}
		rt, err := sim.New(sim.Options{Logger: log})
		if err != nil {
			return nil, fmt.Errorf("create simulated runtime: %w", err)
		}
		return newSession(rt, rt, func() error { return nil }, "sim"), nil
	}

	opts := native.DefaultOptions()
	opts.Library = lib
	opts.Logger = log
	rt, err := native.Open(opts)
	if err != nil {
		return nil, err
	}
	return newSession(rt, nil, rt.Close, lib), nil
}

func openLinearSession(log *zap.Logger) (*session, error) {
	ctx := context.Background()
	wrt := wazero.NewRuntime(ctx)
	heap, _, err := memory.NewLinear(ctx, wrt)
	if err != nil {
		_ = wrt.Close(ctx)
		return nil, fmt.Errorf("create linear memory: %w", err)
	}
	rt, err := sim.New(sim.Options{Heap: heap, Logger: log})
	if err != nil {
		_ = wrt.Close(ctx)
		return nil, fmt.Errorf("create simulated runtime: %w", err)
	}
	return newSession(rt, rt, func() error { return wrt.Close(ctx) }, "sim (wasm heap)"), nil
}

func newSession(rt abi.Runtime, s *sim.Runtime, closer func() error, source string) *session {
	return &session{
		b:      rubyext.New(rt, rubyext.Options{Logger: rubyext.Logger()}),
		sim:    s,
		close:  closer,
		source: source,
	}
}

func (s *session) apply(path string) error {
	m, err := manifest.Load(path)
	if err != nil {
		return err
	}
	res, err := manifest.Apply(s.b, m)
	if err != nil {
		return err
	}
	s.man = m
	s.res = res
	return nil
}

// methods lists every callable the manifest defined, sorted by target.
func (s *session) methods() []methodRef {
	if s.man == nil {
		return nil
	}
	var out []methodRef
	for _, ns := range s.man.Namespaces {
		path := ns.Path()
		for _, m := range ns.Methods {
			out = append(out, methodRef{target: path + "#" + m.Name, arity: m.Arity})
		}
		for _, m := range ns.SingletonMethods {
			out = append(out, methodRef{target: path + "." + m.Name, arity: m.Arity})
		}
		// module functions are registered twice: on the module and as an
		// instance method for includers
		for _, m := range ns.ModuleFunctions {
			out = append(out,
				methodRef{target: path + "." + m.Name, arity: m.Arity},
				methodRef{target: path + "#" + m.Name, arity: m.Arity})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].target < out[j].target })
	return out
}

// call dispatches "Path.name" on the namespace itself or "Path#name" on a
// fresh instance.
func (s *session) call(target string, args []value.Value) (value.Value, error) {
	path, name, instance, err := parseTarget(target)
	if err != nil {
		return value.Qnil, err
	}
	if s.res == nil {
		return value.Qnil, fmt.Errorf("no manifest applied")
	}
	ns, ok := s.res.Namespace(path)
	if !ok {
		return value.Qnil, fmt.Errorf("%s is not defined", path)
	}

	var recv value.Transient = ns
	if instance {
		obj, err := s.instantiate(ns)
		if err != nil {
			return value.Qnil, err
		}
		recv = obj
	}
	return s.b.Call(recv, name, args...)
}

func (s *session) instantiate(ns value.Namespace) (value.Transient, error) {
	if _, ok := ns.(value.Class); !ok {
		return nil, fmt.Errorf("%s is a module and has no instances", s.describe(ns.Value()))
	}
	var (
		h   value.Value
		err error
	)
	if s.sim != nil {
		h, err = s.sim.NewObject(ns.Value())
	} else {
		h, err = s.b.Call(ns, "new")
	}
	if err != nil {
		return nil, err
	}
	return s.b.Decode(h)
}

// describe renders the decoded view of h, with names where the runtime can
// provide them.
func (s *session) describe(h value.Value) string {
	v, err := s.b.Decode(h)
	if err != nil {
		return fmt.Sprintf("%s: %v", h, err)
	}
	detail := fmt.Sprint(v)
	if s.sim != nil {
		switch t := v.(type) {
		case value.Namespace:
			detail += " " + s.sim.Name(h)
		case value.Object:
			detail += " " + s.sim.Name(h)
		case value.Symbol:
			if name, ok := s.sim.SymbolName(t.Index); ok {
				detail += " :" + name
			}
		}
	}
	return fmt.Sprintf("%s => %s %s", h, v.Type(), detail)
}

func parseTarget(target string) (path, name string, instance bool, err error) {
	if i := strings.LastIndex(target, "#"); i > 0 && i < len(target)-1 {
		return target[:i], target[i+1:], true, nil
	}
	// constant paths contain "::", so the method separator is the last
	// single dot
	if i := strings.LastIndex(target, "."); i > 0 && i < len(target)-1 && target[i-1] != ':' {
		return target[:i], target[i+1:], false, nil
	}
	return "", "", false, fmt.Errorf("target %q: want Path.method or Path#method", target)
}

// parseHandle reads a raw handle in any base strconv understands.
func parseHandle(s string) (value.Value, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("handle %q: %w", s, err)
	}
	return value.Value(n), nil
}

// parseArg reads a call argument: nil, true, false, :symbol, a decimal
// integer, or a raw 0x handle.
func (s *session) parseArg(arg string) (value.Value, error) {
	arg = strings.TrimSpace(arg)
	switch {
	case arg == "nil":
		return value.Qnil, nil
	case arg == "true":
		return value.Qtrue, nil
	case arg == "false":
		return value.Qfalse, nil
	case strings.HasPrefix(arg, ":"):
		return s.b.Symbol(arg[1:])
	case strings.HasPrefix(arg, "0x"):
		return parseHandle(arg)
	}
	n, err := strconv.ParseInt(arg, 10, 62)
	if err != nil {
		return 0, fmt.Errorf("argument %q: %w", arg, err)
	}
	return value.FixnumOf(n), nil
}

func (s *session) parseArgs(list string) ([]value.Value, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	var out []value.Value
	for _, a := range strings.Split(list, ",") {
		v, err := s.parseArg(a)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
