package main

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wippyai/rubyext/value"
)

const geoManifest = "../../manifest/testdata/geo.yaml"

func newSimSession(t *testing.T) *session {
	t.Helper()
	s, err := openSession("", false, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.close() })
	return s
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in       string
		path     string
		name     string
		instance bool
		wantErr  bool
	}{
		{in: "Hello.hello", path: "Hello", name: "hello"},
		{in: "Geo::Point#x", path: "Geo::Point", name: "x", instance: true},
		{in: "Geo::Point.origin?", path: "Geo::Point", name: "origin?"},
		{in: "Hello", wantErr: true},
		{in: "Geo::Point", wantErr: true},
		{in: ".x", wantErr: true},
		{in: "Hello#", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			path, name, instance, err := parseTarget(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.path, path)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.instance, instance)
		})
	}
}

func TestParseArgs(t *testing.T) {
	s := newSimSession(t)

	args, err := s.parseArgs("nil, true,false,42,-1,0x34")
	require.NoError(t, err)
	assert.Equal(t, []value.Value{
		value.Qnil, value.Qtrue, value.Qfalse,
		value.FixnumOf(42), value.FixnumOf(-1), value.Qundef,
	}, args)

	args, err = s.parseArgs(":each")
	require.NoError(t, err)
	require.Len(t, args, 1)
	assert.Contains(t, s.describe(args[0]), ":each")

	args, err = s.parseArgs("")
	require.NoError(t, err)
	assert.Empty(t, args)

	_, err = s.parseArgs("one")
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	s := newSimSession(t)

	assert.Equal(t, "0x8 => Nil nil", s.describe(value.Qnil))
	assert.Contains(t, s.describe(value.FixnumOf(5)), "Fixnum")
	assert.Contains(t, s.describe(0x24), "invalid_tag")
	assert.Contains(t, s.describe(value.Qundef), "unsupported")

	object, err := s.b.Object()
	require.NoError(t, err)
	assert.Contains(t, s.describe(object.Value()), "Class")
	assert.Contains(t, s.describe(object.Value()), "Object")
}

func TestSession_ApplyAndCall(t *testing.T) {
	s := newSimSession(t)

	_, err := s.call("Hello.hello", nil)
	assert.Error(t, err, "nothing applied yet")

	require.NoError(t, s.apply(geoManifest))

	refs := s.methods()
	require.NotEmpty(t, refs)
	assert.Equal(t, methodRef{target: "Geo::Named#name", arity: 0}, refs[0])

	got, err := s.call("Hello.hello", nil)
	require.NoError(t, err)
	assert.Equal(t, value.Qnil, got)

	got, err = s.call("Geo::Point#count", []value.Value{value.Qnil, value.Qnil})
	require.NoError(t, err)
	assert.Equal(t, value.FixnumOf(2), got)

	_, err = s.call("Geo::Named#name", nil)
	assert.Error(t, err, "modules have no instances")

	_, err = s.call("Nope.x", nil)
	assert.Error(t, err)

	assert.NoError(t, run(s, "", "0x8,0x15", "", "", false))
}

func TestSession_MethodsListModuleFunctionsTwice(t *testing.T) {
	s := newSimSession(t)
	require.NoError(t, s.apply(geoManifest))

	var targets []string
	for _, ref := range s.methods() {
		targets = append(targets, ref.target)
	}
	assert.Contains(t, targets, "Hello.hello")
	assert.Contains(t, targets, "Hello#hello")

	// the instance copy is real: a class including Hello can call it
	object, err := s.b.Object()
	require.NoError(t, err)
	hello, ok := s.res.Namespace("Hello")
	require.True(t, ok)
	greeter, err := s.b.DefineClass("Greeter", object)
	require.NoError(t, err)
	require.NoError(t, s.b.IncludeModule(greeter, hello.(value.Module)))
	obj, err := s.instantiate(greeter)
	require.NoError(t, err)
	got, err := s.b.Call(obj, "hello")
	require.NoError(t, err)
	assert.Equal(t, value.Qnil, got)
}

func TestSession_WasmHeap(t *testing.T) {
	s, err := openSession("", true, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { assert.NoError(t, s.close()) }()

	require.NoError(t, s.apply(geoManifest))
	got, err := s.call("Geo::Point#x", nil)
	require.NoError(t, err)
	assert.Equal(t, value.FixnumOf(3), got)
}

func TestInteractive_CallAndDecode(t *testing.T) {
	s := newSimSession(t)
	m := newInteractiveModel(s, geoManifest)

	_, _ = m.Update(m.load())
	require.NoError(t, m.err)
	require.NotEmpty(t, m.methods)

	for i, ref := range m.methods {
		if ref.target == "Hello.hello" {
			m.selected = i
		}
	}
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	_, _ = m.Update(cmd())
	assert.Equal(t, stateShowResult, m.state)
	assert.NoError(t, m.err)
	assert.Contains(t, m.result, "Nil")
	assert.Contains(t, m.View(), "Hello.hello")

	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, stateSelect, m.state)

	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	require.Equal(t, stateDecode, m.state)
	m.inputs[0].SetValue("0x14")
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	_, _ = m.Update(cmd())
	assert.Contains(t, m.result, "True")
}
