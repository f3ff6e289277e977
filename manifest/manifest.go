// Package manifest describes extensions declaratively. A manifest lists
// modules and classes with methods whose behaviour is picked from a small
// canned set, so a binding can be exercised without writing Go callbacks.
//
//	namespaces:
//	  - kind: module
//	    name: Hello
//	    module_functions:
//	      - name: hello
//	        returns: nil
package manifest

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/rubyext/errors"
)

// Kind selects what a namespace entry defines.
type Kind string

const (
	KindModule Kind = "module"
	KindClass  Kind = "class"
)

// Returns names a canned method behaviour.
type Returns string

const (
	ReturnsNil    Returns = "nil"
	ReturnsTrue   Returns = "true"
	ReturnsFalse  Returns = "false"
	ReturnsSelf   Returns = "self"
	ReturnsArg    Returns = "arg"
	ReturnsArgc   Returns = "argc"
	ReturnsInt    Returns = "int"
	ReturnsSymbol Returns = "symbol"
)

// Manifest is the root document.
type Manifest struct {
	Namespaces []Namespace `yaml:"namespaces" validate:"required,min=1,dive"`
}

// Namespace defines or reopens one module or class.
type Namespace struct {
	Kind Kind   `yaml:"kind" validate:"required,oneof=module class"`
	Name string `yaml:"name" validate:"required,rbconst"`
	// Under is the constant path of the enclosing namespace. Empty means
	// top level.
	Under string `yaml:"under,omitempty" validate:"omitempty,rbpath"`
	// Super is the constant path of the superclass. Classes default to Object.
	Super            string   `yaml:"super,omitempty" validate:"excluded_if=Kind module,omitempty,rbpath"`
	Include          []string `yaml:"include,omitempty" validate:"dive,rbpath"`
	Extend           []string `yaml:"extend,omitempty" validate:"dive,rbpath"`
	Methods          []Method `yaml:"methods,omitempty" validate:"dive"`
	SingletonMethods []Method `yaml:"singleton_methods,omitempty" validate:"dive"`
	ModuleFunctions  []Method `yaml:"module_functions,omitempty" validate:"excluded_if=Kind class,dive"`
}

// Path returns the fully qualified constant path.
func (n Namespace) Path() string {
	if n.Under == "" {
		return n.Name
	}
	return n.Under + "::" + n.Name
}

// Method is one method with a canned behaviour.
type Method struct {
	Name    string  `yaml:"name" validate:"required,rbname"`
	Arity   int     `yaml:"arity,omitempty" validate:"min=-1,max=2"`
	Returns Returns `yaml:"returns" validate:"required,oneof=nil true false self arg argc int symbol"`
	Int     int64   `yaml:"int,omitempty"`
	Symbol  string  `yaml:"symbol,omitempty" validate:"required_if=Returns symbol,omitempty,rbname"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("rbconst", func(fl validator.FieldLevel) bool {
		return isConstName(fl.Field().String())
	})
	_ = v.RegisterValidation("rbpath", func(fl validator.FieldLevel) bool {
		for _, seg := range strings.Split(fl.Field().String(), "::") {
			if !isConstName(seg) {
				return false
			}
		}
		return true
	})
	_ = v.RegisterValidation("rbname", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s != "" && !strings.ContainsRune(s, 0)
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		m := sl.Current().Interface().(Method)
		if m.Returns == ReturnsArg && m.Arity == 0 {
			sl.ReportError(m.Arity, "Arity", "arity", "argarity", "")
		}
	}, Method{})
	return v
}

func isConstName(s string) bool {
	if s == "" || s[0] < 'A' || s[0] > 'Z' {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if c != '_' && (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// Parse decodes and validates a YAML manifest. Unknown fields are rejected.
func Parse(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if err == io.EOF {
			return nil, errors.Load("manifest is empty", nil)
		}
		return nil, errors.Load("parse manifest", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load("read manifest "+path, err)
	}
	return Parse(data)
}

// Validate checks field constraints and that every referenced namespace is
// either a root or defined by an earlier entry.
func (m *Manifest) Validate() error {
	if err := validate.Struct(m); err != nil {
		return errors.Load("invalid manifest", err)
	}

	known := map[string]Kind{
		"Object":     KindClass,
		"Kernel":     KindModule,
		"Enumerable": KindModule,
	}
	need := func(i int, field, path string, want Kind) error {
		kind, ok := known[path]
		if !ok {
			return errors.Load(fmt.Sprintf("namespaces[%d].%s: %s is not defined before use", i, field, path), nil)
		}
		if want != "" && kind != want {
			return errors.Load(fmt.Sprintf("namespaces[%d].%s: %s is a %s, want %s", i, field, path, kind, want), nil)
		}
		return nil
	}

	for i, ns := range m.Namespaces {
		if ns.Under != "" {
			if err := need(i, "under", ns.Under, ""); err != nil {
				return err
			}
		}
		if ns.Super != "" {
			if err := need(i, "super", ns.Super, KindClass); err != nil {
				return err
			}
		}
		for _, p := range ns.Include {
			if err := need(i, "include", p, KindModule); err != nil {
				return err
			}
		}
		for _, p := range ns.Extend {
			if err := need(i, "extend", p, KindModule); err != nil {
				return err
			}
		}
		if prev, ok := known[ns.Path()]; ok && prev != ns.Kind {
			return errors.Load(fmt.Sprintf("namespaces[%d]: %s reopened as %s, was %s", i, ns.Path(), ns.Kind, prev), nil)
		}
		known[ns.Path()] = ns.Kind
	}
	return nil
}
