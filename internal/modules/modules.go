// Package modules describes the content modules managed in the admin console
// and validates submitted values against their field rules.
package modules

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"go.yaml.in/yaml/v3"
)

// Field types.
const (
	FieldText     = "text"
	FieldTextarea = "textarea"
	FieldEmail    = "email"
)

// ErrUnknownModule is returned for a module name that is not registered.
var ErrUnknownModule = errors.New("unknown module")

var validName = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Field is one editable attribute of a module.
type Field struct {
	Name      string `yaml:"name" json:"name"`
	Label     string `yaml:"label" json:"label"`
	Type      string `yaml:"type" json:"type"`
	Required  bool   `yaml:"required" json:"required"`
	MaxLength int    `yaml:"max_length" json:"max_length,omitempty"`
}

// Module is a content type exposed in the admin console.
type Module struct {
	Name   string  `yaml:"name" json:"name"`
	Title  string  `yaml:"title" json:"title"`
	Fields []Field `yaml:"fields" json:"fields"`
}

// Pages is the built-in module every installation has.
var Pages = Module{
	Name:  "pages",
	Title: "Pages",
	Fields: []Field{
		{Name: "title", Label: "Title", Type: FieldText, Required: true, MaxLength: 200},
		{Name: "body", Label: "Body", Type: FieldTextarea},
	},
}

// ValidationErrors maps field names to messages.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Registry holds the known modules.
type Registry struct {
	modules map[string]Module
	order   []string
}

// NewRegistry returns a registry containing the built-in modules.
func NewRegistry() *Registry {
	r := &Registry{modules: map[string]Module{}}
	_ = r.Register(Pages)
	return r
}

// Register adds or replaces a module.
func (r *Registry) Register(m Module) error {
	if !validName.MatchString(m.Name) {
		return fmt.Errorf("invalid module name %q", m.Name)
	}
	m.Fields = append([]Field(nil), m.Fields...)
	hasTitle := false
	for i, f := range m.Fields {
		if f.Name == "" {
			return fmt.Errorf("module %s: field %d has no name", m.Name, i)
		}
		if f.Type == "" {
			m.Fields[i].Type = FieldText
		}
		if f.Label == "" {
			m.Fields[i].Label = strings.ToUpper(f.Name[:1]) + f.Name[1:]
		}
		if f.Name == "title" {
			hasTitle = true
		}
	}
	if !hasTitle {
		return fmt.Errorf("module %s: a title field is required", m.Name)
	}
	if m.Title == "" {
		m.Title = strings.ToUpper(m.Name[:1]) + m.Name[1:]
	}
	if _, exists := r.modules[m.Name]; !exists {
		r.order = append(r.order, m.Name)
	}
	r.modules[m.Name] = m
	return nil
}

// LoadDir registers every *.yaml descriptor in dir. A missing dir is not an error.
func (r *Registry) LoadDir(dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return fmt.Errorf("listing modules in %s: %w", dir, err)
	}
	sort.Strings(paths)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading module %s: %w", path, err)
		}
		var m Module
		if err := yaml.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("parsing module %s: %w", path, err)
		}
		if err := r.Register(m); err != nil {
			return fmt.Errorf("registering module %s: %w", path, err)
		}
	}
	return nil
}

// Get returns a module by name.
func (r *Registry) Get(name string) (Module, bool) {
	m, ok := r.modules[name]
	return m, ok
}

// All returns modules in registration order.
func (r *Registry) All() []Module {
	out := make([]Module, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.modules[name])
	}
	return out
}

// Validate checks submitted values for module. It returns ErrUnknownModule
// or a ValidationErrors value.
func (r *Registry) Validate(module string, values url.Values) error {
	m, ok := r.Get(module)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModule, module)
	}
	errs := ValidationErrors{}
	for _, f := range m.Fields {
		val := strings.TrimSpace(values.Get(f.Name))
		switch {
		case f.Required && val == "":
			errs[f.Name] = fmt.Sprintf("The %s field is required.", strings.ToLower(f.Label))
		case f.MaxLength > 0 && utf8.RuneCountInString(val) > f.MaxLength:
			errs[f.Name] = fmt.Sprintf("The %s may not be greater than %d characters.", strings.ToLower(f.Label), f.MaxLength)
		case f.Type == FieldEmail && val != "" && !strings.Contains(val, "@"):
			errs[f.Name] = fmt.Sprintf("The %s must be a valid email address.", strings.ToLower(f.Label))
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
