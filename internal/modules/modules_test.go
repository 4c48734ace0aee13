package modules

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRegistry_HasPages(t *testing.T) {
	r := NewRegistry()
	m, ok := r.Get("pages")
	if !ok || m.Title != "Pages" {
		t.Fatalf("pages module missing: %+v", m)
	}
	if len(r.All()) != 1 {
		t.Fatalf("expected one module")
	}
}

func TestRegister_Rules(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Module{Name: "Bad Name", Fields: []Field{{Name: "title"}}}); err == nil {
		t.Errorf("expected invalid name error")
	}
	if err := r.Register(Module{Name: "notitle", Fields: []Field{{Name: "body"}}}); err == nil {
		t.Errorf("expected missing title error")
	}
	if err := r.Register(Module{Name: "posts", Fields: []Field{{Name: "title"}}}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	m, _ := r.Get("posts")
	if m.Title != "Posts" || m.Fields[0].Type != FieldText || m.Fields[0].Label != "Title" {
		t.Fatalf("defaults not applied: %+v", m)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	descriptor := `name: events
title: Events
fields:
  - name: title
    required: true
    max_length: 10
  - name: contact
    type: email
`
	if err := os.WriteFile(filepath.Join(dir, "events.yaml"), []byte(descriptor), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	r := NewRegistry()
	if err := r.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if err := r.LoadDir(filepath.Join(dir, "missing")); err != nil {
		t.Fatalf("LoadDir(missing): %v", err)
	}
	all := r.All()
	if len(all) != 2 || all[1].Name != "events" {
		t.Fatalf("modules=%+v", all)
	}

	err := r.Validate("events", url.Values{"title": {"far too long a title"}, "contact": {"nope"}})
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if !strings.Contains(verrs["title"], "10 characters") {
		t.Errorf("title error=%q", verrs["title"])
	}
	if !strings.Contains(verrs["contact"], "valid email") {
		t.Errorf("contact error=%q", verrs["contact"])
	}
}

func TestLoadDir_BadYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: [\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := NewRegistry().LoadDir(dir); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	r := NewRegistry()

	if err := r.Validate("pages", url.Values{"title": {"About"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := r.Validate("pages", url.Values{"title": {"  "}})
	var verrs ValidationErrors
	if !errors.As(err, &verrs) || verrs["title"] != "The title field is required." {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(err.Error(), "validation failed: title:") {
		t.Fatalf("Error()=%q", err.Error())
	}

	if err := r.Validate("ghosts", nil); !errors.Is(err, ErrUnknownModule) {
		t.Fatalf("expected ErrUnknownModule, got %v", err)
	}
}
