package preset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestAvailable(t *testing.T) {
	names := Available()
	if len(names) == 0 || names[0] != "blog" {
		t.Fatalf("Available() = %v", names)
	}
}

func TestDescribe(t *testing.T) {
	m, err := Describe("blog")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if m.Name != "blog" || m.Description == "" {
		t.Fatalf("manifest=%+v", m)
	}
	if _, err := Describe("shop"); !errors.Is(err, ErrUnknownPreset) {
		t.Fatalf("expected ErrUnknownPreset, got %v", err)
	}
}

func TestFiles_ExcludesManifest(t *testing.T) {
	files, err := Files("blog")
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	want := map[string]bool{
		"app/modules/posts.yaml":                        false,
		"config/navigation.yaml":                        false,
		"config/quill.toml":                             false,
		"database/migrations/0001_create_post_tags.sql": false,
		"resources/views/admin/posts/index.html":        false,
		"resources/views/site/posts/show.html":          false,
		"routes/admin.yaml":                             false,
	}
	for _, f := range files {
		if f == manifestName {
			t.Fatalf("manifest should not be installed")
		}
		if _, ok := want[f]; ok {
			want[f] = true
		}
	}
	for f, seen := range want {
		if !seen {
			t.Errorf("missing %s in %v", f, files)
		}
	}
}

func TestInstall(t *testing.T) {
	root := t.TempDir()
	stale := filepath.Join(root, "routes", "admin.yaml")
	if err := os.MkdirAll(filepath.Dir(stale), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(stale, []byte("stale"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	written, err := Install("blog", root)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	files, _ := Files("blog")
	if len(written) != len(files) {
		t.Fatalf("written %d files, want %d", len(written), len(files))
	}
	for _, p := range written {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("stat %s: %v", p, err)
		}
	}
	data, _ := os.ReadFile(stale)
	if string(data) == "stale" {
		t.Fatalf("existing file was not overwritten")
	}
}

func TestInstall_Errors(t *testing.T) {
	if _, err := Install("blog", ""); err == nil {
		t.Fatalf("expected error for empty root")
	}
	if _, err := Install("shop", t.TempDir()); !errors.Is(err, ErrUnknownPreset) {
		t.Fatalf("expected ErrUnknownPreset, got %v", err)
	}
}
