// Package preset installs bundled starter sites into an application root.
package preset

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"go.yaml.in/yaml/v3"
)

const manifestName = "preset.yaml"

//go:embed all:presets
var bundled embed.FS

// ErrUnknownPreset is returned for a preset name that is not bundled.
var ErrUnknownPreset = errors.New("unknown preset")

// Manifest describes a preset.
type Manifest struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// Available lists bundled preset names in sorted order.
func Available() []string {
	entries, err := fs.ReadDir(bundled, "presets")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// Describe returns the manifest of a bundled preset.
func Describe(name string) (Manifest, error) {
	data, err := bundled.ReadFile(path.Join("presets", name, manifestName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Manifest{}, fmt.Errorf("%w: %s", ErrUnknownPreset, name)
		}
		return Manifest{}, fmt.Errorf("reading preset %s: %w", name, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parsing preset %s manifest: %w", name, err)
	}
	return m, nil
}

// Files lists the paths a preset writes, relative to the application root.
func Files(name string) ([]string, error) {
	if _, err := Describe(name); err != nil {
		return nil, err
	}
	base := path.Join("presets", name)
	var files []string
	err := fs.WalkDir(bundled, base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel := p[len(base)+1:]
		if rel == manifestName {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking preset %s: %w", name, err)
	}
	sort.Strings(files)
	return files, nil
}

// Install copies the preset's files into root, overwriting existing files.
// It returns the absolute paths written.
func Install(name, root string) ([]string, error) {
	if root == "" {
		return nil, fmt.Errorf("install preset %s: root is required", name)
	}
	files, err := Files(name)
	if err != nil {
		return nil, err
	}
	written := make([]string, 0, len(files))
	for _, rel := range files {
		data, err := bundled.ReadFile(path.Join("presets", name, rel))
		if err != nil {
			return written, fmt.Errorf("reading preset file %s: %w", rel, err)
		}
		dst := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
			return written, fmt.Errorf("mkdir %s: %w", filepath.Dir(dst), err)
		}
		if err := os.WriteFile(dst, data, 0o640); err != nil {
			return written, fmt.Errorf("writing %s: %w", dst, err)
		}
		written = append(written, dst)
	}
	return written, nil
}
