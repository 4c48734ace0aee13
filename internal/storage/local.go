// Package storage keeps uploaded media and files on the local disk.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ErrEmptyName is returned when a name sanitizes to nothing.
var ErrEmptyName = errors.New("file name is empty")

// Local stores objects under Dir and serves them from BaseURL.
type Local struct {
	Dir     string
	BaseURL string
}

// Object is a stored upload.
type Object struct {
	Name string
	URL  string
	Size int64
}

// SanitizeName strips directories and unsafe characters from a client file name.
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeChars.ReplaceAllString(name, "-")
	name = strings.Trim(name, ".-")
	return name
}

// Save writes r under a unique name derived from name.
func (l Local) Save(name string, r io.Reader) (Object, error) {
	clean := SanitizeName(name)
	if clean == "" {
		return Object{}, ErrEmptyName
	}
	if err := os.MkdirAll(l.Dir, 0o750); err != nil {
		return Object{}, fmt.Errorf("mkdir %s: %w", l.Dir, err)
	}

	stored := uuid.New().String()[:8] + "-" + clean
	f, err := os.OpenFile(filepath.Join(l.Dir, stored), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return Object{}, fmt.Errorf("creating %s: %w", stored, err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(filepath.Join(l.Dir, stored))
		return Object{}, fmt.Errorf("writing %s: %w", stored, err)
	}
	return Object{Name: stored, URL: l.URL(stored), Size: size}, nil
}

// URL returns the public URL of a stored object.
func (l Local) URL(name string) string {
	return path.Join("/", strings.TrimPrefix(l.BaseURL, "/"), name)
}

// Path returns the on-disk path of a stored object.
func (l Local) Path(name string) string {
	return filepath.Join(l.Dir, SanitizeName(name))
}
