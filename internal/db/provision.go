package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Provision makes sure target names a clean, empty database.
//
// The in-memory marker needs no file operations. Any other target is removed
// if present and recreated as a zero-length file; the schema is applied later
// by Migrate.
func Provision(target string) error {
	if target == "" {
		return fmt.Errorf("provision: database target is required")
	}
	if target == InMemory {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("provision: mkdir %s: %w", filepath.Dir(target), err)
	}
	for _, path := range []string{target, target + "-wal", target + "-shm", target + "-journal"} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("provision: removing %s: %w", path, err)
		}
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("provision: creating %s: %w", target, err)
	}
	return f.Close()
}
