package testutil

import (
	"testing"

	"github.com/Dicklesworthstone/quill/internal/db"
)

// NewTestDB returns a migrated in-memory SQLite database for tests.
//
// The caller does not need to close it; cleanup is registered on t.Cleanup.
func NewTestDB(t testing.TB) *db.DB {
	t.Helper()
	return NewTestDBAtPath(t, db.InMemory)
}

// NewTestDBAtPath creates a migrated SQLite database at a specific path.
func NewTestDBAtPath(t testing.TB, path string) *db.DB {
	t.Helper()

	if path == "" {
		t.Fatalf("NewTestDBAtPath: path is required")
	}

	database, err := db.OpenAndMigrate(path, "")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}

	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}
