package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := OpenAndMigrate(InMemory, "")
	if err != nil {
		t.Fatalf("OpenAndMigrate: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestProvision_InMemoryTouchesNothing(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}

	if err := Provision(InMemory); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no files, found %d", len(entries))
	}
}

func TestProvision_FileIsRecreatedEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database", "quill.db")

	if err := Provision(path); err != nil {
		t.Fatalf("Provision (fresh): %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != 0 {
		t.Fatalf("size=%d want 0", info.Size())
	}

	if err := os.WriteFile(path, []byte("stale"), 0o600); err != nil {
		t.Fatalf("write stale: %v", err)
	}
	if err := Provision(path); err != nil {
		t.Fatalf("Provision (existing): %v", err)
	}
	info, err = os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != 0 {
		t.Fatalf("size=%d want 0 after reprovision", info.Size())
	}
}

func TestProvision_EmptyTarget(t *testing.T) {
	if err := Provision(""); err == nil {
		t.Fatalf("expected error")
	}
}

func TestProvisionedFileOpensAndMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quill.db")
	if err := Provision(path); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	database, err := OpenAndMigrate(path, "")
	if err != nil {
		t.Fatalf("OpenAndMigrate: %v", err)
	}
	defer database.Close()
	if n, err := database.CountUsers(); err != nil || n != 0 {
		t.Fatalf("CountUsers = %d, %v", n, err)
	}
}

func TestTruncateUsers_MissingTable(t *testing.T) {
	database, err := Open(InMemory)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer database.Close()

	err = database.TruncateUsers()
	if err == nil {
		t.Fatalf("expected error on fresh schema")
	}
	if !IsMissingTable(err) {
		t.Fatalf("expected missing-table error, got %v", err)
	}
}

func TestUsers_CRUD(t *testing.T) {
	database := openTestDB(t)

	u := &User{Name: "Ada", Email: "ada@example.com", PasswordHash: "hash", Role: RoleSuperAdmin}
	if err := database.CreateUser(u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == 0 {
		t.Fatalf("expected ID to be set")
	}

	dup := &User{Name: "Ada 2", Email: "ada@example.com", PasswordHash: "hash"}
	if err := database.CreateUser(dup); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	got, err := database.GetUserByEmail("ada@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != u.ID || got.Role != RoleSuperAdmin || got.Locale != "en" {
		t.Fatalf("unexpected user: %+v", got)
	}

	if _, err := database.GetUser(999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	if err := database.TruncateUsers(); err != nil {
		t.Fatalf("TruncateUsers: %v", err)
	}
	if n, _ := database.CountUsers(); n != 0 {
		t.Fatalf("CountUsers=%d after truncate", n)
	}

	again := &User{Name: "Ada", Email: "ada@example.com", PasswordHash: "hash"}
	if err := database.CreateUser(again); err != nil {
		t.Fatalf("CreateUser after truncate: %v", err)
	}
	if again.ID != 1 {
		t.Fatalf("expected sequence reset, got id %d", again.ID)
	}
}

func TestSessions_Lifecycle(t *testing.T) {
	database := openTestDB(t)
	u := &User{Name: "Ada", Email: "ada@example.com", PasswordHash: "hash"}
	if err := database.CreateUser(u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	s, err := database.CreateSession(u.ID)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := database.GetActiveSession(s.ID); err != nil {
		t.Fatalf("GetActiveSession: %v", err)
	}
	if err := database.TouchSession(s.ID); err != nil {
		t.Fatalf("TouchSession: %v", err)
	}
	if err := database.EndSession(s.ID); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if _, err := database.GetActiveSession(s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := database.EndSession(s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on double end, got %v", err)
	}
}

func TestItems(t *testing.T) {
	database := openTestDB(t)

	it := &Item{Module: "posts", Title: "Hello, World!", Data: map[string]string{"body": "x"}}
	if err := database.CreateItem(it); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if it.Slug != "hello-world" {
		t.Fatalf("slug=%q", it.Slug)
	}
	if err := database.CreateItem(&Item{Module: "posts", Title: "Hello World"}); err == nil {
		t.Fatalf("expected duplicate slug error")
	}

	got, err := database.GetItem("posts", it.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Data["body"] != "x" {
		t.Fatalf("data=%v", got.Data)
	}
	if _, err := database.GetItem("pages", it.ID); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound for other module, got %v", err)
	}

	list, err := database.ListItems("posts")
	if err != nil || len(list) != 1 {
		t.Fatalf("ListItems = %d, %v", len(list), err)
	}
}

func TestMedia(t *testing.T) {
	database := openTestDB(t)
	if err := database.CreateMedia(&Media{Kind: "video"}); err == nil {
		t.Fatalf("expected invalid kind error")
	}
	m := &Media{Kind: MediaKindImage, Filename: "a.png", StoredName: "a.png", URL: "/u/a.png", Size: 3}
	if err := database.CreateMedia(m); err != nil {
		t.Fatalf("CreateMedia: %v", err)
	}
	list, err := database.ListMedia(MediaKindImage)
	if err != nil || len(list) != 1 || list[0].Filename != "a.png" {
		t.Fatalf("ListMedia = %v, %v", list, err)
	}
	if files, _ := database.ListMedia(MediaKindFile); len(files) != 0 {
		t.Fatalf("expected no files")
	}
}

func TestMigrate_AppliesSQLFilesOnce(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "0002_second.sql"), "CREATE TABLE second (id INTEGER);")
	writeFile(t, filepath.Join(dir, "0001_first.sql"), "CREATE TABLE first (id INTEGER);")
	writeFile(t, filepath.Join(dir, "README.md"), "ignored")

	database, err := OpenAndMigrate(InMemory, dir)
	if err != nil {
		t.Fatalf("OpenAndMigrate: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(dir); err != nil {
		t.Fatalf("second Migrate should be a no-op: %v", err)
	}
	names, err := database.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(names) != 2 || names[0] != "0001_first.sql" || names[1] != "0002_second.sql" {
		t.Fatalf("applied=%v", names)
	}
}

func TestMigrate_BadSQLRollsBack(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "0001_bad.sql"), "CREATE TABLE (;")

	database, err := Open(InMemory)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer database.Close()
	if err := database.Migrate(dir); err == nil {
		t.Fatalf("expected migration error")
	}
	names, _ := database.AppliedMigrations()
	if len(names) != 0 {
		t.Fatalf("bad migration recorded: %v", names)
	}
}

func TestSeed(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	var calls []string
	first := SeederFunc(func(ctx context.Context, d *DB) error { calls = append(calls, "first"); return nil })
	failing := SeederFunc(func(ctx context.Context, d *DB) error { return errors.New("boom") })
	never := SeederFunc(func(ctx context.Context, d *DB) error { calls = append(calls, "never"); return nil })

	err := database.Seed(ctx, first, failing, never)
	if err == nil || err.Error() != "seeder 1: boom" {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("calls=%v", calls)
	}

	if err := database.Seed(ctx, DefaultSeeder, DefaultSeeder); err != nil {
		t.Fatalf("DefaultSeeder: %v", err)
	}
	pages, _ := database.ListItems("pages")
	if len(pages) != 1 || pages[0].Slug != WelcomeSlug || !pages[0].Published {
		t.Fatalf("pages=%+v", pages)
	}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
