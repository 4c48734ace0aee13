package testutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/Dicklesworthstone/quill/internal/app"
	"github.com/Dicklesworthstone/quill/internal/config"
	"github.com/Dicklesworthstone/quill/internal/db"
	"github.com/Dicklesworthstone/quill/internal/preset"
)

// GeneratedPaths are the files and directories, relative to the app root,
// that presets, installs and uploads create. Teardown removes each of them.
var GeneratedPaths = []string{
	"app/modules",
	"resources/views/admin",
	"resources/views/site",
	"database/migrations",
	"config/quill.toml",
	"config/navigation.yaml",
	"routes/admin.yaml",
	"storage/uploads",
	"storage/files",
	"storage/images",
	"storage/logs",
}

// Harness is one test's application: its root directory, database, super
// admin, cookie jar and last response. Cleanup is registered on t.Cleanup.
type Harness struct {
	T      testing.TB
	Root   string
	Config config.Config
	App    *app.App
	Faker  *gofakeit.Faker
	Now    time.Time

	// Runner executes console commands. It defaults to App.
	Runner ConsoleRunner

	// PresetFiles lists the absolute paths the preset wrote.
	PresetFiles []string

	dbTarget string
	admin    *SuperAdmin
	crawler  *Response
	cookies  map[string]*http.Cookie
}

type harnessOptions struct {
	preset    string
	dbFile    bool
	overrides map[string]any
	seeders   []db.Seeder
	install   bool
	fakerSeed uint64
	runner    ConsoleRunner
}

// HarnessOption customizes NewHarness.
type HarnessOption func(*harnessOptions)

// WithPreset copies a bundled preset into the app root before the app is built.
func WithPreset(name string) HarnessOption {
	return func(o *harnessOptions) { o.preset = name }
}

// WithDatabaseFile uses a SQLite file under the app root instead of memory.
func WithDatabaseFile() HarnessOption {
	return func(o *harnessOptions) { o.dbFile = true }
}

// WithConfigOverrides applies extra dotted-key configuration after the fixed test values.
func WithConfigOverrides(overrides map[string]any) HarnessOption {
	return func(o *harnessOptions) {
		if o.overrides == nil {
			o.overrides = map[string]any{}
		}
		for k, v := range overrides {
			o.overrides[k] = v
		}
	}
}

// WithSeeders replaces the default seeder.
func WithSeeders(s ...db.Seeder) HarnessOption {
	return func(o *harnessOptions) { o.seeders = append(o.seeders, s...) }
}

// WithoutInstall skips the install routine; call Install explicitly.
func WithoutInstall() HarnessOption {
	return func(o *harnessOptions) { o.install = false }
}

// WithFakerSeed makes generated identities reproducible.
func WithFakerSeed(seed uint64) HarnessOption {
	return func(o *harnessOptions) { o.fakerSeed = seed }
}

// WithRunner runs console commands through r instead of the app.
func WithRunner(r ConsoleRunner) HarnessOption {
	return func(o *harnessOptions) { o.runner = r }
}

// NewHarness builds, installs and seeds a fresh application for one test.
func NewHarness(t testing.TB, opts ...HarnessOption) *Harness {
	t.Helper()

	o := harnessOptions{install: true}
	for _, opt := range opts {
		opt(&o)
	}

	h := &Harness{
		T:       t,
		Root:    t.TempDir(),
		Faker:   gofakeit.New(o.fakerSeed),
		Now:     time.Now().UTC(),
		cookies: map[string]*http.Cookie{},
	}
	t.Cleanup(h.Teardown)

	if o.preset != "" {
		written, err := preset.Install(o.preset, h.Root)
		RequireNoError(t, err, "install preset "+o.preset)
		h.PresetFiles = written
	}

	target := config.DatabaseInMemory
	if o.dbFile {
		target = TestDatabaseFile
	}
	cfg, err := TestConfig(h.Root, target, o.overrides)
	RequireNoError(t, err, "load test config")
	h.Config = cfg

	h.dbTarget = db.InMemory
	if !cfg.Database.InMemory() {
		h.dbTarget = h.MustPath(cfg.Database.Target)
	}
	h.ProvisionDatabase(h.dbTarget)

	h.App, err = app.New(cfg,
		app.WithRoot(h.Root),
		app.WithLogger(TestLogger(t)),
		app.WithSeeders(o.seeders...),
	)
	RequireNoError(t, err, "build app")

	h.Runner = h.App
	if o.runner != nil {
		h.Runner = o.runner
	}

	if o.install {
		h.Install()
	}
	RequireNoError(t, h.App.Seed(context.Background()), "seed database")
	return h
}

// ProvisionDatabase makes sure target is a clean database. The in-memory
// marker is left alone; a file is deleted and recreated empty.
func (h *Harness) ProvisionDatabase(target string) {
	h.T.Helper()
	RequireNoError(h.T, db.Provision(target), "provision database")
}

// DB returns the application's database.
func (h *Harness) DB() *db.DB {
	return h.App.DB
}

// AdminURL returns the admin console path for parts, e.g. AdminURL("users") is "/quill/users".
func (h *Harness) AdminURL(parts ...string) string {
	return "/" + strings.Join(append([]string{strings.Trim(h.Config.Admin.Path, "/")}, parts...), "/")
}

// MustPath joins Root with parts, failing the test on error.
func (h *Harness) MustPath(parts ...string) string {
	h.T.Helper()
	if h == nil || h.Root == "" {
		h.T.Fatalf("Harness.MustPath: harness not initialized")
	}
	all := append([]string{h.Root}, parts...)
	return filepath.Join(all...)
}

// WriteFile writes a file relative to the app root.
func (h *Harness) WriteFile(rel string, data []byte, perm os.FileMode) string {
	h.T.Helper()
	if strings.TrimSpace(rel) == "" {
		h.T.Fatalf("Harness.WriteFile: rel path is required")
	}
	abs := h.MustPath(rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0750); err != nil {
		h.T.Fatalf("Harness.WriteFile: mkdir: %v", err)
	}
	if err := os.WriteFile(abs, data, perm); err != nil {
		h.T.Fatalf("Harness.WriteFile: write: %v", err)
	}
	return abs
}

// Teardown closes the app and deletes every generated path and the database
// file. It tolerates missing paths and partial setup, and is idempotent.
func (h *Harness) Teardown() {
	if h == nil {
		return
	}

	var errs []error
	if h.App != nil {
		if err := h.App.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close app: %w", err))
		}
	}
	if h.Root != "" {
		for _, rel := range GeneratedPaths {
			if err := os.RemoveAll(filepath.Join(h.Root, filepath.FromSlash(rel))); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if h.dbTarget != "" && h.dbTarget != db.InMemory {
		for _, p := range []string{h.dbTarget, h.dbTarget + "-wal", h.dbTarget + "-shm", h.dbTarget + "-journal"} {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
		}
	}

	h.crawler = nil
	h.admin = nil
	h.cookies = map[string]*http.Cookie{}

	if err := errors.Join(errs...); err != nil {
		h.T.Errorf("teardown: %v", err)
	}
}

func (h *Harness) String() string {
	if h == nil {
		return "Harness<nil>"
	}
	return fmt.Sprintf("Harness(root=%s, db=%s)", h.Root, h.dbTarget)
}
