// Package app bootstraps a Quill application: it registers the database,
// validation and routing providers against a configuration and exposes the
// HTTP handler and the console.
package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/Dicklesworthstone/quill/internal/config"
	"github.com/Dicklesworthstone/quill/internal/console"
	"github.com/Dicklesworthstone/quill/internal/db"
	"github.com/Dicklesworthstone/quill/internal/modules"
	"github.com/Dicklesworthstone/quill/internal/server"
	"github.com/Dicklesworthstone/quill/internal/utils"
)

// ModulesDir holds module descriptors, relative to the app root.
const ModulesDir = "app/modules"

// App is a wired Quill application.
type App struct {
	Config  config.Config
	Root    string
	DB      *db.DB
	Modules *modules.Registry
	Logger  *log.Logger
	Seeders []db.Seeder

	providers []Provider
	logFile   *os.File

	mu     sync.RWMutex
	server *server.Server
	closed bool
}

// Option configures an App.
type Option func(*App)

// WithRoot sets the application root. Defaults to the working directory.
func WithRoot(root string) Option {
	return func(a *App) {
		a.Root = root
	}
}

// WithLogger sets the logger instead of building one from the log config.
func WithLogger(l *log.Logger) Option {
	return func(a *App) {
		a.Logger = l
	}
}

// WithProviders registers additional providers after the defaults.
func WithProviders(p ...Provider) Option {
	return func(a *App) {
		a.providers = append(a.providers, p...)
	}
}

// WithSeeders sets the seeders run by Seed and db:seed.
func WithSeeders(s ...db.Seeder) Option {
	return func(a *App) {
		a.Seeders = append(a.Seeders, s...)
	}
}

// New builds the application and registers every provider in order. On any
// failure the partially built app is closed.
func New(cfg config.Config, opts ...Option) (*App, error) {
	a := &App{
		Config:    cfg,
		providers: DefaultProviders(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.Root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving app root: %w", err)
		}
		a.Root = cwd
	}
	if a.Logger == nil {
		if err := a.initLogger(); err != nil {
			return nil, err
		}
	}

	for _, p := range a.providers {
		if err := p.Register(a); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("register provider %s: %w", p.Name(), err)
		}
		a.Logger.Debug("provider registered", "provider", p.Name())
	}
	return a, nil
}

func (a *App) initLogger() error {
	opts := utils.DefaultLoggerOptions()
	opts.Level = a.Config.Log.Level
	opts.Prefix = "quill"
	if a.Config.Log.File == "" {
		a.Logger = utils.InitLogger(opts)
		return nil
	}
	l, f, err := utils.InitFileLogger(a.Path(a.Config.Log.File), opts)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	a.Logger, a.logFile = l, f
	return nil
}

// Path resolves p against the app root unless it is absolute.
func (a *App) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.Root, p)
}

// DatabaseTarget returns the configured database target resolved against the root.
func (a *App) DatabaseTarget() string {
	if a.Config.Database.InMemory() {
		return db.InMemory
	}
	return a.Path(a.Config.Database.Target)
}

// Handler returns the application's HTTP handler. It follows Reload.
func (a *App) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.RLock()
		srv := a.server
		a.mu.RUnlock()
		if srv == nil {
			http.Error(w, "routes not registered", http.StatusServiceUnavailable)
			return
		}
		srv.ServeHTTP(w, r)
	})
}

// Server returns the current router, or nil before the routes provider ran.
func (a *App) Server() *server.Server {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.server
}

// Reload re-reads module descriptors and rebuilds the router, picking up
// files a preset copied into the root.
func (a *App) Reload() error {
	if err := a.loadModules(); err != nil {
		return err
	}
	return a.buildServer()
}

func (a *App) loadModules() error {
	reg := modules.NewRegistry()
	if err := reg.LoadDir(a.Path(ModulesDir)); err != nil {
		return err
	}
	a.Modules = reg
	return nil
}

func (a *App) buildServer() error {
	srv, err := server.New(server.Deps{
		Config:  a.Config,
		Root:    a.Root,
		DB:      a.DB,
		Modules: a.Modules,
		Logger:  a.Logger,
	})
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.server = srv
	a.mu.Unlock()
	return nil
}

func (a *App) consoleDeps() console.Deps {
	return console.Deps{
		Config:  a.Config,
		Root:    a.Root,
		DB:      a.DB,
		Modules: a.Modules,
		Logger:  a.Logger,
		Seeders: a.Seeders,
		Handler: a.Handler,
		Reload:  a.Reload,
	}
}

// Run executes a console command and returns its exit code.
func (a *App) Run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	if in == nil {
		in = strings.NewReader("")
	}
	return console.Execute(ctx, a.consoleDeps(), args, in, out, errOut)
}

// Call executes a console command with stdin as its input and returns the
// exit code and the combined output.
func (a *App) Call(ctx context.Context, args []string, stdin string) (int, string) {
	var buf bytes.Buffer
	code := a.Run(ctx, args, strings.NewReader(stdin), &buf, &buf)
	return code, buf.String()
}

// Seed runs seeders, or the configured ones when none are given.
func (a *App) Seed(ctx context.Context, seeders ...db.Seeder) error {
	if len(seeders) == 0 {
		seeders = a.Seeders
	}
	if len(seeders) == 0 {
		seeders = []db.Seeder{db.DefaultSeeder}
	}
	return a.DB.Seed(ctx, seeders...)
}

// Close releases the database and log file. It is safe to call twice.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	var err error
	if a.DB != nil {
		err = a.DB.Close()
	}
	if a.logFile != nil {
		if cerr := a.logFile.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
