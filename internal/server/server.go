// Package server implements Quill's HTTP surface: the admin console under
// /<admin.path>, the public site, uploaded assets and resized images.
package server

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"

	"github.com/Dicklesworthstone/quill/internal/config"
	"github.com/Dicklesworthstone/quill/internal/db"
	"github.com/Dicklesworthstone/quill/internal/imaging"
	"github.com/Dicklesworthstone/quill/internal/modules"
	"github.com/Dicklesworthstone/quill/internal/storage"
)

// maxUploadBytes bounds multipart form parsing.
const maxUploadBytes = 32 << 20

// Deps are the collaborators the server reads from.
type Deps struct {
	Config  config.Config
	Root    string
	DB      *db.DB
	Modules *modules.Registry
	Logger  *log.Logger
}

// Server is the Quill HTTP handler.
type Server struct {
	cfg     config.Config
	root    string
	db      *db.DB
	modules *modules.Registry
	log     *log.Logger

	prefix string
	views  *views
	nav    []NavItem
	routed map[string]bool
	media  storage.Local
	files  storage.Local
	signer imaging.Signer
	router chi.Router
}

// New builds the router from the configuration and the app root's
// navigation, route and view files.
func New(d Deps) (*Server, error) {
	if d.DB == nil {
		return nil, fmt.Errorf("server: database is required")
	}
	if d.Modules == nil {
		d.Modules = modules.NewRegistry()
	}
	if d.Logger == nil {
		d.Logger = log.New(io.Discard)
	}

	s := &Server{
		cfg:     d.Config,
		root:    d.Root,
		db:      d.DB,
		modules: d.Modules,
		log:     d.Logger.WithPrefix("http"),
		prefix:  "/" + strings.Trim(d.Config.Admin.Path, "/"),
	}

	var err error
	if s.views, err = loadViews(d.Root); err != nil {
		return nil, err
	}
	if s.routed, err = loadRoutedModules(d.Root, d.Modules); err != nil {
		return nil, err
	}
	if s.nav, err = loadNavigation(d.Root, d.Modules, s.routed); err != nil {
		return nil, err
	}

	s.media = storage.Local{Dir: s.path(d.Config.Media.LocalPath), BaseURL: d.Config.Media.URL}
	s.files = storage.Local{Dir: s.path(d.Config.Files.LocalPath), BaseURL: d.Config.Files.URL}
	s.signer = imaging.Signer{
		BaseURL: d.Config.Imaging.BaseURL,
		Key:     d.Config.Imaging.SignKey,
		Signed:  d.Config.Imaging.UseSignedURLs,
	}

	s.router = s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// AdminPrefix returns the admin console mount point, e.g. "/admin".
func (s *Server) AdminPrefix() string {
	return s.prefix
}

// ImageURL returns the public URL of a resized media image.
func (s *Server) ImageURL(storedName string, width int) string {
	params := url.Values{}
	if width > 0 {
		params.Set("w", strconv.Itoa(width))
	}
	return s.signer.URL(storedName, params)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Route(s.prefix, func(r chi.Router) {
		r.Get("/login", s.showLogin)
		r.Post("/login", s.login)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/logout", s.logout)
			r.Get("/", s.dashboard)
			r.Get("/users", s.listUsers)
			r.Get("/users/{id}/edit", s.editUser)
			r.Get("/media", s.listMedia)
			r.Post("/media", s.upload(db.MediaKindImage))
			r.Post("/files", s.upload(db.MediaKindFile))
			r.Get("/{module}", s.moduleIndex)
			r.Post("/{module}", s.moduleStore)
			r.Get("/{module}/{id}", s.moduleShow)
		})
	})

	if base := "/" + strings.Trim(s.signer.BaseURL, "/"); base != "/" {
		r.Handle(base+"/*", &imaging.Handler{
			Prefix:    base,
			SourceDir: s.path(s.cfg.Imaging.SourcePath),
			CacheDir:  s.path(s.cfg.Imaging.CachePath),
			Signer:    s.signer,
			Logger:    s.log,
		})
	}
	s.mountLibrary(r, s.media)
	s.mountLibrary(r, s.files)

	r.Get("/", s.siteHome)
	r.Get("/{module}/{id}", s.siteShow)
	return r
}

func (s *Server) mountLibrary(r chi.Router, lib storage.Local) {
	base := "/" + strings.Trim(lib.BaseURL, "/")
	if base == "/" {
		return
	}
	r.Handle(base+"/*", http.StripPrefix(base, http.FileServer(http.Dir(lib.Dir))))
}

// path resolves a configured path against the app root.
func (s *Server) path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.root, p)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func isXHR(r *http.Request) bool {
	return r.Header.Get("X-Requested-With") == "XMLHttpRequest"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) serverError(w http.ResponseWriter, err error) {
	s.log.Error("handler failed", "error", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
