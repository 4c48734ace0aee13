package server

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/Dicklesworthstone/quill/internal/config"
	"github.com/Dicklesworthstone/quill/internal/db"
	"github.com/Dicklesworthstone/quill/internal/modules"
	"go.yaml.in/yaml/v3"
)

//go:embed templates/*.html
var templateFS embed.FS

// Paths under the app root that change what the server renders.
const (
	NavigationFile  = "config/navigation.yaml"
	AdminRoutesFile = "routes/admin.yaml"
	AdminViewsDir   = "resources/views/admin"
	SiteViewsDir    = "resources/views/site"
)

// NavItem is one entry of the admin navigation.
type NavItem struct {
	Module string `yaml:"module"`
	Label  string `yaml:"label"`
}

type navigationFile struct {
	Items []NavItem `yaml:"items"`
}

type adminRoutesFile struct {
	Modules []string `yaml:"modules"`
}

// view is the data every page template receives.
type view struct {
	Title       string
	AppName     string
	AdminPrefix string
	Locale      string
	User        *db.User
	Nav         []NavItem
	Features    config.FeaturesConfig
	Locales     []string

	Error   string
	Errors  modules.ValidationErrors
	Values  url.Values
	Module  modules.Module
	Modules []modules.Module
	Items   []*db.Item
	Item    *db.Item
	Users   []*db.User
	Target  *db.User
	Media   []*db.Media
}

type views struct {
	// layout is never executed so it can always be cloned.
	layout *template.Template
	pages  map[string]*template.Template
	root   string
}

func loadViews(root string) (*views, error) {
	layout, err := template.ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	v := &views{layout: layout, pages: make(map[string]*template.Template), root: root}
	for _, name := range names {
		base := filepath.Base(name)
		if base == "layout.html" {
			continue
		}
		t, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, name); err != nil {
			return nil, fmt.Errorf("parse %s: %w", base, err)
		}
		v.pages[base[:len(base)-len(".html")]] = t
	}
	return v, nil
}

// override returns a page built from an app-root view file, or nil when the
// file does not exist.
func (v *views) override(rel string) (*template.Template, error) {
	body, err := os.ReadFile(filepath.Join(v.root, rel))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t, err := v.layout.Clone()
	if err != nil {
		return nil, err
	}
	if _, err := t.New("content").Parse(string(body)); err != nil {
		return nil, fmt.Errorf("parse %s: %w", rel, err)
	}
	return t, nil
}

func (s *Server) render(w http.ResponseWriter, status int, page string, data view) {
	t, ok := s.views.pages[page]
	if !ok {
		http.Error(w, "unknown view "+page, http.StatusInternalServerError)
		return
	}
	s.execute(w, status, t, data)
}

func (s *Server) renderWithOverride(w http.ResponseWriter, status int, rel, fallback string, data view) {
	t, err := s.views.override(rel)
	if err != nil {
		s.serverError(w, err)
		return
	}
	if t == nil {
		s.render(w, status, fallback, data)
		return
	}
	s.execute(w, status, t, data)
}

func (s *Server) execute(w http.ResponseWriter, status int, t *template.Template, data view) {
	data.AppName = s.cfg.App.Name
	data.AdminPrefix = s.prefix
	data.Nav = s.nav
	data.Features = s.cfg.Features
	data.Locales = s.cfg.Admin.Locales
	if data.Locale == "" {
		data.Locale = "en"
		if data.User != nil {
			data.Locale = data.User.Locale
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := t.ExecuteTemplate(w, "layout", data); err != nil {
		s.log.Error("render failed", "error", err)
	}
}

// loadNavigation reads config/navigation.yaml. Without one, every routed
// module gets an entry.
func loadNavigation(root string, reg *modules.Registry, routed map[string]bool) ([]NavItem, error) {
	var nf navigationFile
	found, err := readYAML(filepath.Join(root, NavigationFile), &nf)
	if err != nil {
		return nil, err
	}
	if found {
		return nf.Items, nil
	}
	var items []NavItem
	for _, m := range reg.All() {
		if routed[m.Name] {
			items = append(items, NavItem{Module: m.Name, Label: m.Title})
		}
	}
	return items, nil
}

// loadRoutedModules returns the modules exposed in the admin console: the
// built-in pages plus whatever routes/admin.yaml lists.
func loadRoutedModules(root string, reg *modules.Registry) (map[string]bool, error) {
	routed := map[string]bool{modules.Pages.Name: true}
	var rf adminRoutesFile
	if _, err := readYAML(filepath.Join(root, AdminRoutesFile), &rf); err != nil {
		return nil, err
	}
	for _, name := range rf.Modules {
		if _, ok := reg.Get(name); !ok {
			return nil, fmt.Errorf("%s: %w: %s", AdminRoutesFile, modules.ErrUnknownModule, name)
		}
		routed[name] = true
	}
	return routed, nil
}

func readYAML(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}
