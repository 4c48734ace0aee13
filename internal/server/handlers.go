package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Dicklesworthstone/quill/internal/db"
	"github.com/Dicklesworthstone/quill/internal/modules"
	"github.com/Dicklesworthstone/quill/internal/storage"
)

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	var mods []modules.Module
	for _, m := range s.modules.All() {
		if s.routed[m.Name] {
			mods = append(mods, m)
		}
	}
	s.render(w, http.StatusOK, "dashboard", view{Title: "Dashboard", User: currentUser(r), Modules: mods})
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.db.ListUsers()
	if err != nil {
		s.serverError(w, err)
		return
	}
	if isXHR(r) {
		writeJSON(w, http.StatusOK, users)
		return
	}
	s.render(w, http.StatusOK, "users", view{Title: "Users", User: currentUser(r), Users: users})
}

func (s *Server) editUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	target, err := s.db.GetUser(id)
	if errors.Is(err, db.ErrUserNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, err)
		return
	}
	s.render(w, http.StatusOK, "user_edit", view{Title: "Edit user", User: currentUser(r), Target: target})
}

// routedModule resolves the {module} URL parameter to a module exposed in the admin.
func (s *Server) routedModule(r *http.Request) (modules.Module, bool) {
	name := chi.URLParam(r, "module")
	if !s.routed[name] {
		return modules.Module{}, false
	}
	return s.modules.Get(name)
}

func (s *Server) moduleIndex(w http.ResponseWriter, r *http.Request) {
	m, ok := s.routedModule(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	items, err := s.db.ListItems(m.Name)
	if err != nil {
		s.serverError(w, err)
		return
	}
	if isXHR(r) {
		writeJSON(w, http.StatusOK, items)
		return
	}
	s.renderWithOverride(w, http.StatusOK, AdminViewsDir+"/"+m.Name+"/index.html", "module_index", view{
		Title:  m.Title,
		User:   currentUser(r),
		Module: m,
		Items:  items,
	})
}

func (s *Server) moduleStore(w http.ResponseWriter, r *http.Request) {
	m, ok := s.routedModule(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := parseForm(r); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	values := r.PostForm
	err := s.modules.Validate(m.Name, values)
	var item *db.Item
	if err == nil {
		item = &db.Item{
			Module:    m.Name,
			Title:     strings.TrimSpace(values.Get("title")),
			Data:      map[string]string{},
			Published: values.Get("published") == "1" || values.Get("published") == "on",
		}
		for _, f := range m.Fields {
			if f.Name != "title" && values.Has(f.Name) {
				item.Data[f.Name] = values.Get(f.Name)
			}
		}
		err = s.db.CreateItem(item)
		if errors.Is(err, db.ErrDuplicateSlug) {
			err = modules.ValidationErrors{"title": "The title has already been taken."}
		}
	}

	var verrs modules.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		if isXHR(r) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": verrs.Error(), "errors": verrs})
			return
		}
		items, lerr := s.db.ListItems(m.Name)
		if lerr != nil {
			s.serverError(w, lerr)
			return
		}
		s.render(w, http.StatusUnprocessableEntity, "module_index", view{
			Title:  m.Title,
			User:   currentUser(r),
			Module: m,
			Items:  items,
			Errors: verrs,
			Values: values,
		})
	case err != nil:
		s.serverError(w, err)
	case isXHR(r):
		writeJSON(w, http.StatusCreated, item)
	default:
		http.Redirect(w, r, s.prefix+"/"+m.Name+"/"+strconv.FormatInt(item.ID, 10), http.StatusFound)
	}
}

func (s *Server) moduleShow(w http.ResponseWriter, r *http.Request) {
	m, ok := s.routedModule(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	item, ok := s.lookupItem(w, r, m.Name)
	if !ok {
		return
	}
	if isXHR(r) {
		writeJSON(w, http.StatusOK, item)
		return
	}
	s.render(w, http.StatusOK, "module_show", view{Title: item.Title, User: currentUser(r), Module: m, Item: item})
}

func (s *Server) listMedia(w http.ResponseWriter, r *http.Request) {
	media, err := s.db.ListMedia("")
	if err != nil {
		s.serverError(w, err)
		return
	}
	if isXHR(r) {
		writeJSON(w, http.StatusOK, media)
		return
	}
	s.render(w, http.StatusOK, "media", view{Title: "Media", User: currentUser(r), Media: media})
}

type uploadResponse struct {
	*db.Media
	ImageURL string `json:"image_url,omitempty"`
}

// upload stores the multipart "file" field in the media or file library.
func (s *Server) upload(kind string) http.HandlerFunc {
	lib := s.files
	if kind == db.MediaKindImage {
		lib = s.media
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			http.Error(w, "expected a multipart upload", http.StatusBadRequest)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"errors": modules.ValidationErrors{"file": "The file field is required."},
			})
			return
		}
		defer f.Close()

		obj, err := lib.Save(hdr.Filename, f)
		if errors.Is(err, storage.ErrEmptyName) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"errors": modules.ValidationErrors{"file": "The file name is invalid."},
			})
			return
		}
		if err != nil {
			s.serverError(w, err)
			return
		}
		m := &db.Media{Kind: kind, Filename: hdr.Filename, StoredName: obj.Name, URL: obj.URL, Size: obj.Size}
		if err := s.db.CreateMedia(m); err != nil {
			s.serverError(w, err)
			return
		}
		s.log.Info("upload stored", "kind", kind, "name", obj.Name, "size", obj.Size)

		if !isXHR(r) {
			http.Redirect(w, r, s.prefix+"/media", http.StatusFound)
			return
		}
		resp := uploadResponse{Media: m}
		if kind == db.MediaKindImage {
			resp.ImageURL = s.ImageURL(obj.Name, 0)
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

func (s *Server) siteHome(w http.ResponseWriter, r *http.Request) {
	var published []*db.Item
	for _, m := range s.modules.All() {
		if !s.routed[m.Name] {
			continue
		}
		items, err := s.db.ListItems(m.Name)
		if err != nil {
			s.serverError(w, err)
			return
		}
		for _, it := range items {
			if it.Published {
				published = append(published, it)
			}
		}
	}
	s.render(w, http.StatusOK, "site_home", view{Items: published})
}

func (s *Server) siteShow(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "module")
	if _, ok := s.modules.Get(name); !ok {
		http.NotFound(w, r)
		return
	}
	item, ok := s.lookupItem(w, r, name)
	if !ok {
		return
	}
	if !item.Published {
		http.NotFound(w, r)
		return
	}
	s.renderWithOverride(w, http.StatusOK, SiteViewsDir+"/"+name+"/show.html", "site_show", view{Title: item.Title, Item: item})
}

func (s *Server) lookupItem(w http.ResponseWriter, r *http.Request, module string) (*db.Item, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return nil, false
	}
	item, err := s.db.GetItem(module, id)
	if errors.Is(err, db.ErrItemNotFound) {
		http.NotFound(w, r)
		return nil, false
	}
	if err != nil {
		s.serverError(w, err)
		return nil, false
	}
	return item, true
}

func parseForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(maxUploadBytes)
	}
	return r.ParseForm()
}
