package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dicklesworthstone/quill/internal/auth"
	"github.com/Dicklesworthstone/quill/internal/config"
	"github.com/Dicklesworthstone/quill/internal/db"
	"github.com/Dicklesworthstone/quill/internal/modules"
	"github.com/Dicklesworthstone/quill/internal/preset"
)

const (
	testEmail    = "admin@quill.test"
	testPassword = "correct-horse"
)

type fixture struct {
	srv  *Server
	db   *db.DB
	root string
	user *db.User
}

func newFixture(t *testing.T, mutate func(cfg *config.Config, root string)) *fixture {
	t.Helper()
	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Admin.Path = "quill"
	cfg.Admin.LoginRedirectPath = "/quill"
	cfg.Admin.Locales = []string{"en", "fr"}
	cfg.Auth.BcryptCost = 4
	if mutate != nil {
		mutate(&cfg, root)
	}

	database, err := db.OpenAndMigrate(db.InMemory, filepath.Join(root, "database", "migrations"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	hash, err := auth.HashPassword(testPassword, cfg.Auth.BcryptCost)
	require.NoError(t, err)
	u := &db.User{Name: "Ada Admin", Email: testEmail, PasswordHash: hash, Role: db.RoleSuperAdmin}
	require.NoError(t, database.CreateUser(u))

	reg := modules.NewRegistry()
	require.NoError(t, reg.LoadDir(filepath.Join(root, "app", "modules")))

	srv, err := New(Deps{Config: cfg, Root: root, DB: database, Modules: reg})
	require.NoError(t, err)
	return &fixture{srv: srv, db: database, root: root, user: u}
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) sessionCookie(t *testing.T) *http.Cookie {
	t.Helper()
	sess, err := f.db.CreateSession(f.user.ID)
	require.NoError(t, err)
	return &http.Cookie{Name: f.srv.cfg.Auth.SessionCookie, Value: sess.ID}
}

func form(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestLogin(t *testing.T) {
	f := newFixture(t, nil)

	t.Run("valid credentials set a session cookie", func(t *testing.T) {
		rec := f.do(t, form(http.MethodPost, "/quill/login", url.Values{"email": {testEmail}, "password": {testPassword}}))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/quill", rec.Header().Get("Location"))
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "quill_session", cookies[0].Name)
		_, err := f.db.GetActiveSession(cookies[0].Value)
		assert.NoError(t, err)
	})

	t.Run("bad credentials re-render the form", func(t *testing.T) {
		rec := f.do(t, form(http.MethodPost, "/quill/login", url.Values{"email": {testEmail}, "password": {"nope"}}))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), LoginFailedMessage)
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("login page renders", func(t *testing.T) {
		rec := f.do(t, httptest.NewRequest(http.MethodGet, "/quill/login", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `name="password"`)
	})
}

func TestRequireAdmin(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/quill", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/quill/login", rec.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/quill/users", nil)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	rec = f.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "unauthenticated")

	req = httptest.NewRequest(http.MethodGet, "/quill", nil)
	req.AddCookie(f.sessionCookie(t))
	rec = f.do(t, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Welcome back, Ada Admin")
}

func TestLogout_EndsSession(t *testing.T) {
	f := newFixture(t, nil)
	cookie := f.sessionCookie(t)

	req := httptest.NewRequest(http.MethodPost, "/quill/logout", nil)
	req.AddCookie(cookie)
	rec := f.do(t, req)
	assert.Equal(t, http.StatusFound, rec.Code)

	_, err := f.db.GetActiveSession(cookie.Value)
	assert.ErrorIs(t, err, db.ErrSessionNotFound)
}

func TestEditUser_FeatureFlags(t *testing.T) {
	tests := []struct {
		name        string
		twoFactor   bool
		avatars     bool
		wantTwo     bool
		wantAvatars bool
	}{
		{name: "both on", twoFactor: true, avatars: true, wantTwo: true, wantAvatars: true},
		{name: "both off", twoFactor: false, avatars: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func(cfg *config.Config, _ string) {
				cfg.Features.TwoFactor = tt.twoFactor
				cfg.Features.UserAvatars = tt.avatars
			})
			req := httptest.NewRequest(http.MethodGet, "/quill/users/1/edit", nil)
			req.AddCookie(f.sessionCookie(t))
			rec := f.do(t, req)
			require.Equal(t, http.StatusOK, rec.Code)
			body := rec.Body.String()
			assert.Equal(t, tt.wantTwo, strings.Contains(body, "Two-factor authentication"))
			assert.Equal(t, tt.wantAvatars, strings.Contains(body, "Avatar"))
			assert.Contains(t, body, `<option value="fr">`)
		})
	}
}

func TestModuleStore(t *testing.T) {
	f := newFixture(t, nil)
	cookie := f.sessionCookie(t)

	t.Run("xhr validation failure", func(t *testing.T) {
		req := form(http.MethodPost, "/quill/pages", url.Values{"body": {"no title"}})
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
		req.AddCookie(cookie)
		rec := f.do(t, req)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var body struct {
			Errors map[string]string `json:"errors"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "The title field is required.", body.Errors["title"])
	})

	t.Run("xhr create", func(t *testing.T) {
		req := form(http.MethodPost, "/quill/pages", url.Values{"title": {"About us"}, "body": {"Hello"}, "published": {"1"}})
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
		req.AddCookie(cookie)
		rec := f.do(t, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		var item db.Item
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
		assert.Equal(t, "about-us", item.Slug)
		assert.Equal(t, "Hello", item.Data["body"])
	})

	t.Run("duplicate slug is a validation error", func(t *testing.T) {
		req := form(http.MethodPost, "/quill/pages", url.Values{"title": {"About us"}})
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
		req.AddCookie(cookie)
		rec := f.do(t, req)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "already been taken")
	})

	t.Run("form create redirects", func(t *testing.T) {
		req := form(http.MethodPost, "/quill/pages", url.Values{"title": {"Contact"}})
		req.AddCookie(cookie)
		rec := f.do(t, req)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/quill/pages/"))
	})

	t.Run("unknown module", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/quill/posts", nil)
		req.AddCookie(cookie)
		assert.Equal(t, http.StatusNotFound, f.do(t, req).Code)
	})
}

func TestPresetViewsAndRoutes(t *testing.T) {
	f := newFixture(t, func(_ *config.Config, root string) {
		_, err := preset.Install("blog", root)
		require.NoError(t, err)
	})
	cookie := f.sessionCookie(t)

	post := &db.Item{Module: "posts", Title: "First post", Data: map[string]string{"description": "Hello blog"}, Published: true}
	require.NoError(t, f.db.CreateItem(post))

	req := httptest.NewRequest(http.MethodGet, "/quill/posts", nil)
	req.AddCookie(cookie)
	rec := f.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Blog posts")
	assert.Contains(t, rec.Body.String(), "First post")

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/posts/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<article class="post">`)
	assert.Contains(t, rec.Body.String(), "Hello blog")
}

func TestSiteShow_HidesDrafts(t *testing.T) {
	f := newFixture(t, nil)
	draft := &db.Item{Module: "pages", Title: "Draft"}
	require.NoError(t, f.db.CreateItem(draft))
	live := &db.Item{Module: "pages", Title: "Live", Published: true}
	require.NoError(t, f.db.CreateItem(live))

	assert.Equal(t, http.StatusNotFound, f.do(t, httptest.NewRequest(http.MethodGet, "/pages/1", nil)).Code)
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/pages/2", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Live")

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rec.Body.String(), "Live")
	assert.NotContains(t, rec.Body.String(), "Draft")
}

func TestUpload_ImageIsStoredAndServed(t *testing.T) {
	f := newFixture(t, nil)

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 40, 20))))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "../Team Photo.png")
	require.NoError(t, err)
	_, err = part.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/quill/media", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.AddCookie(f.sessionCookie(t))
	rec := f.do(t, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		StoredName string `json:"stored_name"`
		URL        string `json:"url"`
		ImageURL   string `json:"image_url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, strings.HasSuffix(resp.StoredName, "-Team-Photo.png"))
	_, err = os.Stat(filepath.Join(f.root, "storage", "uploads", resp.StoredName))
	require.NoError(t, err)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, resp.URL, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, resp.ImageURL+"?w=10", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	media, err := f.db.ListMedia(db.MediaKindImage)
	require.NoError(t, err)
	assert.Len(t, media, 1)
}

func TestNew_RejectsUnknownRoutedModule(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "routes"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, AdminRoutesFile), []byte("modules: [ghost]\n"), 0o600))

	database, err := db.Open(db.InMemory)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	_, err = New(Deps{Config: config.DefaultConfig(), Root: root, DB: database})
	assert.ErrorIs(t, err, modules.ErrUnknownModule)
}
