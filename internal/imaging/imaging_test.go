package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestSigner_URL(t *testing.T) {
	unsigned := Signer{BaseURL: "/img"}
	if got := unsigned.URL("a/b.png", url.Values{"w": {"100"}}); got != "/img/a/b.png?w=100" {
		t.Fatalf("URL=%q", got)
	}

	signed := Signer{BaseURL: "/img", Key: "k", Signed: true}
	u, err := url.Parse(signed.URL("/a/b.png", url.Values{"w": {"100"}}))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Query().Get("s") == "" {
		t.Fatalf("expected signature in %s", u)
	}
	if err := signed.Verify("a/b.png", u.Query()); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	tampered := u.Query()
	tampered.Set("w", "200")
	if err := signed.Verify("a/b.png", tampered); err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestHandler_ServesResizesAndCaches(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "uploads")
	cache := filepath.Join(root, "cache")
	writePNG(t, filepath.Join(src, "cat.png"), 40, 20)

	h := &Handler{Prefix: "/img", SourceDir: src, CacheDir: cache}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/img/cat.png?w=10", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 10 || img.Bounds().Dy() != 5 {
		t.Fatalf("bounds=%v", img.Bounds())
	}
	if _, err := os.Stat(filepath.Join(cache, "w10", "cat.png")); err != nil {
		t.Fatalf("expected cached copy: %v", err)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/img/missing.png", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/img/cat.png?w=abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", rec.Code)
	}
}

func TestHandler_RejectsBadSignature(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "cat.png"), 4, 4)
	h := &Handler{
		Prefix:    "/img",
		SourceDir: root,
		CacheDir:  filepath.Join(root, "cache"),
		Signer:    Signer{BaseURL: "/img", Key: "secret", Signed: true},
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/img/cat.png?s=forged", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status=%d want 403", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, h.Signer.URL("cat.png", nil), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, strings.TrimSpace(rec.Body.String()))
	}
}
