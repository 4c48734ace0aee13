// Package imaging builds signed image URLs and serves resized images from the
// media library with an on-disk cache.
package imaging

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/image/draw"
)

// MaxWidth caps the w parameter.
const MaxWidth = 4096

// ErrBadSignature is returned when a signed URL does not verify.
var ErrBadSignature = errors.New("invalid image signature")

// Signer builds image URLs, signing them when Signed is set.
type Signer struct {
	BaseURL string
	Key     string
	Signed  bool
}

// URL returns the image URL for a media path with the given parameters.
func (s Signer) URL(mediaPath string, params url.Values) string {
	mediaPath = strings.TrimPrefix(path.Clean("/"+mediaPath), "/")
	q := url.Values{}
	for k, v := range params {
		if k != "s" {
			q[k] = v
		}
	}
	if s.Signed {
		q.Set("s", s.signature(mediaPath, q))
	}
	u := path.Join("/", strings.TrimPrefix(s.BaseURL, "/"), mediaPath)
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

// Verify checks the s parameter of a request for mediaPath.
func (s Signer) Verify(mediaPath string, query url.Values) error {
	if !s.Signed {
		return nil
	}
	got := query.Get("s")
	q := url.Values{}
	for k, v := range query {
		if k != "s" {
			q[k] = v
		}
	}
	want := s.signature(mediaPath, q)
	if !hmac.Equal([]byte(got), []byte(want)) {
		return ErrBadSignature
	}
	return nil
}

func (s Signer) signature(mediaPath string, q url.Values) string {
	mac := hmac.New(sha256.New, []byte(s.Key))
	mac.Write([]byte(mediaPath + "?" + q.Encode()))
	return hex.EncodeToString(mac.Sum(nil))
}

// Handler serves images below a URL prefix.
type Handler struct {
	Prefix    string
	SourceDir string
	CacheDir  string
	Signer    Signer
	Logger    *log.Logger
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(r.URL.Path, path.Join("/", strings.TrimPrefix(h.Prefix, "/")))
	rel = strings.TrimPrefix(path.Clean("/"+rel), "/")
	if rel == "" || rel == "." {
		http.NotFound(w, r)
		return
	}
	query := r.URL.Query()
	if err := h.Signer.Verify(rel, query); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	width := 0
	if raw := query.Get("w"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > MaxWidth {
			http.Error(w, "invalid width", http.StatusBadRequest)
			return
		}
		width = n
	}

	data, err := h.load(rel, width)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		if h.Logger != nil {
			h.Logger.Error("serving image", "path", rel, "err", err)
		}
		http.Error(w, "image unavailable", http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, path.Base(rel), time.Time{}, bytes.NewReader(data))
}

func (h *Handler) load(rel string, width int) ([]byte, error) {
	cachePath := filepath.Join(h.CacheDir, fmt.Sprintf("w%d", width), filepath.FromSlash(rel))
	if data, err := os.ReadFile(cachePath); err == nil {
		return data, nil
	}

	data, err := os.ReadFile(filepath.Join(h.SourceDir, filepath.FromSlash(rel)))
	if err != nil {
		return nil, err
	}
	if width > 0 {
		if data, err = resize(data, width); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(cachePath), 0o750); err != nil {
		return nil, fmt.Errorf("mkdir cache: %w", err)
	}
	if err := os.WriteFile(cachePath, data, 0o640); err != nil {
		return nil, fmt.Errorf("writing cache: %w", err)
	}
	return data, nil
}

// resize scales a PNG or JPEG image to width, keeping the aspect ratio.
// Images already narrower than width are returned unchanged.
func resize(data []byte, width int) ([]byte, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	b := src.Bounds()
	if b.Dx() <= width {
		return data, nil
	}
	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	switch format {
	case "png":
		err = png.Encode(&buf, dst)
	case "jpeg":
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85})
	default:
		return nil, fmt.Errorf("unsupported image format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("encoding image: %w", err)
	}
	return buf.Bytes(), nil
}
