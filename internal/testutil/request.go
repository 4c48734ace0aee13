package testutil

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
)

// maxRedirects bounds redirect following.
const maxRedirects = 10

// Response is a recorded HTTP response, the "crawler" assertions read from.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       string
	// URL is the request URL that produced this response, after redirects.
	URL string
}

// Location returns the redirect target, if any.
func (r *Response) Location() string {
	return r.Header.Get("Location")
}

// File is an upload attached with WithFiles.
type File struct {
	Name    string
	Content []byte
}

type requestOptions struct {
	method         string
	params         url.Values
	cookies        map[string]string
	files          map[string]File
	server         map[string]string
	content        []byte
	hasContent     bool
	follow         bool
	expectedStatus int
	xhr            bool
}

// RequestOption customizes Request and Ajax.
type RequestOption func(*requestOptions)

// WithMethod sets the HTTP method. The default is GET.
func WithMethod(method string) RequestOption {
	return func(o *requestOptions) { o.method = strings.ToUpper(method) }
}

// WithParams sets the query string for GET and HEAD, the form body otherwise.
func WithParams(params url.Values) RequestOption {
	return func(o *requestOptions) { o.params = params }
}

// WithCookies adds cookies on top of the harness cookie jar.
func WithCookies(cookies map[string]string) RequestOption {
	return func(o *requestOptions) { o.cookies = cookies }
}

// WithFiles attaches uploads keyed by form field, sending a multipart body.
func WithFiles(files map[string]File) RequestOption {
	return func(o *requestOptions) { o.files = files }
}

// WithServer sets request headers. REMOTE_ADDR sets the client address.
func WithServer(server map[string]string) RequestOption {
	return func(o *requestOptions) { o.server = server }
}

// WithContent sends content as the raw request body.
func WithContent(content []byte) RequestOption {
	return func(o *requestOptions) {
		o.content = content
		o.hasContent = true
	}
}

// FollowRedirects sets whether redirect responses are followed.
func FollowRedirects(follow bool) RequestOption {
	return func(o *requestOptions) { o.follow = follow }
}

// WithExpectedStatus sets the status Ajax expects. The default is 200.
func WithExpectedStatus(status int) RequestOption {
	return func(o *requestOptions) { o.expectedStatus = status }
}

// Request dispatches a request through the application's router, following
// redirects unless told otherwise, and records the response.
func (h *Harness) Request(uri string, opts ...RequestOption) *Response {
	h.T.Helper()
	o := requestOptions{method: http.MethodGet, follow: true}
	for _, opt := range opts {
		opt(&o)
	}
	return h.dispatch(uri, o)
}

// Ajax is Request for XMLHttpRequest calls: it sets X-Requested-With, does
// not follow redirects by default and logs, without failing, when the status
// differs from the expected one.
func (h *Harness) Ajax(uri string, opts ...RequestOption) *Response {
	h.T.Helper()
	o := requestOptions{method: http.MethodGet, expectedStatus: http.StatusOK, xhr: true}
	for _, opt := range opts {
		opt(&o)
	}
	resp := h.dispatch(uri, o)
	if resp.StatusCode != o.expectedStatus {
		h.T.Logf("ajax %s %s: expected status %d, got %d: %s", o.method, uri, o.expectedStatus, resp.StatusCode, resp.Body)
	}
	return resp
}

// Login submits the login form with the super admin's credentials.
func (h *Harness) Login() *Response {
	h.T.Helper()
	admin := h.SuperAdmin(false)
	return h.Request(h.AdminURL("login"),
		WithMethod(http.MethodPost),
		WithParams(url.Values{"email": {admin.Email}, "password": {admin.UnencryptedPassword}}),
	)
}

// Response returns the last recorded response, or nil.
func (h *Harness) Response() *Response {
	return h.crawler
}

// Cookie returns the value of a cookie in the jar.
func (h *Harness) Cookie(name string) (string, bool) {
	c, ok := h.cookies[name]
	if !ok {
		return "", false
	}
	return c.Value, true
}

func (h *Harness) dispatch(uri string, o requestOptions) *Response {
	h.T.Helper()

	method := o.method
	target := uri
	body, contentType := h.encodeBody(&o, &target)

	var resp *Response
	for redirects := 0; ; redirects++ {
		resp = h.roundTrip(method, target, body, contentType, o)
		if !o.follow || !isRedirect(resp.StatusCode) || resp.Location() == "" {
			break
		}
		if redirects == maxRedirects {
			h.T.Errorf("%s %s: stopped after %d redirects", o.method, uri, maxRedirects)
			break
		}
		next, err := url.Parse(target)
		RequireNoError(h.T, err, "parse request URL")
		loc, err := next.Parse(resp.Location())
		RequireNoError(h.T, err, "parse redirect location")
		target = loc.String()

		if resp.StatusCode != http.StatusTemporaryRedirect && resp.StatusCode != http.StatusPermanentRedirect {
			method, body, contentType = http.MethodGet, nil, ""
		}
	}
	h.crawler = resp
	return resp
}

func (h *Harness) encodeBody(o *requestOptions, target *string) ([]byte, string) {
	h.T.Helper()
	switch {
	case o.hasContent:
		if len(o.params) > 0 {
			*target = appendQuery(*target, o.params)
		}
		return o.content, o.server["Content-Type"]
	case len(o.files) > 0:
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		for k, vs := range o.params {
			for _, v := range vs {
				RequireNoError(h.T, mw.WriteField(k, v), "write form field")
			}
		}
		for field, f := range o.files {
			part, err := mw.CreateFormFile(field, f.Name)
			RequireNoError(h.T, err, "create form file")
			_, err = part.Write(f.Content)
			RequireNoError(h.T, err, "write form file")
		}
		RequireNoError(h.T, mw.Close(), "close multipart body")
		return buf.Bytes(), mw.FormDataContentType()
	case o.method == http.MethodGet || o.method == http.MethodHead:
		if len(o.params) > 0 {
			*target = appendQuery(*target, o.params)
		}
		return nil, ""
	case len(o.params) > 0:
		return []byte(o.params.Encode()), "application/x-www-form-urlencoded"
	default:
		return nil, ""
	}
}

func (h *Harness) roundTrip(method, target string, body []byte, contentType string, o requestOptions) *Response {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if u, err := url.Parse(h.Config.App.URL); err == nil && req.URL.Host == "" {
		req.Host = u.Host
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if o.xhr {
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
		req.Header.Set("Accept", "application/json")
	}
	for k, v := range o.server {
		if k == "REMOTE_ADDR" {
			req.RemoteAddr = v
			continue
		}
		req.Header.Set(k, v)
	}
	for _, c := range h.cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	for name, value := range o.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	rec := httptest.NewRecorder()
	h.App.Handler().ServeHTTP(rec, req)
	res := rec.Result()
	defer res.Body.Close()

	for _, c := range res.Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(h.cookies, c.Name)
			continue
		}
		h.cookies[c.Name] = c
	}
	return &Response{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       rec.Body.String(),
		URL:        target,
	}
}

func appendQuery(target string, params url.Values) string {
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + params.Encode()
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}
