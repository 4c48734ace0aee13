package testutil

import (
	"html"
	"regexp"
	"strings"
	"testing"
)

// RequireNoError fails the test immediately if err is non-nil.
func RequireNoError(t testing.TB, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

// RequireEqual fails the test immediately if expected != actual.
func RequireEqual[T comparable](t testing.TB, expected, actual T, msg string) {
	t.Helper()
	if expected != actual {
		t.Fatalf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// RequireLen fails if len(s) != n.
func RequireLen[T ~[]E, E any](t testing.TB, s T, n int, msg string) {
	t.Helper()
	if len(s) != n {
		t.Fatalf("%s: expected len=%d, got %d", msg, n, len(s))
	}
}

var (
	spaceAfterTag  = regexp.MustCompile(`>\s+`)
	spaceBeforeTag = regexp.MustCompile(`\s+<`)
	spaceRun       = regexp.MustCompile(`\s+`)
)

// NormalizeText decodes HTML entities, drops whitespace next to tag
// brackets and collapses the remaining whitespace runs to one space.
func NormalizeText(s string) string {
	s = html.UnescapeString(s)
	s = spaceAfterTag.ReplaceAllString(s, ">")
	s = spaceBeforeTag.ReplaceAllString(s, "<")
	s = spaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func (h *Harness) sees(text string) (bool, bool) {
	if h.crawler == nil {
		return false, false
	}
	return strings.Contains(NormalizeText(h.crawler.Body), NormalizeText(text)), true
}

// AssertSee reports an error unless the last response contains text.
func (h *Harness) AssertSee(text string) {
	h.T.Helper()
	found, ok := h.sees(text)
	switch {
	case !ok:
		h.T.Errorf("AssertSee(%q): no response recorded; call Request or Ajax first", text)
	case !found:
		h.T.Errorf("expected to see %q in the response to %s", text, h.crawler.URL)
	}
}

// AssertDontSee reports an error if the last response contains text.
func (h *Harness) AssertDontSee(text string) {
	h.T.Helper()
	found, ok := h.sees(text)
	switch {
	case !ok:
		h.T.Errorf("AssertDontSee(%q): no response recorded; call Request or Ajax first", text)
	case found:
		h.T.Errorf("expected not to see %q in the response to %s", text, h.crawler.URL)
	}
}

// AssertStatus reports an error unless the last response has status.
func (h *Harness) AssertStatus(status int) {
	h.T.Helper()
	if h.crawler == nil {
		h.T.Errorf("AssertStatus(%d): no response recorded; call Request or Ajax first", status)
		return
	}
	if h.crawler.StatusCode != status {
		h.T.Errorf("expected status %d from %s, got %d", status, h.crawler.URL, h.crawler.StatusCode)
	}
}

// AssertExitCodeIsGood reports an error unless code is zero.
func (h *Harness) AssertExitCodeIsGood(code int) {
	h.T.Helper()
	if code != 0 {
		h.T.Errorf("expected a good exit code (0), got %d", code)
	}
}

// AssertExitCodeIsNotGood reports an error if code is zero.
func (h *Harness) AssertExitCodeIsNotGood(code int) {
	h.T.Helper()
	if code == 0 {
		h.T.Errorf("expected a non-zero exit code, got %d", code)
	}
}
