package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.yaml.in/yaml/v3"
)

type sample struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

func TestParseFormat(t *testing.T) {
	for _, ok := range []string{"text", "json", "yaml"} {
		if _, err := ParseFormat(ok); err != nil {
			t.Errorf("ParseFormat(%q): %v", ok, err)
		}
	}
	if _, err := ParseFormat("toon"); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	w := New(FormatJSON, WithOutput(&buf))
	if err := w.Write(sample{ID: 1, Email: "a@b.c"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if got["email"] != "a@b.c" {
		t.Fatalf("got %v", got)
	}
}

func TestWrite_YAMLUsesJSONNames(t *testing.T) {
	var buf bytes.Buffer
	w := New(FormatYAML, WithOutput(&buf))
	if err := w.Write([]sample{{ID: 7, Email: "a@b.c"}}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var got []map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid yaml %q: %v", buf.String(), err)
	}
	if len(got) != 1 || got[0]["id"] != 7 || got[0]["email"] != "a@b.c" {
		t.Fatalf("got %v", got)
	}
}

func TestWrite_UnsupportedFormat(t *testing.T) {
	w := New(Format("xml"), WithOutput(&bytes.Buffer{}))
	if err := w.Write("x"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	w := New(FormatText, WithOutput(&buf))
	rows := [][]string{{"1", "a@b.c"}}
	if err := w.Table([]string{"ID", "EMAIL"}, rows, nil); err != nil {
		t.Fatalf("Table: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"ID", "EMAIL", "a@b.c"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}

	buf.Reset()
	w = New(FormatJSON, WithOutput(&buf))
	if err := w.Table([]string{"ID"}, rows, []sample{{ID: 1}}); err != nil {
		t.Fatalf("Table json: %v", err)
	}
	if !strings.Contains(buf.String(), `"id": 1`) {
		t.Fatalf("expected json data, got %q", buf.String())
	}
}

func TestSuccessAndError(t *testing.T) {
	var out, errOut bytes.Buffer
	w := New(FormatText, WithOutput(&out), WithErrorOutput(&errOut))
	w.Success("installed")
	w.Error(errors.New("boom"))
	if !strings.Contains(out.String(), "installed") {
		t.Errorf("stdout=%q", out.String())
	}
	if !strings.Contains(errOut.String(), "boom") {
		t.Errorf("stderr=%q", errOut.String())
	}

	out.Reset()
	w = New(FormatJSON, WithOutput(&out))
	w.Error(errors.New("boom"))
	if !strings.Contains(out.String(), `"message": "boom"`) {
		t.Errorf("json error=%q", out.String())
	}
}
