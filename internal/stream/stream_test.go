package stream

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readAll(t *testing.T, r Reader) []string {
	t.Helper()
	var out []string
	for {
		v, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, string(v))
	}
	return out
}

func TestArrayMode(t *testing.T) {
	path := writeTemp(t, "in.json", `[{"a":1},{"b":2}]`)
	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	vals := readAll(t, r)
	if len(vals) != 2 {
		t.Fatalf("got %d values, want 2", len(vals))
	}
}

func TestArrayModeEmpty(t *testing.T) {
	path := writeTemp(t, "in.json", `[]`)
	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	vals := readAll(t, r)
	if len(vals) != 0 {
		t.Fatalf("got %d values, want 0", len(vals))
	}
}

func TestArrayModeMissingBracket(t *testing.T) {
	path := writeTemp(t, "in.json", `[{"a":1}`)
	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	for {
		_, err := r.Next()
		if err != nil {
			if err == io.EOF {
				t.Fatal("expected parse error, got EOF")
			}
			return
		}
	}
}

func TestNDJSONMode(t *testing.T) {
	path := writeTemp(t, "in.ndjson", "{\"a\":1}\n\n{\"b\":2}\n")
	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	vals := readAll(t, r)
	if len(vals) != 2 {
		t.Fatalf("got %d values, want 2", len(vals))
	}
}
