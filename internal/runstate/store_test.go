package runstate

import "testing"

func TestLoadEmptyAndSave(t *testing.T) {
	dir := t.TempDir()
	st, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := st.Seen("abc"); ok {
		t.Fatal("expected no seen record")
	}
	st.MarkSeen("abc", "2025-01-15T10:00:00Z", "anthropic", "sha256:deadbeef")
	if err := st.Save(); err != nil {
		t.Fatal(err)
	}

	reloaded, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	rec, ok := reloaded.Seen("abc")
	if !ok || rec.Hash != "sha256:deadbeef" {
		t.Fatalf("got %+v, %v", rec, ok)
	}
}

func TestShouldSkip(t *testing.T) {
	dir := t.TempDir()
	st, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	st.MarkSeen("abc", "2025-01-15T10:00:00Z", "anthropic", "sha256:aaa")

	if !st.ShouldSkip("abc", "sha256:aaa", false) {
		t.Fatal("expected skip on identical hash")
	}
	if st.ShouldSkip("abc", "sha256:bbb", false) {
		t.Fatal("expected no skip on changed hash")
	}
	if st.ShouldSkip("abc", "sha256:aaa", true) {
		t.Fatal("expected no skip when force is set")
	}
}

func TestLockExclusion(t *testing.T) {
	dir := t.TempDir()
	a, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.AcquireLock(); err != nil {
		t.Fatal(err)
	}
	defer a.ReleaseLock()

	b, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.AcquireLock(); err == nil {
		t.Fatal("expected second lock acquisition to fail")
	}
}
