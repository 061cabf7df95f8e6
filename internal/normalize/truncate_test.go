package normalize

import (
	"testing"
	"unicode/utf8"
)

func TestSmartTruncateNoop(t *testing.T) {
	if got := SmartTruncate("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
}

func TestSmartTruncateUTF8Boundary(t *testing.T) {
	text := "héllo wörld " + string([]rune{'日', '本', '語'})
	for n := 1; n < len(text); n++ {
		got := SmartTruncate(text, n)
		if !utf8.ValidString(got) {
			t.Fatalf("truncate(%d) produced invalid UTF-8: %q", n, got)
		}
	}
}

func TestSmartTruncateSentenceBoundary(t *testing.T) {
	text := "First sentence. Second sentence. Third sentence that is long."
	got := SmartTruncate(text, 20)
	if got == text {
		t.Fatal("expected truncation")
	}
	if got != "First sentence...." {
		t.Fatalf("expected cut at the first sentence boundary, got %q", got)
	}
}
