package slug

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlugifyBasic(t *testing.T) {
	require.Equal(t, "hello-world", Slugify("Hello, World!"))
}

func TestSlugifyIdempotent(t *testing.T) {
	cases := []string{"Hello, World!", "Test Conversation", "???", "日本語 mixed Text"}
	for _, c := range cases {
		once := Slugify(c)
		twice := Slugify(once)
		require.Equal(t, once, twice, "slugify(%q) not idempotent", c)
	}
}

func TestSlugifyDropsNonASCII(t *testing.T) {
	require.Equal(t, "mixed-text", Slugify("日本語 mixed Text"))
}

func TestSlugifyTruncates(t *testing.T) {
	long := ""
	for i := 0; i < 200; i++ {
		long += "a"
	}
	got := Slugify(long)
	require.LessOrEqual(t, len(got), MaxLen)
}

func TestStripLeadingDate(t *testing.T) {
	cases := map[string]string{
		"2025-01-15 Hello":   "Hello",
		"2025-01-15: Hello":  "Hello",
		"2025-01-15 - Hello": "Hello",
		"2025-01-15Hello":    "Hello",
		"No date here":       "No date here",
	}
	for in, want := range cases {
		require.Equal(t, want, StripLeadingDate(in), "StripLeadingDate(%q)", in)
	}
}

func TestStateCollisions(t *testing.T) {
	s := NewState()
	require.Equal(t, "hello", s.Next("hello"))
	require.Equal(t, "hello-001", s.Next("hello"))
	require.Equal(t, "hello-002", s.Next("hello"))
	require.Equal(t, "other", s.Next("other"))
}
