package normalize

import (
	"strings"
	"unicode/utf8"
)

// SmartTruncate shortens text to at most maxLen bytes (including the "..."
// it appends), preferring to cut at a sentence boundary, falling back to a
// word boundary, and finally a hard cut — always landing on a UTF-8 rune
// boundary. Used for the Embedding Coordinator's truncated (<=500 char)
// remote-error bodies.
func SmartTruncate(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}

	const ellipsis = "..."
	if maxLen <= len(ellipsis) {
		return hardCut(text[:maxLen])
	}

	window := text[:maxLen-len(ellipsis)]

	if idx := lastSentenceBoundary(window); idx > 0 {
		return strings.TrimRight(window[:idx], " \t\n\r") + ellipsis
	}

	if idx := lastWordBoundary(window); idx > 0 {
		return strings.TrimRight(window[:idx], " \t\n\r") + ellipsis
	}

	return hardCut(window) + ellipsis
}

// lastSentenceBoundary returns the byte offset just past the last
// sentence-terminating punctuation followed by whitespace within s, or -1.
func lastSentenceBoundary(s string) int {
	best := -1
	for i, r := range s {
		if r == '.' || r == '!' || r == '?' {
			// Require the terminator not be mid-rune-consumed and that
			// something follows it within s (a space), else it's likely
			// the final, already-truncated sentence.
			end := i + 1
			if end < len(s) && (s[end] == ' ' || s[end] == '\n') {
				best = end
			}
		}
	}
	return best
}

// lastWordBoundary returns the byte offset of the last whitespace rune in s,
// or -1 if none exists.
func lastWordBoundary(s string) int {
	idx := strings.LastIndexAny(s, " \t\n\r")
	if idx < 0 {
		return -1
	}
	return idx
}

// hardCut trims s back to the nearest complete-rune boundary so no partial
// UTF-8 sequence is emitted.
func hardCut(s string) string {
	for len(s) > 0 {
		r, size := utf8.DecodeLastRuneInString(s)
		if r != utf8.RuneError || size != 1 {
			return s
		}
		s = s[:len(s)-1]
	}
	return s
}
