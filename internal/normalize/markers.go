package normalize

import (
	"regexp"
	"strings"
)

var (
	bridgeMarkerRe = regexp.MustCompile(`(?i)\b[a-z0-9._-]+::`)
	floatMarkerRe  = regexp.MustCompile(`(?i)\bfloat\.[a-z0-9._-]+`)
)

// ExtractMarkers scans text for tokens of the form "word::" and
// "float.word.value", case-folds and dedupes them, and returns them in
// first-seen order.
func ExtractMarkers(text string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(m string) {
		key := strings.ToLower(m)
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	for _, m := range bridgeMarkerRe.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range floatMarkerRe.FindAllString(text, -1) {
		add(m)
	}
	return out
}

// MergeMarkers dedupes and concatenates multiple marker sets in order,
// used to aggregate per-message markers at the conversation level.
func MergeMarkers(sets ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, set := range sets {
		for _, m := range set {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}
