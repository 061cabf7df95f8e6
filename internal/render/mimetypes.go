// Package render implements the Splitter/Renderer's output formats:
// per-conversation Markdown with YAML frontmatter, the meta+message NDJSON
// stream, and the artifact MIME-to-extension table (the pretty-printed JSON
// output is written by internal/split), grounded on the original
// implementation's pipeline.rs render_markdown/artifact_type_to_extension.
package render

import "strings"

// mimeToExt maps a MIME type or artifact "type" hint to a file extension,
// used to name extracted artifact files.
var mimeToExt = map[string]string{
	"text/markdown":          "md",
	"application/vnd.ant.react": "jsx",
	"text/html":               "html",
	"image/svg+xml":            "svg",
	"application/json":         "json",
	"text/x-python":            "py",
	"application/javascript":   "js",
	"text/javascript":          "js",
	"text/x-go":                "go",
	"text/x-rust":              "rs",
	"text/x-c":                 "c",
	"text/x-c++":               "cpp",
	"text/x-java":              "java",
	"text/csv":                 "csv",
	"text/yaml":                "yaml",
	"application/x-yaml":       "yaml",
	"text/plain":               "txt",
	"text/css":                 "css",
	"application/xml":          "xml",
	"text/xml":                 "xml",
}

// ExtensionFor returns the file extension for a MIME type or artifact type
// hint, slugifying an unrecognized value as the fallback extension, and
// finally defaulting to "txt".
func ExtensionFor(mime string, slugify func(string) string) string {
	if mime == "" {
		return "txt"
	}
	if ext, ok := mimeToExt[strings.ToLower(mime)]; ok {
		return ext
	}
	// Fall back to the last path segment of the MIME/type string,
	// slugified, e.g. "application/vnd.custom-widget" -> "vnd-custom-widget".
	parts := strings.Split(mime, "/")
	last := parts[len(parts)-1]
	if slugify != nil {
		if s := slugify(last); s != "" {
			return s
		}
	}
	return "txt"
}
