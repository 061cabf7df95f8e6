// Package split implements the Splitter/Renderer: it writes the
// deterministic per-conversation directory layout described in spec.md
// §4.3, choosing slugified, date-prefixed, collision-safe names via
// internal/slug and delegating format rendering to internal/render.
package split

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"convsplit/internal/errs"
	"convsplit/internal/model"
	"convsplit/internal/render"
	"convsplit/internal/slug"
)

// NameStrategy selects which field names a conversation's output directory.
type NameStrategy string

const (
	NameByTitle          NameStrategy = "title"
	NameByID             NameStrategy = "id"
	NameByFirstHumanLine NameStrategy = "first-human-line"
)

// Options controls one split run.
type Options struct {
	OutDir       string
	Formats      map[string]bool // "md", "json", "ndjson"
	NameStrategy NameStrategy
	JSONIndent   int
	DryRun       bool
	Log          *slog.Logger
}

// Result summarizes one conversation's emission for CLI reporting.
type Result struct {
	ConvID  string
	Dir     string
	Skipped bool
}

// Splitter writes conversations to disk, tracking slug collisions across
// the whole run via a single slug.State.
type Splitter struct {
	opts  Options
	slugs *slug.State
}

// New constructs a Splitter for one run.
func New(opts Options) *Splitter {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Formats == nil {
		opts.Formats = map[string]bool{"md": true, "json": true, "ndjson": true}
	}
	return &Splitter{opts: opts, slugs: slug.NewState()}
}

// baseName picks the un-slugified name seed for conv according to
// NameStrategy.
func (s *Splitter) baseName(conv *model.Conversation) string {
	switch s.opts.NameStrategy {
	case NameByID:
		return conv.ConvID
	case NameByFirstHumanLine:
		for _, m := range conv.Messages {
			if m.Role == model.RoleHuman {
				if t := m.CombinedText(); t != "" {
					if len(t) > 80 {
						t = t[:80]
					}
					return t
				}
			}
		}
		return conv.ConvID
	default:
		if conv.Title != "" {
			return conv.Title
		}
		return conv.ConvID
	}
}

// Write emits one conversation's directory and returns the chosen
// directory path (even in dry-run mode, where nothing is actually
// written).
func (s *Splitter) Write(conv *model.Conversation) (Result, error) {
	base := slug.ConversationBaseName(s.baseName(conv))
	datePrefix := conv.CreatedAt.Format("2006-01-02")
	dirName := s.slugs.Next(fmt.Sprintf("%s-%s", datePrefix, base))
	dir := filepath.Join(s.opts.OutDir, dirName)

	if s.opts.DryRun {
		s.opts.Log.Info("dry-run: would write conversation", "conv_id", conv.ConvID, "dir", dir)
		return Result{ConvID: conv.ConvID, Dir: dir}, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, errs.IO(dir, "cannot create conversation directory", err)
	}

	name := strings.TrimPrefix(dirName, datePrefix+"-")
	assignArtifactFilenames(conv, name)

	if err := s.writeArtifacts(dir, conv); err != nil {
		return Result{}, err
	}
	if s.opts.Formats["md"] {
		if err := s.writeMarkdown(dir, name, conv); err != nil {
			return Result{}, err
		}
	}
	if s.opts.Formats["json"] {
		if err := s.writeJSON(dir, name, conv); err != nil {
			return Result{}, err
		}
	}
	if s.opts.Formats["ndjson"] {
		if err := s.writeNDJSON(dir, conv); err != nil {
			return Result{}, err
		}
	}

	return Result{ConvID: conv.ConvID, Dir: dir}, nil
}

func assignArtifactFilenames(conv *model.Conversation, baseSlug string) {
	for mi := range conv.Messages {
		for ai := range conv.Messages[mi].Artifacts {
			art := &conv.Messages[mi].Artifacts[ai]
			kindSlug := slug.Slugify(art.Kind)
			if kindSlug == "" || kindSlug == "untitled" {
				kindSlug = baseSlug
			}
			ext := extensionFor(art)
			art.Filename = fmt.Sprintf("%s-%03d-%03d.%s", kindSlug, mi, ai, ext)
		}
	}
}

func extensionFor(art *model.Artifact) string {
	hint := art.MIME
	if hint == "" {
		hint = art.Language
	}
	return render.ExtensionFor(hint, slug.Slugify)
}

func (s *Splitter) writeArtifacts(dir string, conv *model.Conversation) error {
	var any bool
	for _, m := range conv.Messages {
		for _, art := range m.Artifacts {
			if art.Body == "" || art.Filename == "" {
				continue
			}
			any = true
			break
		}
	}
	if !any {
		return nil
	}
	artDir := filepath.Join(dir, "artifacts")
	if err := os.MkdirAll(artDir, 0o755); err != nil {
		return errs.IO(artDir, "cannot create artifacts directory", err)
	}
	for _, m := range conv.Messages {
		for _, art := range m.Artifacts {
			if art.Body == "" || art.Filename == "" {
				continue
			}
			path := filepath.Join(artDir, art.Filename)
			if err := os.WriteFile(path, []byte(art.Body), 0o644); err != nil {
				return errs.IO(path, "cannot write artifact file", err)
			}
		}
	}
	return nil
}

func (s *Splitter) writeMarkdown(dir, name string, conv *model.Conversation) error {
	md, err := render.Markdown(conv)
	if err != nil {
		return errs.IO(dir, "cannot render markdown", err)
	}
	path := filepath.Join(dir, name+".md")
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		return errs.IO(path, "cannot write markdown file", err)
	}
	return nil
}

func (s *Splitter) writeJSON(dir, name string, conv *model.Conversation) error {
	path := filepath.Join(dir, name+".json")
	indent := s.opts.JSONIndent
	if indent <= 0 {
		indent = 2
	}
	pretty, err := prettyPrint(conv.Raw, indent)
	if err != nil {
		return errs.IO(path, "cannot pretty-print conversation JSON", err)
	}
	if err := os.WriteFile(path, pretty, 0o644); err != nil {
		return errs.IO(path, "cannot write json file", err)
	}
	return nil
}

func (s *Splitter) writeNDJSON(dir string, conv *model.Conversation) error {
	data, err := render.NDJSON(conv)
	if err != nil {
		return errs.IO(dir, "cannot render ndjson", err)
	}
	path := filepath.Join(dir, "conversation.ndjson")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.IO(path, "cannot write ndjson file", err)
	}
	return nil
}
