package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"convsplit/internal/errs"
	"convsplit/internal/model"
	"convsplit/internal/normalize"
	"convsplit/internal/stream"
)

// loadConversations detects the input's vendor shape and returns every
// conversation it contains. A directory is treated as a projects root: every
// non-hidden .jsonl session log found under it (at any depth) is loaded as
// its own Conversation. A single .jsonl file is loaded the same way.
// Claude-Code session logs are handled separately from the Anthropic and
// ChatGPT vendor shapes: the whole file is one session assembled into a single
// Conversation, rather than a stream of independent values.
func loadConversations(path string) ([]*model.Conversation, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errs.IO(path, "cannot stat input path", err)
	}
	if info.IsDir() {
		logs, err := findSessionLogs(path)
		if err != nil {
			return nil, err
		}
		var convs []*model.Conversation
		for _, logPath := range logs {
			conv, err := loadClaudeCodeSession(logPath)
			if err != nil {
				// One malformed session log shouldn't abort a whole
				// directory's worth of otherwise-good sessions.
				continue
			}
			convs = append(convs, conv)
		}
		return convs, nil
	}

	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		conv, err := loadClaudeCodeSession(path)
		if err != nil {
			return nil, err
		}
		return []*model.Conversation{conv}, nil
	}

	r, err := stream.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var convs []*model.Conversation
	var source model.Source
	for idx := 0; ; idx++ {
		raw, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		if source == "" {
			source, err = normalize.DetectConversationSource(raw)
			if err != nil {
				return nil, err
			}
		}
		conv, err := normalize.Normalize(raw, source)
		if err != nil {
			// Per spec.md §7, a malformed record inside a batch is logged
			// and skipped rather than aborting the whole run.
			slog.Default().Warn("skipping malformed conversation record", "path", path, "index", idx, "error", err)
			continue
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

func loadClaudeCodeSession(path string) (*model.Conversation, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.IO(path, "cannot read session log", err)
	}

	var entries []normalize.LogEntry
	scanner := bufio.NewScanner(strings.NewReader(string(raw)))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry normalize.LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.IO(path, "error scanning session log", err)
	}

	return normalize.NormalizeClaudeCodeSession(entries, path, raw)
}

// findSessionLogs walks projectsDir for non-hidden .jsonl files, the same
// discovery rule a Claude-Code projects directory needs: one session per
// file, nested under a per-project subdirectory, dotfiles excluded.
func findSessionLogs(projectsDir string) ([]string, error) {
	var logs []string
	err := filepath.WalkDir(projectsDir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			if path != projectsDir && strings.HasPrefix(entry.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(entry.Name(), ".") {
			return nil
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".jsonl") {
			logs = append(logs, path)
		}
		return nil
	})
	if err != nil {
		return nil, errs.IO(projectsDir, "error walking session log directory", err)
	}
	return logs, nil
}
