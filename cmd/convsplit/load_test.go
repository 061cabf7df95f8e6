package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindSessionLogsSkipsHiddenFilesAndDirs(t *testing.T) {
	root := t.TempDir()

	mustWrite := func(rel string) {
		full := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("{}\n"), 0o644))
	}

	mustWrite("project-a/session-1.jsonl")
	mustWrite("project-a/.session-hidden.jsonl")
	mustWrite("project-b/nested/session-2.jsonl")
	mustWrite(".hidden-project/session-3.jsonl")
	mustWrite("project-a/README.md")

	logs, err := findSessionLogs(root)
	require.NoError(t, err)
	require.Len(t, logs, 2)

	var names []string
	for _, l := range logs {
		names = append(names, filepath.Base(l))
	}
	require.ElementsMatch(t, []string{"session-1.jsonl", "session-2.jsonl"}, names)
}

func TestFindSessionLogsMissingDir(t *testing.T) {
	_, err := findSessionLogs(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
}
