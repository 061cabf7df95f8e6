// Package main provides the CLI entry point for convsplit.
//
// convsplit normalizes LLM conversation exports (Anthropic, ChatGPT,
// Claude-Code session logs) into a uniform on-disk layout, and optionally
// chunks and embeds message content into a pgvector-backed semantic index.
//
// # Basic usage
//
//	convsplit split --in export.json --out ./out
//	convsplit embed --in ./out/conv/conversation.ndjson --skip-existing
//	convsplit query "what did we decide about the migration"
//
// # Environment variables
//
//   - DATABASE_URL: Postgres connection string, required for embed/query.
//   - OPENAI_API_KEY: bearer token for the embedding service, required for embed/query.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"convsplit/internal/errs"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(errs.ExitCode(err))
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "convsplit",
		Short: "Normalize, split, and semantically index LLM conversation exports",
		Long: `convsplit turns vendor conversation exports (Anthropic, ChatGPT, Claude-Code
session logs) into a uniform per-conversation directory layout, and can
chunk and embed message content into a pgvector-backed semantic index.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	root.AddCommand(
		buildSplitCmd(),
		buildNDJSONCmd(),
		buildExplodeCmd(),
		buildFullExtractCmd(),
		buildEmbedCmd(),
		buildQueryCmd(),
	)

	return root
}
