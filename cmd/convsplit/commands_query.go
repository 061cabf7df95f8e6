package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"convsplit/internal/config"
	"convsplit/internal/embedclient"
	"convsplit/internal/errs"
	"convsplit/internal/vectorstore"
	"convsplit/internal/vectorstore/pgvector"
)

func buildQueryCmd() *cobra.Command {
	var (
		configPath string
		project    string
		days       int
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Run a semantic k-NN search against the vector store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args[0], configPath, project, days, limit)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to YAML configuration file (optional)")
	cmd.Flags().StringVar(&project, "project", "", "Restrict results to this project")
	cmd.Flags().IntVar(&days, "days", 0, "Restrict results to the last N days (0 disables the filter)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of results")
	return cmd
}

func runQuery(cmd *cobra.Command, text, configPath, project string, days, limit int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errs.Validation("DATABASE_URL", "required for query", nil)
	}
	apiKey, err := config.OpenAIAPIKey()
	if err != nil {
		return err
	}

	embed := embedclient.New(embedclient.Config{APIKey: apiKey, Model: cfg.Embed.Model})
	store, err := pgvector.New(pgvector.Config{
		DSN:            cfg.Database.URL,
		Dimension:      embed.Dimension(),
		MaxConnections: cfg.Database.MaxConnections,
		MinConnections: cfg.Database.MinConnections,
		AcquireTimeout: cfg.Database.AcquireTimeout,
		RunMigrations:  false,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.EnsureVectorIndex(cmd.Context()); err != nil {
		return err
	}

	vectors, err := embed.EmbedBatch(cmd.Context(), []string{text})
	if err != nil {
		return err
	}

	var filter vectorstore.QueryFilter
	filter.Project = project
	if days > 0 {
		since := time.Now().AddDate(0, 0, -days)
		filter.Since = &since
	}

	if limit <= 0 {
		limit = 10
	}
	results, err := store.Query(cmd.Context(), vectors[0], limit, filter)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return errs.NoMatch(text, "no results matched filters", nil)
	}

	out := cmd.OutOrStdout()
	for i, r := range results {
		snippet := r.ChunkText
		if len(snippet) > 200 {
			snippet = snippet[:197] + "..."
		}
		fmt.Fprintf(out, "%d. [dist %.4f] %s#%d chunk %d\n   %s\n", i+1, r.Distance, r.ConvID, r.MessageIdx, r.ChunkIndex, snippet)
	}
	return nil
}
