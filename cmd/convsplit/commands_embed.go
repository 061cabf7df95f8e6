package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"convsplit/internal/chunker"
	"convsplit/internal/config"
	"convsplit/internal/embedclient"
	"convsplit/internal/errs"
	"convsplit/internal/ingest"
	"convsplit/internal/metrics"
	"convsplit/internal/ratelimit"
	"convsplit/internal/vectorstore/pgvector"
)

func buildEmbedCmd() *cobra.Command {
	var (
		in           string
		configPath   string
		since        string
		project      string
		batchSize    int
		skipExisting bool
		rateLimitMS  int
		dryRun       bool
		metricsAddr  string
	)

	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Chunk and embed a conversation's messages into the vector store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmbed(cmd, embedArgs{
				In: in, ConfigPath: configPath, Since: since, Project: project,
				BatchSize: batchSize, SkipExisting: skipExisting, RateLimitMS: rateLimitMS, DryRun: dryRun,
				MetricsAddr: metricsAddr,
			})
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Input NDJSON path (meta+message records)")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to YAML configuration file (optional)")
	cmd.Flags().StringVar(&since, "since", "", "Only embed conversations created on/after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&project, "project", "", "Only embed conversations tagged with this project")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Embedding batch size (0 uses config default, capped at 50)")
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "Skip messages already present in the vector store")
	cmd.Flags().IntVar(&rateLimitMS, "rate-limit-ms", 0, "Milliseconds to pace between embedding batches (0 uses config default)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be embedded without writing anything")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics at this address for the run's duration (e.g. :9090)")
	cobra.CheckErr(cmd.MarkFlagRequired("in"))
	return cmd
}

type embedArgs struct {
	In, ConfigPath, Since, Project, MetricsAddr string
	BatchSize, RateLimitMS                      int
	SkipExisting, DryRun                        bool
}

func runEmbed(cmd *cobra.Command, a embedArgs) error {
	cfg, err := config.Load(a.ConfigPath)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errs.Validation("DATABASE_URL", "required for embed", nil)
	}
	apiKey, err := config.OpenAIAPIKey()
	if err != nil {
		return err
	}

	var since *time.Time
	if a.Since != "" {
		t, err := time.Parse("2006-01-02", a.Since)
		if err != nil {
			return errs.Validation("since", "expected YYYY-MM-DD", err)
		}
		since = &t
	}

	batchSize := a.BatchSize
	if batchSize == 0 {
		batchSize = cfg.Embed.BatchSize
	}
	rateLimitMS := a.RateLimitMS
	if rateLimitMS == 0 {
		rateLimitMS = cfg.Embed.RateLimitMS
	}

	chunk, err := chunker.New(cfg.Chunk, nil)
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
		RunMigrations:  !a.DryRun,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	if !a.DryRun {
		if err := store.EnsureVectorIndex(cmd.Context()); err != nil {
			return err
		}
	}

	limiter := ratelimit.New(ratelimit.Config{IntervalMS: rateLimitMS, Enabled: rateLimitMS > 0})

	coord := ingest.New(store, chunk, embed.EmbedBatch, limiter, nil)

	var reg *metrics.Registry
	if a.MetricsAddr != "" {
		reg = metrics.New()
		srv := &http.Server{Addr: a.MetricsAddr, Handler: reg.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Default().Error("metrics server error", "error", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	summary, err := coord.Embed(cmd.Context(), a.In, ingest.Options{
		Since:        since,
		Project:      a.Project,
		BatchSize:    batchSize,
		SkipExisting: a.SkipExisting,
		RateLimitMS:  rateLimitMS,
		DryRun:       a.DryRun,
		Model:        cfg.Embed.Model,
		Metrics:      reg,
	})
	if err != nil {
		return err
	}

	if summary.ConversationsSeen == 0 {
		return errs.NoMatch(a.In, "no conversations matched filters", nil)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "conversations: %d\n", summary.ConversationsSeen)
	fmt.Fprintf(out, "messages seen: %d (upserted %d, empty %d)\n", summary.MessagesSeen, summary.MessagesUpserted, summary.ChunksSkippedEmpty)
	fmt.Fprintf(out, "embeddings written: %d\n", summary.EmbeddingsWritten)
	if a.DryRun {
		fmt.Fprintln(out, "(dry run: nothing was written)")
	}
	return nil
}
