package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"convsplit/internal/config"
	"convsplit/internal/errs"
	"convsplit/internal/metrics"
	"convsplit/internal/model"
	"convsplit/internal/runstate"
	"convsplit/internal/split"
)

func buildSplitCmd() *cobra.Command {
	var (
		in          string
		out         string
		formats     string
		nameBy      string
		dryRun      bool
		noProgress  bool
		force       bool
		stateDir    string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split a vendor export into per-conversation directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplit(cmd, splitArgs{
				In: in, Out: out, Formats: formats, NameBy: nameBy,
				DryRun: dryRun, NoProgress: noProgress, Force: force, StateDir: stateDir,
				MetricsAddr: metricsAddr,
			})
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Input file (JSON array, NDJSON, ZIP, or .jsonl session log) or a projects directory of .jsonl session logs")
	cmd.Flags().StringVar(&out, "out", ".", "Output directory")
	cmd.Flags().StringVar(&formats, "format", "md,json,ndjson", "Comma-separated output formats")
	cmd.Flags().StringVar(&nameBy, "name-by", "title", "Directory naming strategy: title, id, first-human-line")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be written without writing it")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Suppress per-conversation progress logging")
	cmd.Flags().BoolVar(&force, "force", false, "Re-emit conversations even if already seen with an unchanged hash")
	cmd.Flags().StringVar(&stateDir, "state-dir", ".convsplit", "Run State Store directory")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics at this address for the run's duration (e.g. :9090)")
	cobra.CheckErr(cmd.MarkFlagRequired("in"))
	return cmd
}

type splitArgs struct {
	In, Out, Formats, NameBy, StateDir, MetricsAddr string
	DryRun, NoProgress, Force                       bool
}

func runSplit(cmd *cobra.Command, a splitArgs) error {
	convs, err := loadConversations(a.In)
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		return errs.NoMatch(a.In, "no conversations matched", nil)
	}

	st, err := runstate.Load(a.StateDir)
	if err != nil {
		return err
	}

	formatSet := map[string]bool{}
	for _, f := range strings.Split(a.Formats, ",") {
		if f = strings.TrimSpace(f); f != "" {
			formatSet[f] = true
		}
	}

	log := slog.Default()
	if a.NoProgress {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var reg *metrics.Registry
	if a.MetricsAddr != "" {
		reg = metrics.New()
		srv := &http.Server{Addr: a.MetricsAddr, Handler: reg.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server error", "error", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	splitter := split.New(split.Options{
		OutDir:       a.Out,
		Formats:      formatSet,
		NameStrategy: split.NameStrategy(a.NameBy),
		JSONIndent:   config.Default().Split.JSONIndent,
		DryRun:       a.DryRun,
		Log:          log,
	})

	out := cmd.OutOrStdout()
	written := 0
	skipped := 0
	processed := map[string][]string{}
	for _, conv := range convs {
		hash, err := model.ContentHash(conv.Raw)
		if err != nil {
			return err
		}
		if st.ShouldSkip(conv.ConvID, hash, a.Force) {
			skipped++
			if reg != nil {
				reg.ConversationsSkipped.Inc()
			}
			continue
		}
		result, err := splitter.Write(conv)
		if err != nil {
			return err
		}
		if !a.NoProgress {
			fmt.Fprintf(out, "wrote %s -> %s\n", conv.ConvID, result.Dir)
		}
		if !a.DryRun {
			st.MarkSeen(conv.ConvID, conv.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), string(conv.Source), hash)
			source := string(conv.Source)
			processed[source] = append(processed[source], conv.ConvID)
		}
		written++
	}

	if !a.DryRun {
		st.RecordRun(runstate.RunRecord{
			RunID:            time.Now().UTC().Format(time.RFC3339),
			InputFingerprint: model.Fingerprint([]byte(a.In)),
			Processed:        processed,
		})
		if err := st.Save(); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "done: %d written, %d skipped (unchanged)\n", written, skipped)
	return nil
}
