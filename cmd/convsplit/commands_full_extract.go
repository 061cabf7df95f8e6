package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"convsplit/internal/config"
	"convsplit/internal/errs"
	"convsplit/internal/model"
	"convsplit/internal/render"
	"convsplit/internal/runstate"
	"convsplit/internal/split"
)

func buildFullExtractCmd() *cobra.Command {
	var (
		in         string
		out        string
		formats    string
		keepNDJSON bool
		cacheDir   string
		stateDir   string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "full-extract",
		Short: "Detect input format, normalize, and split in one pass",
		Long: `full-extract detects the vendor shape of --in, normalizes every
conversation it contains, and writes the same per-conversation directory
layout as "split". With --keep-ndjson, the intermediate per-conversation
NDJSON representation is also preserved under the Run State Store's
cache directory instead of being discarded after splitting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFullExtract(cmd, fullExtractArgs{
				In: in, Out: out, Formats: formats, KeepNDJSON: keepNDJSON,
				CacheDir: cacheDir, StateDir: stateDir, Force: force,
			})
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Input file (JSON array, NDJSON, ZIP, or .jsonl session log) or a projects directory of .jsonl session logs")
	cmd.Flags().StringVar(&out, "out", ".", "Output directory")
	cmd.Flags().StringVar(&formats, "format", "md,json,ndjson", "Comma-separated output formats")
	cmd.Flags().BoolVar(&keepNDJSON, "keep-ndjson", false, "Preserve the intermediate per-conversation NDJSON under the cache dir")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", ".convsplit/cache", "Cache directory for intermediate NDJSON")
	cmd.Flags().StringVar(&stateDir, "state-dir", ".convsplit", "Run State Store directory")
	cmd.Flags().BoolVar(&force, "force", false, "Re-emit conversations even if already seen with an unchanged hash")
	cobra.CheckErr(cmd.MarkFlagRequired("in"))
	return cmd
}

type fullExtractArgs struct {
	In, Out, Formats, CacheDir, StateDir string
	KeepNDJSON, Force                    bool
}

func runFullExtract(cmd *cobra.Command, a fullExtractArgs) error {
	convs, err := loadConversations(a.In)
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		return errs.NoMatch(a.In, "no conversations matched", nil)
	}

	runID := time.Now().UTC().Format(time.RFC3339) + "-" + uuid.New().String()
	var tmpDir string
	if a.KeepNDJSON {
		tmpDir = filepath.Join(a.CacheDir, "tmp", runID)
		if err := os.MkdirAll(tmpDir, 0o755); err != nil {
			return errs.IO(tmpDir, "cannot create temp ndjson directory", err)
		}
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

	splitter := split.New(split.Options{
		OutDir:       a.Out,
		Formats:      formatSet,
		NameStrategy: split.NameByTitle,
		JSONIndent:   config.Default().Split.JSONIndent,
	})

	out := cmd.OutOrStdout()
	written, skipped := 0, 0
	processed := map[string][]string{}
	for _, conv := range convs {
		hash, err := model.ContentHash(conv.Raw)
		if err != nil {
			return err
		}
		if st.ShouldSkip(conv.ConvID, hash, a.Force) {
			skipped++
			continue
		}

		if tmpDir != "" {
			data, err := render.NDJSON(conv)
			if err != nil {
				return err
			}
			path := filepath.Join(tmpDir, conv.ConvID+".ndjson")
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return errs.IO(path, "cannot write intermediate ndjson", err)
			}
		}

		result, err := splitter.Write(conv)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s -> %s\n", conv.ConvID, result.Dir)
		st.MarkSeen(conv.ConvID, conv.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), string(conv.Source), hash)
		source := string(conv.Source)
		processed[source] = append(processed[source], conv.ConvID)
		written++
	}

	st.RecordRun(runstate.RunRecord{
		RunID:            runID,
		InputFingerprint: model.Fingerprint([]byte(a.In)),
		Processed:        processed,
	})
	if err := st.Save(); err != nil {
		return err
	}

	fmt.Fprintf(out, "done: %d written, %d skipped (unchanged)\n", written, skipped)
	if tmpDir != "" {
		fmt.Fprintf(out, "intermediate ndjson kept under %s\n", tmpDir)
	}
	return nil
}
