package main

import (
	"bufio"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"convsplit/internal/errs"
	"convsplit/internal/model"
	"convsplit/internal/stream"
)

func buildNDJSONCmd() *cobra.Command {
	var (
		in        string
		out       string
		canonical bool
	)

	cmd := &cobra.Command{
		Use:   "ndjson",
		Short: "Convert a JSON array (or ZIP of arrays) into NDJSON, one raw value per line",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNDJSON(in, out, canonical)
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Input file (JSON array, NDJSON, or ZIP)")
	cmd.Flags().StringVar(&out, "out", "", "Output NDJSON path (defaults to stdout)")
	cmd.Flags().BoolVar(&canonical, "canonical", false, "Re-marshal each value with sorted keys before writing")
	cobra.CheckErr(cmd.MarkFlagRequired("in"))
	return cmd
}

func runNDJSON(in, out string, canonical bool) error {
	r, err := stream.Open(in)
	if err != nil {
		return err
	}
	defer r.Close()

	w := os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return errs.IO(out, "cannot create output file", err)
		}
		defer f.Close()
		w = f
	}
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	count := 0
	for {
		raw, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		line := []byte(raw)
		if canonical {
			c, err := model.Canonicalize(raw)
			if err != nil {
				return err
			}
			line = c
		}
		if _, err := bw.Write(line); err != nil {
			return errs.IO(out, "cannot write ndjson line", err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return errs.IO(out, "cannot write ndjson line", err)
		}
		count++
	}
	if count == 0 {
		return errs.NoMatch(in, "no values found in input", nil)
	}
	return nil
}
