package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"convsplit/internal/errs"
	"convsplit/internal/split"
	"convsplit/internal/stream"
)

func buildExplodeCmd() *cobra.Command {
	var (
		in         string
		out        string
		perMessage bool
	)

	cmd := &cobra.Command{
		Use:   "explode",
		Short: "Emit one file per conversation or per message from an NDJSON stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplode(cmd, in, out, perMessage)
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Input NDJSON path (meta+message records)")
	cmd.Flags().StringVar(&out, "out", ".", "Output directory")
	cmd.Flags().BoolVar(&perMessage, "messages", false, "Emit one file per message instead of one per conversation")
	cobra.CheckErr(cmd.MarkFlagRequired("in"))
	return cmd
}

type explodeRecord struct {
	Type string `json:"type"`
}

func runExplode(cmd *cobra.Command, in, out string, perMessage bool) error {
	r, err := stream.Open(in)
	if err != nil {
		return err
	}
	defer r.Close()

	var values []json.RawMessage
	var currentMeta json.RawMessage
	var currentMessages []json.RawMessage

	flushConversation := func() {
		if currentMeta == nil {
			return
		}
		doc := map[string]json.RawMessage{"meta": currentMeta}
		messages, _ := json.Marshal(currentMessages)
		doc["messages"] = messages
		if encoded, err := json.Marshal(doc); err == nil {
			values = append(values, encoded)
		}
		currentMeta = nil
		currentMessages = nil
	}

	for {
		raw, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		var rec explodeRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}

		switch rec.Type {
		case "meta":
			if !perMessage {
				flushConversation()
				cp := make(json.RawMessage, len(raw))
				copy(cp, raw)
				currentMeta = cp
			}
		case "message":
			if perMessage {
				cp := make(json.RawMessage, len(raw))
				copy(cp, raw)
				values = append(values, cp)
			} else {
				cp := make(json.RawMessage, len(raw))
				copy(cp, raw)
				currentMessages = append(currentMessages, cp)
			}
		}
	}
	if !perMessage {
		flushConversation()
	}

	if len(values) == 0 {
		return errs.NoMatch(in, "no conversations matched", nil)
	}

	if err := split.Explode(values, split.ExplodeOptions{OutDir: out, PerMessage: perMessage}); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "exploded %d file(s) into %s\n", len(values), out)
	return nil
}
