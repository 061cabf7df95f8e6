// Package ingest implements the Embedding Coordinator: it drives a
// streaming ingestion over the Splitter's NDJSON output, chunking message
// content and calling the remote embedding service while respecting the
// foreign-key ordering and rate-limit constraints in spec.md §4.6/§5.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"convsplit/internal/chunker"
	"convsplit/internal/errs"
	"convsplit/internal/metrics"
	"convsplit/internal/ratelimit"
	"convsplit/internal/render"
	"convsplit/internal/stream"
	"convsplit/internal/vectorstore"
)

// maxBatchSize is the hard cap spec.md names for the text-embedding-3-small
// token-per-request budget.
const maxBatchSize = 50

// Options controls one embed run.
type Options struct {
	Since        *time.Time
	Project      string
	BatchSize    int
	SkipExisting bool
	RateLimitMS  int
	DryRun       bool
	Model        string
	Metrics      *metrics.Registry
}

// Summary reports what one embed run did, for dry-run reporting and CLI
// output.
type Summary struct {
	ConversationsSeen int
	MessagesSeen      int
	MessagesUpserted  int
	EmbeddingsWritten int
	ChunksSkippedEmpty int
}

// EmbedFunc computes one vector per input text; satisfied by
// *embedclient.Client.EmbedBatch.
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// Coordinator drives one embed run.
type Coordinator struct {
	store   vectorstore.Store
	chunk   *chunker.Chunker
	embed   EmbedFunc
	limiter *ratelimit.Limiter
	log     *slog.Logger
}

// New constructs a Coordinator.
func New(store vectorstore.Store, chunk *chunker.Chunker, embed EmbedFunc, limiter *ratelimit.Limiter, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{store: store, chunk: chunk, embed: embed, limiter: limiter, log: log}
}

type pendingJob struct {
	convID     string
	msgIndex   int
	chunkIndex int
	chunkCount int
	text       string
}

// Embed streams records from path (the Splitter's meta+message NDJSON
// output), upserting conversations and messages, chunking message content
// and embedding the chunks. In dry-run mode it still filters, chunks and
// counts, but writes nothing to the store and calls no embedding service.
func (c *Coordinator) Embed(ctx context.Context, path string, opts Options) (Summary, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 || batchSize > maxBatchSize {
		if batchSize > maxBatchSize {
			c.log.Warn("batch_size exceeds token-per-request cap, clamping", "requested", batchSize, "clamped_to", maxBatchSize)
		}
		batchSize = maxBatchSize
	}

	var existing map[string]bool
	if opts.SkipExisting && !opts.DryRun {
		var err error
		existing, err = c.store.ExistingMessageIDs(ctx)
		if err != nil {
			return Summary{}, err
		}
	}

	r, err := stream.Open(path)
	if err != nil {
		return Summary{}, err
	}
	defer r.Close()

	var summary Summary
	var currentConv string
	var currentProject string
	var haveConv bool
	var sawAnyMeta bool
	var messageBatch []vectorstore.MessageRow
	var pendingJobs []pendingJob

	flush := func() error {
		if len(messageBatch) > 0 {
			if !opts.DryRun {
				if err := c.store.UpsertMessages(ctx, messageBatch); err != nil {
					return err
				}
			}
			summary.MessagesUpserted += len(messageBatch)
			if opts.Metrics != nil {
				opts.Metrics.BatchesFlushed.Inc()
				opts.Metrics.MessagesUpserted.Add(float64(len(messageBatch)))
			}
			messageBatch = nil
		}
		if len(pendingJobs) == 0 {
			return nil
		}
		texts := make([]string, len(pendingJobs))
		for i, j := range pendingJobs {
			texts[i] = j.text
		}

		if opts.DryRun {
			pendingJobs = nil
			return nil
		}

		// The limiter's first Wait returns at once; every later one is
		// held back to IntervalMS after the previous call started.
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		vectors, err := c.embed(ctx, texts)
		if err != nil {
			return err
		}
		if len(vectors) != len(texts) {
			return errs.Remote("embed", fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(vectors)), nil)
		}

		rows := make([]vectorstore.EmbeddingRow, len(pendingJobs))
		for i, j := range pendingJobs {
			rows[i] = vectorstore.EmbeddingRow{
				MessageConvID: j.convID,
				MessageIndex:  j.msgIndex,
				ChunkIndex:    j.chunkIndex,
				ChunkCount:    j.chunkCount,
				ChunkText:     j.text,
				Model:         opts.Model,
				Vector:        vectors[i],
			}
		}
		if err := c.store.UpsertEmbeddings(ctx, rows); err != nil {
			return err
		}
		summary.EmbeddingsWritten += len(rows)
		if opts.Metrics != nil {
			opts.Metrics.EmbeddingsWritten.Add(float64(len(rows)))
		}
		pendingJobs = nil
		return nil
	}

	for {
		raw, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return summary, err
		}

		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return summary, errs.Parse(path, "malformed ndjson record", err)
		}

		switch probe.Type {
		case "meta":
			var meta render.MetaRecord
			if err := json.Unmarshal(raw, &meta); err != nil {
				return summary, errs.Parse(path, "malformed meta record", err)
			}
			sawAnyMeta = true
			if opts.Since != nil {
				createdAt, parseErr := time.Parse(time.RFC3339, meta.CreatedAt)
				if parseErr == nil && createdAt.Before(*opts.Since) {
					haveConv = false
					continue
				}
			}
			if opts.Project != "" && meta.Project != opts.Project {
				haveConv = false
				continue
			}
			if !opts.DryRun {
				createdAt, _ := time.Parse(time.RFC3339, meta.CreatedAt)
				if err := c.store.UpsertConversation(ctx, vectorstore.ConversationRow{
					ConvID:    meta.ConvID,
					Title:     meta.Title,
					CreatedAt: createdAt,
					Markers:   meta.Markers,
				}); err != nil {
					return summary, err
				}
			}
			currentConv = meta.ConvID
			currentProject = meta.Project
			haveConv = true
			summary.ConversationsSeen++

		case "message":
			if !haveConv {
				if sawAnyMeta {
					// belongs to a conversation excluded by --since/--project
					continue
				}
				return summary, errs.Input(path, "message record with no preceding meta record", nil)
			}
			var m render.MessageRecord
			if err := json.Unmarshal(raw, &m); err != nil {
				return summary, errs.Parse(path, "malformed message record", err)
			}
			summary.MessagesSeen++

			var ts *time.Time
			if m.Timestamp != "" {
				if t, err := time.Parse(time.RFC3339, m.Timestamp); err == nil {
					ts = &t
				}
			}
			content := combineChannels(m.Channels)

			key := fmt.Sprintf("%s#%d", currentConv, m.Index)
			if existing != nil && existing[key] {
				continue
			}

			messageBatch = append(messageBatch, vectorstore.MessageRow{
				ConvID:    currentConv,
				Index:     m.Index,
				Role:      m.Role,
				Timestamp: ts,
				Content:   content,
				Project:   currentProject,
				Markers:   m.Markers,
			})

			if content == "" {
				summary.ChunksSkippedEmpty++
			} else {
				chunks := c.chunk.Chunk(content)
				for ci, chunkText := range chunks {
					pendingJobs = append(pendingJobs, pendingJob{
						convID:     currentConv,
						msgIndex:   m.Index,
						chunkIndex: ci,
						chunkCount: len(chunks),
						text:       chunkText,
					})
				}
			}

			if len(pendingJobs) >= batchSize || len(messageBatch) >= batchSize {
				if err := flush(); err != nil {
					return summary, err
				}
			}

		default:
			c.log.Warn("skipping unrecognized record type", "type", probe.Type, "path", path)
		}
	}

	if err := flush(); err != nil {
		return summary, err
	}
	return summary, nil
}

func combineChannels(channels []render.ChannelRecord) string {
	var out string
	for i, ch := range channels {
		if i > 0 {
			out += "\n"
		}
		out += ch.Text
	}
	return out
}
