// Package embedclient wraps the remote embedding service the Embedding
// Coordinator calls: batched text -> vector requests against OpenAI's
// /v1/embeddings endpoint, grounded on the teacher's
// internal/memory/embeddings/openai provider.
package embedclient

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"convsplit/internal/errs"
	"convsplit/internal/normalize"
)

// maxErrorBody is the spec's cap on truncated remote-error bodies.
const maxErrorBody = 500

// Client embeds a batch of texts against a single OpenAI-compatible model.
type Client struct {
	inner *openai.Client
	model string
}

// Config names the model and (optionally) a non-default base URL, matching
// the teacher provider's Config shape.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// New constructs a Client.
func New(cfg Config) *Client {
	oaCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaCfg.BaseURL = cfg.BaseURL
	}
	return &Client{inner: openai.NewClientWithConfig(oaCfg), model: cfg.Model}
}

// Dimension returns the embedding vector width for the configured model.
func (c *Client) Dimension() int {
	switch c.model {
	case "text-embedding-3-large":
		return 3072
	default:
		return 1536
	}
}

// MaxBatchSize reports the service's per-request input limit, independent
// of the caller's own batch_size cap. EmbedBatch does not split or cap its
// input against it.
func (c *Client) MaxBatchSize() int { return 2048 }

// EmbedBatch computes one vector per input text, in input order. It never
// silently pads: if the remote service returns fewer vectors than
// requested, it fails the whole batch.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.inner.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		body := normalize.SmartTruncate(err.Error(), maxErrorBody)
		return nil, errs.Remote(c.model, fmt.Sprintf("embedding request failed: %s", body), err)
	}

	out := make([][]float32, len(texts))
	filled := make([]bool, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			continue
		}
		out[d.Index] = d.Embedding
		filled[d.Index] = true
	}
	for i, ok := range filled {
		if !ok {
			return nil, errs.Remote(c.model, fmt.Sprintf("missing embedding for input index %d", i), nil)
		}
	}
	return out, nil
}
