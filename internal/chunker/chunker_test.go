package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateRejectsOverlapTooLarge(t *testing.T) {
	cfg := Config{ChunkSize: 100, ChunkOverlap: 100, MaxTokensHardLimit: 200, EncodingName: "cl100k_base"}
	require.Error(t, cfg.Validate())
}

func TestChunkShortTextUnchanged(t *testing.T) {
	c, err := New(DefaultConfig(), nil)
	require.NoError(t, err)

	text := "hello world"
	got := c.Chunk(text)
	require.Len(t, got, 1)
	require.Equal(t, text, got[0])
}

func TestChunkLongTextOverlaps(t *testing.T) {
	cfg := DefaultConfig()
	c, err := New(cfg, nil)
	require.NoError(t, err)

	text := strings.Repeat("word ", 9000)
	chunks := c.Chunk(text)
	require.GreaterOrEqual(t, len(chunks), 2, "expected multiple chunks")

	for _, ch := range chunks {
		require.LessOrEqual(t, c.CountTokens(ch), cfg.ChunkSize, "chunk exceeds chunk size")
	}

	for i := 1; i < len(chunks); i++ {
		prev := c.enc.Encode(chunks[i-1], nil, nil)
		cur := c.enc.Encode(chunks[i], nil, nil)
		require.Equal(t, prev[len(prev)-cfg.ChunkOverlap:], cur[:cfg.ChunkOverlap], "consecutive chunks do not overlap")
	}
}
