package pgvector

import (
	"context"
	"os"
	"testing"
	"time"

	"convsplit/internal/vectorstore"
)

// TestStoreRoundTrip exercises the full upsert/query path against a real
// Postgres+pgvector instance. It is skipped unless DATABASE_URL is set, the
// same gating pattern as the teacher's own integration tests.
func TestStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping pgvector integration test")
	}

	s, err := New(Config{DSN: dsn, Dimension: 3, RunMigrations: true})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ctx := context.Background()
	created := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	if err := s.UpsertConversation(ctx, vectorstore.ConversationRow{
		ConvID: "test-conv", Title: "Test", CreatedAt: created,
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.UpsertMessages(ctx, []vectorstore.MessageRow{
		{ConvID: "test-conv", Index: 0, Role: "human", Content: "hello"},
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.UpsertEmbeddings(ctx, []vectorstore.EmbeddingRow{
		{MessageConvID: "test-conv", MessageIndex: 0, ChunkIndex: 0, ChunkCount: 1, ChunkText: "hello", Model: "test", Vector: []float32{0.1, 0.2, 0.3}},
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.EnsureVectorIndex(ctx); err != nil {
		t.Fatal(err)
	}

	results, err := s.Query(ctx, []float32{0.1, 0.2, 0.3}, 5, vectorstore.QueryFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
}

func TestEncodeEmbedding(t *testing.T) {
	vec := []float32{0.1, -0.2, 3.5}
	enc := encodeEmbedding(vec)
	if enc != "[0.1,-0.2,3.5]" {
		t.Fatalf("got %q", enc)
	}
}
