// Package vectorstore defines the Vector Store Gateway's interface:
// idempotent upsert of conversations/messages/embeddings, index
// maintenance, and k-NN query, grounded on the teacher's
// internal/rag/store.DocumentStore interface but reshaped around this
// domain's conversation/message/embedding schema (spec.md §4.7).
package vectorstore

import (
	"context"
	"time"
)

// ConversationRow upserts into the conversations table.
type ConversationRow struct {
	ConvID    string
	Title     string
	CreatedAt time.Time
	Markers   []string
}

// MessageRow upserts into the messages table.
type MessageRow struct {
	ConvID    string
	Index     int
	Role      string
	Timestamp *time.Time
	Content   string
	Project   string
	Meeting   string
	Markers   []string
}

// EmbeddingRow upserts into the embeddings table. MessageConvID+MessageIndex
// identify the owning message (the natural key used to resolve the
// surrogate message_id FK at upsert time).
type EmbeddingRow struct {
	MessageConvID string
	MessageIndex  int
	ChunkIndex    int
	ChunkCount    int
	ChunkText     string
	Model         string
	Vector        []float32
}

// QueryFilter narrows a k-NN query.
type QueryFilter struct {
	Project string
	Since   *time.Time
}

// QueryResult is one k-NN match.
type QueryResult struct {
	ConvID     string
	MessageIdx int
	ChunkIndex int
	ChunkText  string
	Distance   float64
}

// Stats summarizes the store's contents.
type Stats struct {
	TotalConversations int64
	TotalMessages      int64
	TotalEmbeddings    int64
	Dimension          int
}

// Store is the Vector Store Gateway's contract.
type Store interface {
	// UpsertConversation idempotently inserts or updates one conversation.
	UpsertConversation(ctx context.Context, row ConversationRow) error

	// UpsertMessages idempotently inserts or updates a batch of messages.
	// Implementations MAY issue these concurrently (distinct primary keys).
	UpsertMessages(ctx context.Context, rows []MessageRow) error

	// UpsertEmbeddings idempotently inserts or updates a batch of
	// embeddings. Callers MUST have already flushed the owning messages.
	UpsertEmbeddings(ctx context.Context, rows []EmbeddingRow) error

	// ExistingMessageIDs returns the set of "conv_id#idx" keys already
	// present, for skip_existing filtering.
	ExistingMessageIDs(ctx context.Context) (map[string]bool, error)

	// EnsureVectorIndex drops and recreates the vector similarity index
	// sized to the current corpus (lists = max(10, total/1000)).
	EnsureVectorIndex(ctx context.Context) error

	// Query runs a k-NN search against a precomputed query vector.
	Query(ctx context.Context, vector []float32, k int, filter QueryFilter) ([]QueryResult, error)

	Stats(ctx context.Context) (Stats, error)

	Close() error
}
