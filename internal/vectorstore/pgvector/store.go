// Package pgvector implements the Vector Store Gateway against PostgreSQL
// with the pgvector extension, grounded on the teacher's
// internal/rag/store/pgvector store but reshaped around the
// conversations/messages/embeddings schema spec.md §4.7 names.
package pgvector

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"convsplit/internal/errs"
	"convsplit/internal/vectorstore"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements vectorstore.Store using pgvector.
type Store struct {
	db        *sql.DB
	dimension int
	ownsDB    bool
}

// Config contains the connection and pool settings for the store,
// matching spec.md §5's pool sizing (max 10, min 2, 30s acquire timeout).
type Config struct {
	DSN            string
	DB             *sql.DB
	Dimension      int
	MaxConnections int
	MinConnections int
	AcquireTimeout time.Duration
	RunMigrations  bool
}

// New opens (or reuses) a database connection and, unless disabled, applies
// pending migrations.
func New(cfg Config) (*Store, error) {
	if cfg.Dimension == 0 {
		cfg.Dimension = 1536
	}

	var db *sql.DB
	var ownsDB bool

	if cfg.DB != nil {
		db = cfg.DB
	} else if cfg.DSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, errs.Database(cfg.DSN, "cannot open database connection", err)
		}
		ownsDB = true

		if cfg.MaxConnections > 0 {
			db.SetMaxOpenConns(cfg.MaxConnections)
		}
		if cfg.MinConnections > 0 {
			db.SetMaxIdleConns(cfg.MinConnections)
		}

		timeout := cfg.AcquireTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, errs.Database(cfg.DSN, "cannot connect to database", err)
		}
	} else {
		return nil, errs.Validation("pgvector", "either DSN or DB must be provided", nil)
	}

	s := &Store{db: db, dimension: cfg.Dimension, ownsDB: ownsDB}

	if cfg.RunMigrations {
		if err := s.runMigrations(context.Background()); err != nil {
			if ownsDB {
				db.Close()
			}
			return nil, err
		}
	}

	return s, nil
}

var _ vectorstore.Store = (*Store)(nil)

func (s *Store) runMigrations(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS convsplit_schema_migrations (
			id TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return errs.Database("migrations", "create convsplit_schema_migrations", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return errs.Database("migrations", "load migrations", err)
	}

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.ID] {
			continue
		}
		if strings.TrimSpace(m.UpSQL) == "" {
			return errs.Database(m.ID, "missing up migration", nil)
		}

		// The embeddings column's vector dimension is fixed per store
		// (the embedding model's output width, known at construction),
		// not a schema constant, so it is substituted into the migration
		// at apply time rather than hardcoded in the .sql file.
		upSQL := strings.ReplaceAll(m.UpSQL, "__DIM__", strconv.Itoa(s.dimension))

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return errs.Database(m.ID, "begin migration transaction", err)
		}
		if _, err := tx.ExecContext(ctx, upSQL); err != nil {
			tx.Rollback()
			return errs.Database(m.ID, "apply migration", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO convsplit_schema_migrations (id) VALUES ($1)`, m.ID); err != nil {
			tx.Rollback()
			return errs.Database(m.ID, "record migration", err)
		}
		if err := tx.Commit(); err != nil {
			return errs.Database(m.ID, "commit migration", err)
		}
	}
	return nil
}

func (s *Store) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM convsplit_schema_migrations`)
	if err != nil {
		return nil, errs.Database("migrations", "query convsplit_schema_migrations", err)
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errs.Database("migrations", "scan convsplit_schema_migrations", err)
		}
		applied[id] = true
	}
	return applied, rows.Err()
}

// UpsertConversation idempotently inserts or updates one conversation row.
func (s *Store) UpsertConversation(ctx context.Context, row vectorstore.ConversationRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (conv_id, title, created_at, markers)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (conv_id) DO UPDATE SET
			title = EXCLUDED.title,
			created_at = EXCLUDED.created_at,
			markers = EXCLUDED.markers
	`, row.ConvID, row.Title, row.CreatedAt, pqStringArray(row.Markers))
	if err != nil {
		return errs.Database(row.ConvID, "upsert conversation", err)
	}
	return nil
}

// UpsertMessages issues one upsert per row concurrently, then joins all of
// them, per spec.md §5: message rows within a flush have distinct primary
// keys so concurrent writes are safe.
func (s *Store) UpsertMessages(ctx context.Context, rows []vectorstore.MessageRow) error {
	if len(rows) == 0 {
		return nil
	}
	var wg sync.WaitGroup
	errCh := make(chan error, len(rows))

	for _, row := range rows {
		wg.Add(1)
		go func(r vectorstore.MessageRow) {
			defer wg.Done()
			if err := s.upsertMessage(ctx, r); err != nil {
				errCh <- err
			}
		}(row)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		return err
	}
	return nil
}

func (s *Store) upsertMessage(ctx context.Context, row vectorstore.MessageRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, idx, role, timestamp, content, project, meeting, markers)
		VALUES ((SELECT id FROM conversations WHERE conv_id = $1), $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (conversation_id, idx) DO UPDATE SET
			role = EXCLUDED.role,
			timestamp = EXCLUDED.timestamp,
			content = EXCLUDED.content,
			project = EXCLUDED.project,
			meeting = EXCLUDED.meeting,
			markers = EXCLUDED.markers
	`, row.ConvID, row.Index, row.Role, row.Timestamp, row.Content, row.Project, row.Meeting, pqStringArray(row.Markers))
	if err != nil {
		return errs.Database(fmt.Sprintf("%s#%d", row.ConvID, row.Index), "upsert message", err)
	}
	return nil
}

// UpsertEmbeddings upserts a batch of embedding rows sequentially within a
// single transaction. Callers MUST have already flushed the owning
// messages (spec.md §4.6 step 5's FK-ordering rule).
func (s *Store) UpsertEmbeddings(ctx context.Context, rows []vectorstore.EmbeddingRow) error {
	if len(rows) == 0 {
		return nil
	}
	for i, row := range rows {
		if err := s.validateEmbedding(row.Vector); err != nil {
			return errs.Validation(fmt.Sprintf("%s#%d chunk %d", row.MessageConvID, row.MessageIndex, i), "invalid embedding", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Database("embeddings", "begin transaction", err)
	}
	defer tx.Rollback()

	for _, row := range rows {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO embeddings (message_id, chunk_index, chunk_count, chunk_text, model, dim, vector, updated_at)
			VALUES (
				(SELECT m.id FROM messages m JOIN conversations c ON c.id = m.conversation_id WHERE c.conv_id = $1 AND m.idx = $2),
				$3, $4, $5, $6, $7, $8, now()
			)
			ON CONFLICT (message_id, chunk_index) DO UPDATE SET
				chunk_count = EXCLUDED.chunk_count,
				chunk_text = EXCLUDED.chunk_text,
				model = EXCLUDED.model,
				dim = EXCLUDED.dim,
				vector = EXCLUDED.vector,
				updated_at = now()
		`, row.MessageConvID, row.MessageIndex, row.ChunkIndex, row.ChunkCount, row.ChunkText, row.Model, len(row.Vector), encodeEmbedding(row.Vector))
		if err != nil {
			return errs.Database(fmt.Sprintf("%s#%d chunk %d", row.MessageConvID, row.MessageIndex, row.ChunkIndex), "upsert embedding", err)
		}
	}
	return tx.Commit()
}

// ExistingMessageIDs returns every "conv_id#idx" key already present, for
// skip_existing filtering.
func (s *Store) ExistingMessageIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.conv_id, m.idx FROM messages m JOIN conversations c ON c.id = m.conversation_id
	`)
	if err != nil {
		return nil, errs.Database("messages", "query existing message ids", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var convID string
		var idx int
		if err := rows.Scan(&convID, &idx); err != nil {
			return nil, errs.Database("messages", "scan existing message ids", err)
		}
		out[fmt.Sprintf("%s#%d", convID, idx)] = true
	}
	return out, rows.Err()
}

// EnsureVectorIndex drops and recreates the IVFFlat index sized to
// lists = max(10, total_embeddings / 1000), per spec.md §4.7/§9.
func (s *Store) EnsureVectorIndex(ctx context.Context) error {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM embeddings`).Scan(&total); err != nil {
		return errs.Database("embeddings", "count embeddings", err)
	}

	lists := int(total / 1000)
	if lists < 10 {
		lists = 10
	}

	if _, err := s.db.ExecContext(ctx, `DROP INDEX IF EXISTS embeddings_vector_idx`); err != nil {
		return errs.Database("embeddings_vector_idx", "drop vector index", err)
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE INDEX embeddings_vector_idx ON embeddings USING ivfflat (vector vector_l2_ops) WITH (lists = %d)`, lists))
	if err != nil {
		return errs.Database("embeddings_vector_idx", "create vector index", err)
	}
	return nil
}

// Query runs a k-NN search using L2 distance, with optional project and
// since filters.
func (s *Store) Query(ctx context.Context, vec []float32, k int, filter vectorstore.QueryFilter) ([]vectorstore.QueryResult, error) {
	var b strings.Builder
	args := []any{encodeEmbedding(vec)}
	b.WriteString(`
		SELECT c.conv_id, m.idx, e.chunk_index, e.chunk_text, e.vector <-> $1::vector AS distance
		FROM embeddings e
		JOIN messages m ON m.id = e.message_id
		JOIN conversations c ON c.id = m.conversation_id
		WHERE 1=1
	`)
	if filter.Project != "" {
		args = append(args, filter.Project)
		fmt.Fprintf(&b, " AND m.project = $%d", len(args))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		fmt.Fprintf(&b, " AND m.timestamp >= $%d", len(args))
	}
	b.WriteString(" ORDER BY e.vector <-> $1::vector ASC")
	if k > 0 {
		args = append(args, k)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, errs.Database("query", "k-NN query", err)
	}
	defer rows.Close()

	var out []vectorstore.QueryResult
	for rows.Next() {
		var r vectorstore.QueryResult
		if err := rows.Scan(&r.ConvID, &r.MessageIdx, &r.ChunkIndex, &r.ChunkText, &r.Distance); err != nil {
			return nil, errs.Database("query", "scan k-NN result", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats summarizes the store's contents.
func (s *Store) Stats(ctx context.Context) (vectorstore.Stats, error) {
	var stats vectorstore.Stats
	stats.Dimension = s.dimension
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM conversations`).Scan(&stats.TotalConversations); err != nil {
		return stats, errs.Database("conversations", "count conversations", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM messages`).Scan(&stats.TotalMessages); err != nil {
		return stats, errs.Database("messages", "count messages", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM embeddings`).Scan(&stats.TotalEmbeddings); err != nil {
		return stats, errs.Database("embeddings", "count embeddings", err)
	}
	return stats, nil
}

func (s *Store) Close() error {
	if s.ownsDB && s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) validateEmbedding(vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("embedding is empty")
	}
	if s.dimension > 0 && len(vec) != s.dimension {
		return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vec), s.dimension)
	}
	for _, v := range vec {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("embedding contains NaN or Inf")
		}
	}
	return nil
}

func encodeEmbedding(vec []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%g", f)
	}
	sb.WriteByte(']')
	return sb.String()
}

func pqStringArray(ss []string) string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, s := range ss {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('"')
		sb.WriteString(strings.ReplaceAll(s, `"`, `\"`))
		sb.WriteByte('"')
	}
	sb.WriteByte('}')
	return sb.String()
}

// Migration is one embedded, versioned schema change.
type Migration struct {
	ID      string
	UpSQL   string
	DownSQL string
}

func loadMigrations() ([]Migration, error) {
	paths, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, err
	}

	entries := map[string]*Migration{}
	for _, path := range paths {
		base := strings.TrimPrefix(path, "migrations/")
		var suffix string
		switch {
		case strings.HasSuffix(base, ".up.sql"):
			suffix = ".up.sql"
		case strings.HasSuffix(base, ".down.sql"):
			suffix = ".down.sql"
		default:
			continue
		}
		id := strings.TrimSuffix(base, suffix)
		entry := entries[id]
		if entry == nil {
			entry = &Migration{ID: id}
			entries[id] = entry
		}
		data, err := migrationsFS.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if suffix == ".up.sql" {
			entry.UpSQL = string(data)
		} else {
			entry.DownSQL = string(data)
		}
	}

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Migration, 0, len(ids))
	for _, id := range ids {
		out = append(out, *entries[id])
	}
	return out, nil
}
