// Package pgstore keeps chunks in Postgres with the pgvector extension.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"alsrag/internal/domain"
)

// Store implements port.DocumentStore on a site_pages-style table and its
// match_<table> similarity function.
type Store struct {
	db        *sql.DB
	table     string
	match     string
	dimension int
	logger    *zap.Logger
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn, table string, dimension int, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if table == "" {
		table = "site_pages"
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return &Store{
		db:        db,
		table:     pq.QuoteIdentifier(table),
		match:     pq.QuoteIdentifier("match_" + table),
		dimension: dimension,
		logger:    logger,
	}, nil
}

// EnsureSchema creates the extension, table, indexes and match function if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.table, s.match, s.dimension) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	s.logger.Info("postgres schema ready", zap.String("table", s.table))
	return nil
}

func schemaStatements(table, match string, dimension int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id uuid PRIMARY KEY,
	url varchar NOT NULL,
	chunk_number integer NOT NULL,
	title varchar NOT NULL,
	summary varchar NOT NULL,
	content text NOT NULL,
	metadata jsonb NOT NULL DEFAULT '{}'::jsonb,
	embedding vector(%d),
	created_at timestamptz NOT NULL DEFAULT timezone('utc', now())
)`, table, dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING ivfflat (embedding vector_cosine_ops)`,
			pq.QuoteIdentifier(unquote(table)+"_embedding_idx"), table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING gin (metadata)`,
			pq.QuoteIdentifier(unquote(table)+"_metadata_idx"), table),
		fmt.Sprintf(`CREATE OR REPLACE FUNCTION %s (
	query_embedding vector(%d),
	match_count int DEFAULT 10,
	filter jsonb DEFAULT '{}'::jsonb
) RETURNS TABLE (
	id uuid,
	url varchar,
	chunk_number integer,
	title varchar,
	summary varchar,
	content text,
	metadata jsonb,
	similarity float
) LANGUAGE plpgsql AS $$
BEGIN
	RETURN QUERY
	SELECT t.id, t.url, t.chunk_number, t.title, t.summary, t.content, t.metadata,
		1 - (t.embedding <=> query_embedding) AS similarity
	FROM %s t
	WHERE t.metadata @> filter
	ORDER BY t.embedding <=> query_embedding
	LIMIT match_count;
END;
$$`, match, dimension, table),
	}
}

func unquote(ident string) string {
	if len(ident) >= 2 && ident[0] == '"' && ident[len(ident)-1] == '"' {
		return ident[1 : len(ident)-1]
	}
	return ident
}

// filterJSON renders a Filter as the jsonb containment argument.
func filterJSON(f domain.Filter) string {
	if f.Source == "" {
		return "{}"
	}
	data, _ := json.Marshal(map[string]string{"source": f.Source})
	return string(data)
}

func (s *Store) Insert(ctx context.Context, chunk domain.Chunk) error {
	if s.dimension > 0 && len(chunk.Embedding) != s.dimension {
		return fmt.Errorf("embedding dimension mismatch: expected %d, got %d", s.dimension, len(chunk.Embedding))
	}
	if chunk.ID == "" {
		chunk.ID = uuid.NewString()
	}
	meta, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, url, chunk_number, title, summary, content, metadata, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, s.table),
		chunk.ID, chunk.URL, chunk.ChunkNumber, chunk.Title, chunk.Summary, chunk.Content,
		string(meta), pgvector.NewVector(chunk.Embedding))
	if err != nil {
		return fmt.Errorf("failed to insert chunk %s#%d: %w", chunk.URL, chunk.ChunkNumber, err)
	}
	return nil
}

func (s *Store) SimilaritySearch(ctx context.Context, embedding []float32, k int, filter domain.Filter) ([]domain.ScoredChunk, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, url, chunk_number, title, summary, content, metadata, similarity
		 FROM %s($1, $2, $3::jsonb)`, s.match),
		pgvector.NewVector(embedding), k, filterJSON(filter))
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	defer rows.Close()

	var out []domain.ScoredChunk
	for rows.Next() {
		var sc domain.ScoredChunk
		var meta []byte
		if err := rows.Scan(&sc.Chunk.ID, &sc.Chunk.URL, &sc.Chunk.ChunkNumber, &sc.Chunk.Title,
			&sc.Chunk.Summary, &sc.Chunk.Content, &meta, &sc.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		if err := json.Unmarshal(meta, &sc.Chunk.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *Store) ListDistinctURLs(ctx context.Context, filter domain.Filter) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT DISTINCT url FROM %s WHERE metadata @> $1::jsonb ORDER BY url`, s.table),
		filterJSON(filter))
	if err != nil {
		return nil, fmt.Errorf("failed to list urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

func (s *Store) GetChunksByURL(ctx context.Context, url string, filter domain.Filter) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, url, chunk_number, title, summary, content, metadata, embedding
		 FROM %s WHERE url = $1 AND metadata @> $2::jsonb ORDER BY chunk_number`, s.table),
		url, filterJSON(filter))
	if err != nil {
		return nil, fmt.Errorf("failed to read chunks for %s: %w", url, err)
	}
	defer rows.Close()

	var out []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		var meta []byte
		var emb pgvector.Vector
		if err := rows.Scan(&c.ID, &c.URL, &c.ChunkNumber, &c.Title, &c.Summary, &c.Content, &meta, &emb); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		if err := json.Unmarshal(meta, &c.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
		c.Embedding = emb.Slice()
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) DeleteByURL(ctx context.Context, url string) (int, error) {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE url = $1`, s.table), url)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks for %s: %w", url, err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *Store) Count(ctx context.Context, filter domain.Filter) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT count(*) FROM %s WHERE metadata @> $1::jsonb`, s.table), filterJSON(filter)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
