package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Postgres is the pgvector-backed store driver. All collections share the
// passages table; the collection column scopes both writes and searches.
// The schema is managed by the embedded migrations in the db package.
type Postgres struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	dim      int
	logger   *slog.Logger
}

// NewPostgres creates a Postgres store over an existing connection pool.
// dim is the expected embedding dimension; embeddings of a different length
// are rejected before they reach the database.
func NewPostgres(pool *pgxpool.Pool, embedder ai.Embedder, dim int, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{
		pool:     pool,
		embedder: embedder,
		dim:      dim,
		logger:   logger,
	}
}

// Add embeds and persists passages into the named collection. All passages
// are embedded in one provider call, then inserted row by row inside a
// transaction so a failing source leaves no partial collection behind.
func (s *Postgres) Add(ctx context.Context, collection string, passages []Passage) error {
	if len(passages) == 0 {
		return nil
	}

	input := make([]*ai.Document, len(passages))
	for i, p := range passages {
		input[i] = ai.DocumentFromText(p.Content, nil)
	}

	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{Input: input})
	if err != nil {
		return fmt.Errorf("embedding %d passages: %w", len(passages), err)
	}
	if len(resp.Embeddings) != len(passages) {
		return fmt.Errorf("embedder returned %d embeddings for %d passages", len(resp.Embeddings), len(passages))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && rbErr.Error() != "tx is closed" {
			s.logger.Warn("rolling back passage insert", "error", rbErr)
		}
	}()

	const insert = `
		INSERT INTO passages (collection, source, row_idx, content, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (collection, source, row_idx)
		DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding`

	for i, p := range passages {
		emb := resp.Embeddings[i].Embedding
		if len(emb) != s.dim {
			return fmt.Errorf("embedding dimension %d does not match schema dimension %d", len(emb), s.dim)
		}
		vec := pgvector.NewVector(emb)
		if _, err := tx.Exec(ctx, insert, collection, p.Source, p.Row, p.Content, &vec); err != nil {
			return fmt.Errorf("inserting passage %s:%d: %w", p.Source, p.Row, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing passage insert: %w", err)
	}

	s.logger.Debug("added documents", "collection", collection, "count", len(passages))
	return nil
}

// Search returns up to topK passages from the named collection, ordered by
// cosine distance to the query embedding.
func (s *Postgres) Search(ctx context.Context, collection, query string, topK int) ([]Passage, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(query, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned for query")
	}

	vec := pgvector.NewVector(resp.Embeddings[0].Embedding)

	const search = `
		SELECT source, row_idx, content
		FROM passages
		WHERE collection = $1
		ORDER BY embedding <=> $2
		LIMIT $3`

	rows, err := s.pool.Query(ctx, search, collection, &vec, topK)
	if err != nil {
		return nil, fmt.Errorf("searching collection %q: %w", collection, err)
	}
	defer rows.Close()

	var passages []Passage
	for rows.Next() {
		p := Passage{Collection: collection}
		if err := rows.Scan(&p.Source, &p.Row, &p.Content); err != nil {
			return nil, fmt.Errorf("scanning passage row: %w", err)
		}
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading passage rows: %w", err)
	}

	return passages, nil
}

// Close releases the connection pool.
func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
