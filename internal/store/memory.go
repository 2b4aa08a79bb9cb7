package store

import (
	"context"
	"fmt"

	"github.com/Harshitk-cp/reflex/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// VectorMemoryStore keeps long-term memory entries in Postgres using the
// pgvector extension.
type VectorMemoryStore struct {
	db *pgxpool.Pool
}

func NewVectorMemoryStore(db *pgxpool.Pool) *VectorMemoryStore {
	return &VectorMemoryStore{db: db}
}

// EnsureSchema creates the vector extension and the memories table if they
// do not exist yet.
func (s *VectorMemoryStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS reflex_memories (
			id         TEXT PRIMARY KEY,
			content    TEXT NOT NULL,
			metadata   JSONB NOT NULL DEFAULT '{}',
			embedding  vector,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure memory schema: %w", err)
		}
	}
	return nil
}

func (s *VectorMemoryStore) Add(ctx context.Context, entry domain.MemoryEntry, embedding []float32) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]string{}
	}

	var vec *pgvector.Vector
	if len(embedding) > 0 {
		v := pgvector.NewVector(embedding)
		vec = &v
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO reflex_memories (id, content, metadata, embedding)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding`,
		entry.ID, entry.Content, entry.Metadata, vec,
	)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

func (s *VectorMemoryStore) Search(ctx context.Context, embedding []float32, k int) ([]domain.MemorySearchResult, error) {
	if k <= 0 {
		k = 5
	}

	vec := pgvector.NewVector(embedding)

	rows, err := s.db.Query(ctx,
		`SELECT content, metadata, 1 - (embedding <=> $1) AS score
		 FROM reflex_memories
		 WHERE embedding IS NOT NULL
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		vec, k,
	)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var results []domain.MemorySearchResult
	for rows.Next() {
		var r domain.MemorySearchResult
		var score float64
		if err := rows.Scan(&r.Content, &r.Metadata, &score); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		r.Score = float32(score)
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search rows: %w", err)
	}

	return results, nil
}

// Ping verifies the database connection.
func (s *VectorMemoryStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
