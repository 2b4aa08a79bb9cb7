package domain

import (
	"context"
	"time"
)

// LLMClient is the text generation capability.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// MemoryEntry is one item of long-term memory.
type MemoryEntry struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type MemorySearchResult struct {
	Content  string            `json:"content"`
	Score    float32           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// VectorStore persists memory entries alongside their embeddings and
// answers nearest-neighbour queries.
type VectorStore interface {
	Add(ctx context.Context, entry MemoryEntry, embedding []float32) error
	Search(ctx context.Context, embedding []float32, k int) ([]MemorySearchResult, error)
}

// SnapshotStore keeps the most recent serialized engine snapshot.
type SnapshotStore interface {
	Save(ctx context.Context, snapshot []byte) error
	Load(ctx context.Context) ([]byte, error)
}
