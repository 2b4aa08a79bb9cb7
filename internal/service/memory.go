package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Harshitk-cp/reflex/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultSearchK = 5

// MemoryService is long-term memory: text is embedded and kept in a vector
// store, and searches return the nearest entries.
type MemoryService struct {
	embeddingClient domain.EmbeddingClient
	vectorStore     domain.VectorStore
	logger          *zap.Logger
	now             func() time.Time
}

func NewMemoryService(ec domain.EmbeddingClient, vs domain.VectorStore, logger *zap.Logger) *MemoryService {
	return &MemoryService{
		embeddingClient: ec,
		vectorStore:     vs,
		logger:          logger,
		now:             time.Now,
	}
}

func (s *MemoryService) Add(ctx context.Context, entry domain.MemoryEntry) error {
	entry.Content = strings.TrimSpace(entry.Content)
	if entry.Content == "" {
		return ErrMemoryContentEmpty
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}

	emb, err := s.embeddingClient.Embed(ctx, entry.Content)
	if err != nil {
		return fmt.Errorf("embed memory: %w", err)
	}

	if err := s.vectorStore.Add(ctx, entry, emb); err != nil {
		return fmt.Errorf("store memory: %w", err)
	}

	s.logger.Debug("memory added", zap.String("memory_id", entry.ID), zap.Int("dims", len(emb)))
	return nil
}

// Search returns up to k entries closest to query. k <= 0 uses the default.
func (s *MemoryService) Search(ctx context.Context, query string, k int) ([]domain.MemorySearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrQueryEmpty
	}
	if k <= 0 {
		k = defaultSearchK
	}

	emb, err := s.embeddingClient.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.vectorStore.Search(ctx, emb, k)
	if err != nil {
		return nil, fmt.Errorf("search memory: %w", err)
	}
	return results, nil
}
