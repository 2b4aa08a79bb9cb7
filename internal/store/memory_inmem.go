package store

import (
	"context"
	"maps"
	"math"
	"sort"
	"sync"

	"github.com/Harshitk-cp/reflex/internal/domain"
	"github.com/google/uuid"
)

// InMemoryVectorStore is a brute-force cosine similarity store used when no
// database is configured, and in tests.
type InMemoryVectorStore struct {
	mu      sync.RWMutex
	entries map[string]vectorEntry
}

type vectorEntry struct {
	entry     domain.MemoryEntry
	embedding []float32
}

func NewInMemoryVectorStore() *InMemoryVectorStore {
	return &InMemoryVectorStore{entries: make(map[string]vectorEntry)}
}

func (s *InMemoryVectorStore) Add(ctx context.Context, entry domain.MemoryEntry, embedding []float32) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.Metadata = maps.Clone(entry.Metadata)
	emb := make([]float32, len(embedding))
	copy(emb, embedding)

	s.mu.Lock()
	s.entries[entry.ID] = vectorEntry{entry: entry, embedding: emb}
	s.mu.Unlock()
	return nil
}

func (s *InMemoryVectorStore) Search(ctx context.Context, embedding []float32, k int) ([]domain.MemorySearchResult, error) {
	if k <= 0 {
		k = 5
	}

	s.mu.RLock()
	results := make([]domain.MemorySearchResult, 0, len(s.entries))
	for _, e := range s.entries {
		if len(e.embedding) == 0 {
			continue
		}
		results = append(results, domain.MemorySearchResult{
			Content:  e.entry.Content,
			Score:    cosineSimilarity(embedding, e.embedding),
			Metadata: maps.Clone(e.entry.Metadata),
		})
	}
	s.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Content < results[j].Content
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Len returns the number of stored entries.
func (s *InMemoryVectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func cosineSimilarity(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
