package embedding

import (
	"container/list"
	"context"
	"sync"

	"github.com/Harshitk-cp/reflex/internal/domain"
	"golang.org/x/sync/singleflight"
)

const DefaultCacheSize = 512

// CachedClient remembers recent embeddings by normalized text. The fallback
// pipeline searches memory with the same thought text on every retry, so
// repeats are common. Concurrent requests for one text share a single call.
type CachedClient struct {
	next domain.EmbeddingClient
	size int

	mu    sync.Mutex
	order *list.List
	items map[string]*list.Element

	group singleflight.Group
}

type cacheEntry struct {
	key string
	vec []float32
}

func NewCachedClient(next domain.EmbeddingClient, size int) *CachedClient {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &CachedClient{
		next:  next,
		size:  size,
		order: list.New(),
		items: make(map[string]*list.Element),
	}
}

func (c *CachedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	key := normalizeInput(text)
	if vec, ok := c.get(key); ok {
		return vec, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if vec, ok := c.get(key); ok {
			return vec, nil
		}
		vec, err := c.next.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		c.put(key, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return copyVec(v.([]float32)), nil
}

// Len reports how many embeddings are cached.
func (c *CachedClient) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *CachedClient) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return copyVec(el.Value.(*cacheEntry).vec), true
}

func (c *CachedClient) put(key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		el.Value.(*cacheEntry).vec = vec
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&cacheEntry{key: key, vec: vec})
	for c.order.Len() > c.size {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

func copyVec(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
