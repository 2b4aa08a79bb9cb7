package service

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/Harshitk-cp/reflex/internal/domain"
	"github.com/Harshitk-cp/reflex/internal/embedding"
	"github.com/Harshitk-cp/reflex/internal/llm"
	"github.com/Harshitk-cp/reflex/internal/store"
	"github.com/Harshitk-cp/reflex/internal/term"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	engine   *Engine
	thoughts *store.ThoughtStore
	rules    *store.RuleStore
	llm      *llm.MockClient
	memory   *MemoryService
	vectors  *store.InMemoryVectorStore
}

func newTestEnv(t *testing.T, cfg EngineConfig) *testEnv {
	t.Helper()
	thoughts := store.NewThoughtStore()
	rules := store.NewRuleStore()
	mockLLM := llm.NewMockClient()
	vectors := store.NewInMemoryVectorStore()
	mem := NewMemoryService(embedding.NewMockClient(), vectors, zap.NewNop())

	e := NewEngine(cfg, thoughts, rules, mockLLM, mem, zap.NewNop())
	e.SetRand(rand.New(rand.NewSource(42)))
	t.Cleanup(e.Close)

	return &testEnv{engine: e, thoughts: thoughts, rules: rules, llm: mockLLM, memory: mem, vectors: vectors}
}

func (env *testEnv) addRule(t *testing.T, pattern, action string, priority float64) domain.Rule {
	t.Helper()
	r, err := env.engine.AddRule(domain.NewRule(term.MustParse(pattern), term.MustParse(action), priority, ""))
	require.NoError(t, err)
	return r
}

func (env *testEnv) addThought(t *testing.T, typ domain.ThoughtType, content string) domain.Thought {
	t.Helper()
	th, err := env.engine.AddThought(domain.NewThought(typ, term.MustParse(content)))
	require.NoError(t, err)
	return th
}

func (env *testEnv) get(t *testing.T, id string) domain.Thought {
	t.Helper()
	th, ok := env.thoughts.Get(id)
	require.True(t, ok, "thought %s missing", id)
	return th
}

// stepUntilIdle steps until nothing is dispatched, with a safety bound.
func (env *testEnv) stepUntilIdle(t *testing.T, max int) int {
	t.Helper()
	total := 0
	for i := 0; i < max; i++ {
		n := env.engine.Step(context.Background())
		if n == 0 {
			return total
		}
		total += n
	}
	t.Fatalf("engine still busy after %d steps", max)
	return total
}

func (env *testEnv) children(parentID string, typ domain.ThoughtType) []domain.Thought {
	return env.thoughts.Filter(func(th domain.Thought) bool {
		return th.Metadata.ParentID == parentID && (typ == "" || th.Type == typ)
	})
}

// memorySnapshots is an in-memory domain.SnapshotStore.
type memorySnapshots struct {
	mu    sync.Mutex
	data  []byte
	saves int
	err   error
}

func (m *memorySnapshots) Save(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data = append([]byte(nil), data...)
	m.saves++
	return nil
}

func (m *memorySnapshots) Load(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), m.data...), nil
}

func (m *memorySnapshots) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
