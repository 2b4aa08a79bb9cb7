package store

import (
	"context"
	"testing"
	"time"

	"github.com/Harshitk-cp/reflex/internal/domain"
	"github.com/Harshitk-cp/reflex/internal/term"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_RoundTripNormalizes(t *testing.T) {
	prompt := domain.NewThought(domain.ThoughtUserPrompt, term.NewAtom("continue?"))

	waitingOnPrompt := domain.NewThought(domain.ThoughtGoal, term.NewAtom("plan"))
	waitingOnPrompt.Status = domain.StatusWaiting
	waitingOnPrompt.Metadata.WaitingFor = &domain.WaitCondition{PromptID: prompt.ID}

	orphaned := domain.NewThought(domain.ThoughtGoal, term.NewAtom("orphan"))
	orphaned.Status = domain.StatusWaiting
	orphaned.Metadata.WaitingFor = &domain.WaitCondition{PromptID: "gone"}

	until := time.Now().Add(time.Hour).UTC()
	timed := domain.NewThought(domain.ThoughtStrategy, term.NewAtom("later"))
	timed.Status = domain.StatusWaiting
	timed.Metadata.WaitingFor = &domain.WaitCondition{Until: &until}

	active := domain.NewThought(domain.ThoughtInput, term.NewStruct("hello", term.NewAtom("world")))
	active.Status = domain.StatusActive

	rule := domain.NewRule(term.MustParse("hello(X)"), term.MustParse("log(X)"), 2, "echo")

	data, err := EncodeSnapshot([]domain.Thought{prompt, waitingOnPrompt, orphaned, timed, active}, []domain.Rule{rule})
	require.NoError(t, err)

	thoughts, rules, err := DecodeSnapshot(data)
	require.NoError(t, err)
	require.Len(t, thoughts, 5)
	require.Len(t, rules, 1)

	byID := map[string]domain.Thought{}
	for _, th := range thoughts {
		byID[th.ID] = th
	}

	assert.Equal(t, domain.StatusPending, byID[prompt.ID].Status)
	assert.Equal(t, domain.StatusWaiting, byID[waitingOnPrompt.ID].Status)
	assert.Equal(t, domain.StatusPending, byID[orphaned.ID].Status)
	assert.Nil(t, byID[orphaned.ID].Metadata.WaitingFor)
	assert.Equal(t, domain.StatusWaiting, byID[timed.ID].Status)
	assert.Equal(t, domain.StatusPending, byID[active.ID].Status)
	assert.True(t, term.Equal(active.Content, byID[active.ID].Content))

	assert.True(t, term.Equal(rule.Pattern, rules[0].Pattern))
	assert.True(t, term.Equal(rule.Action, rules[0].Action))
}

func TestSnapshot_RejectsGarbage(t *testing.T) {
	_, _, err := DecodeSnapshot([]byte("not json"))
	assert.Error(t, err)

	_, _, err = DecodeSnapshot([]byte(`{"version":99}`))
	assert.Error(t, err)

	_, _, err = DecodeSnapshot([]byte(`{"version":1,"thoughts":[{"id":"x","type":"INPUT","status":"PENDING"}]}`))
	assert.Error(t, err, "thought without content")
}

func TestBadgerSnapshotStore_SaveLoad(t *testing.T) {
	s, err := OpenBadgerSnapshotStore(InMemoryBadgerConfig())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()

	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, []byte("first")))
	require.NoError(t, s.Save(ctx, []byte("second")))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")
}

func TestBadgerSnapshotStore_Persistent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cfg := DefaultBadgerConfig(dir)
	cfg.GCInterval = 0
	s, err := OpenBadgerSnapshotStore(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, []byte("durable")))
	require.NoError(t, s.Close())

	reopened, err := OpenBadgerSnapshotStore(cfg)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "durable", string(got))
}

func TestOpenBadgerSnapshotStore_RequiresPath(t *testing.T) {
	_, err := OpenBadgerSnapshotStore(BadgerConfig{})
	assert.Error(t, err)
}

func TestInMemoryVectorStore_Search(t *testing.T) {
	s := NewInMemoryVectorStore()
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, domain.MemoryEntry{Content: "north"}, []float32{0, 1}))
	require.NoError(t, s.Add(ctx, domain.MemoryEntry{Content: "east"}, []float32{1, 0}))
	require.NoError(t, s.Add(ctx, domain.MemoryEntry{Content: "north-east"}, []float32{1, 1}))
	assert.Equal(t, 3, s.Len())

	res, err := s.Search(ctx, []float32{0, 2}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "north", res[0].Content)
	assert.InDelta(t, 1.0, res[0].Score, 1e-6)
	assert.Equal(t, "north-east", res[1].Content)
}
