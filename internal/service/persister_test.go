package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Harshitk-cp/reflex/internal/domain"
	"github.com/Harshitk-cp/reflex/internal/store"
	"github.com/Harshitk-cp/reflex/internal/term"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPersister_LoadWithoutSnapshot(t *testing.T) {
	p := NewPersister(store.NewThoughtStore(), store.NewRuleStore(), &memorySnapshots{}, zap.NewNop())

	nThoughts, nRules, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, nThoughts)
	assert.Zero(t, nRules)
}

func TestPersister_RoundTripThroughBadger(t *testing.T) {
	snapshots, err := store.OpenBadgerSnapshotStore(store.InMemoryBadgerConfig())
	require.NoError(t, err)
	defer snapshots.Close()

	thoughts := store.NewThoughtStore()
	rules := store.NewRuleStore()

	active := domain.NewThought(domain.ThoughtGoal, term.MustParse("ship(v2)"))
	active.Status = domain.StatusActive
	active = thoughts.Add(active)
	done := domain.NewThought(domain.ThoughtLog, term.NewAtom("ok"))
	done.Status = domain.StatusDone
	done = thoughts.Add(done)

	r := domain.NewRule(term.MustParse("ship(X)"), term.MustParse("log(X)"), 2, "")
	r.Belief = domain.Belief{Pos: 4, Neg: 1}
	r = rules.Add(r)

	require.NoError(t, NewPersister(thoughts, rules, snapshots, zap.NewNop()).Flush(context.Background()))

	restoredThoughts := store.NewThoughtStore()
	restoredRules := store.NewRuleStore()
	p := NewPersister(restoredThoughts, restoredRules, snapshots, zap.NewNop())

	nThoughts, nRules, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, nThoughts)
	assert.Equal(t, 1, nRules)

	got, ok := restoredThoughts.Get(active.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusPending, got.Status, "active thoughts restart as pending")
	assert.Equal(t, "ship(v2)", got.Content.String())

	got, _ = restoredThoughts.Get(done.ID)
	assert.Equal(t, domain.StatusDone, got.Status)

	gotRule, ok := restoredRules.Get(r.ID)
	require.True(t, ok)
	assert.Equal(t, r.Belief, gotRule.Belief)
}

func TestPersister_FlushError(t *testing.T) {
	snapshots := &memorySnapshots{err: errors.New("disk full")}
	p := NewPersister(store.NewThoughtStore(), store.NewRuleStore(), snapshots, zap.NewNop())

	err := p.Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestPersister_LoadCorruptSnapshot(t *testing.T) {
	snapshots := &memorySnapshots{data: []byte("{broken")}
	p := NewPersister(store.NewThoughtStore(), store.NewRuleStore(), snapshots, zap.NewNop())

	_, _, err := p.Load(context.Background())
	assert.Error(t, err)
}

func TestPersister_DebouncedSaves(t *testing.T) {
	thoughts := store.NewThoughtStore()
	rules := store.NewRuleStore()
	snapshots := &memorySnapshots{}

	p := NewPersister(thoughts, rules, snapshots, zap.NewNop())
	p.SetDebounce(20 * time.Millisecond)
	p.Start()
	p.Start()

	for i := 0; i < 10; i++ {
		thoughts.Add(domain.NewThought(domain.ThoughtInput, term.NewAtom("burst")))
	}

	require.Eventually(t, func() bool { return snapshots.saveCount() >= 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Less(t, snapshots.saveCount(), 10, "a burst is coalesced")

	rules.Add(domain.NewRule(term.MustParse("a"), term.MustParse("log(a)"), 1, ""))
	before := snapshots.saveCount()
	require.NoError(t, p.Stop())
	assert.Greater(t, snapshots.saveCount(), before, "stop writes a final snapshot")
	require.NoError(t, p.Stop())

	restored := store.NewThoughtStore()
	restoredRules := store.NewRuleStore()
	nThoughts, nRules, err := NewPersister(restored, restoredRules, snapshots, zap.NewNop()).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, nThoughts)
	assert.Equal(t, 1, nRules)
}

func TestPersister_DoesNotDrainDeltas(t *testing.T) {
	thoughts := store.NewThoughtStore()
	th := thoughts.Add(domain.NewThought(domain.ThoughtInput, term.NewAtom("x")))

	p := NewPersister(thoughts, store.NewRuleStore(), &memorySnapshots{}, zap.NewNop())
	require.NoError(t, p.Flush(context.Background()))

	d := thoughts.GetDelta()
	require.Len(t, d.Changed, 1)
	assert.Equal(t, th.ID, d.Changed[0].ID)
}
