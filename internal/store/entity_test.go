package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Harshitk-cp/reflex/internal/domain"
	"github.com/Harshitk-cp/reflex/internal/term"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newThought(id string) domain.Thought {
	th := domain.NewThought(domain.ThoughtInput, term.NewAtom(id))
	th.ID = id
	th.Metadata.RootID = id
	return th
}

func TestEntityStore_AddPreservesCreated(t *testing.T) {
	s := NewThoughtStore()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return clock })

	first := s.Add(newThought("t-1"))
	assert.Equal(t, clock, first.Metadata.Created)
	assert.Equal(t, clock, first.Metadata.Modified)

	clock = clock.Add(time.Minute)
	upd := first
	upd.Status = domain.StatusDone
	upd.Metadata.Created = time.Time{}
	second := s.Add(upd)

	assert.Equal(t, first.Metadata.Created, second.Metadata.Created)
	assert.Equal(t, clock, second.Metadata.Modified)
	assert.Equal(t, domain.StatusDone, second.Status)
}

func TestEntityStore_UpdateMissing(t *testing.T) {
	s := NewThoughtStore()
	_, err := s.Update(newThought("ghost"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestEntityStore_Mutate(t *testing.T) {
	s := NewThoughtStore()
	s.Add(newThought("t-1"))

	got, err := s.Mutate("t-1", func(th domain.Thought) (domain.Thought, error) {
		th.Status = domain.StatusWaiting
		return th, nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaiting, got.Status)

	boom := errors.New("boom")
	_, err = s.Mutate("t-1", func(th domain.Thought) (domain.Thought, error) {
		th.Status = domain.StatusFailed
		return th, boom
	})
	assert.ErrorIs(t, err, boom)
	cur, _ := s.Get("t-1")
	assert.Equal(t, domain.StatusWaiting, cur.Status, "failed mutation must not be written")

	_, err = s.Mutate("missing", func(th domain.Thought) (domain.Thought, error) { return th, nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEntityStore_DeltaCounts(t *testing.T) {
	s := NewThoughtStore()
	for _, id := range []string{"a-1", "a-2", "a-3", "a-4", "a-5"} {
		s.Add(newThought(id))
	}
	s.GetDelta()

	// N=3 adds and M=2 deletes with no overlap.
	for _, id := range []string{"b-1", "b-2", "b-3"} {
		s.Add(newThought(id))
	}
	assert.True(t, s.Delete("a-1"))
	assert.True(t, s.Delete("a-2"))

	d := s.GetDelta()
	assert.Len(t, d.Changed, 3)
	assert.Equal(t, []string{"a-1", "a-2"}, d.Deleted)

	again := s.GetDelta()
	assert.True(t, again.Empty())
}

func TestEntityStore_ChangedDeletedDisjoint(t *testing.T) {
	s := NewThoughtStore()
	s.Add(newThought("x-1"))
	s.Delete("x-1")
	d := s.GetDelta()
	assert.Empty(t, d.Changed)
	assert.Equal(t, []string{"x-1"}, d.Deleted)

	s.Add(newThought("x-2"))
	s.GetDelta()
	s.Delete("x-2")
	s.Add(newThought("x-2"))
	d = s.GetDelta()
	assert.Len(t, d.Changed, 1)
	assert.Empty(t, d.Deleted)

	assert.False(t, s.Delete("never-existed"))
}

func TestEntityStore_FindByPrefix(t *testing.T) {
	s := NewThoughtStore()
	s.Add(newThought("abcd1111"))
	s.Add(newThought("abcd2222"))
	s.Add(newThought("ff"))

	got, err := s.FindByPrefix("abcd1")
	require.NoError(t, err)
	assert.Equal(t, "abcd1111", got.ID)

	_, err = s.FindByPrefix("abcd")
	assert.ErrorIs(t, err, ErrAmbiguousPrefix)

	_, err = s.FindByPrefix("abc")
	assert.ErrorIs(t, err, ErrNotFound, "prefix below minimum length")

	got, err = s.FindByPrefix("ff")
	require.NoError(t, err, "exact ids resolve regardless of length")
	assert.Equal(t, "ff", got.ID)

	_, err = s.FindByPrefix("zzzz")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.FindByPrefix("")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEntityStore_ListenersAndUnsubscribe(t *testing.T) {
	s := NewThoughtStore()

	var mu sync.Mutex
	var events []ChangeKind
	unsubscribe := s.Subscribe(func(kind ChangeKind, id string) {
		// Listeners run outside the lock and may read the store.
		_, _ = s.Get(id)
		mu.Lock()
		events = append(events, kind)
		mu.Unlock()
	})

	s.Add(newThought("l-1"))
	s.Delete("l-1")
	unsubscribe()
	s.Add(newThought("l-2"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []ChangeKind{ChangeUpsert, ChangeDelete}, events)
}

func TestEntityStore_GetReturnsCopy(t *testing.T) {
	s := NewThoughtStore()
	th := newThought("c-1")
	th.SetTag("k", "v")
	s.Add(th)

	got, _ := s.Get("c-1")
	got.SetTag("k", "mutated")

	again, _ := s.Get("c-1")
	assert.Equal(t, "v", again.Metadata.Tags["k"])
}

func TestEntityStore_ConcurrentMutations(t *testing.T) {
	s := NewThoughtStore()
	s.Add(newThought("n-1"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Mutate("n-1", func(th domain.Thought) (domain.Thought, error) {
				th.Metadata.Retries++
				return th, nil
			})
		}()
	}
	wg.Wait()

	got, _ := s.Get("n-1")
	assert.Equal(t, 50, got.Metadata.Retries)
}

func TestEntityStore_FilterOrdersByCreation(t *testing.T) {
	s := NewThoughtStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := base
	s.SetClock(func() time.Time { tick = tick.Add(time.Second); return tick })

	s.Add(newThought("z"))
	s.Add(newThought("a"))
	s.Add(newThought("m"))

	ids := []string{}
	for _, th := range s.List() {
		ids = append(ids, th.ID)
	}
	assert.Equal(t, []string{"z", "a", "m"}, ids)

	pending := s.Filter(func(th domain.Thought) bool { return th.ID != "a" })
	assert.Len(t, pending, 2)
}

func TestEntityStore_ReplaceRecordsDropped(t *testing.T) {
	s := NewThoughtStore()
	s.Add(newThought("keep-1"))
	s.Add(newThought("drop-1"))
	s.Add(newThought("drop-2"))
	s.GetDelta()

	s.Delete("drop-2")
	s.Replace([]domain.Thought{newThought("keep-1"), newThought("new-1")})

	d := s.GetDelta()
	assert.Equal(t, []string{"drop-1", "drop-2"}, d.Deleted)
	require.Len(t, d.Changed, 2)
	assert.Equal(t, "keep-1", d.Changed[0].ID)
	assert.Equal(t, "new-1", d.Changed[1].ID)

	_, ok := s.Get("drop-1")
	assert.False(t, ok)
}
