package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Harshitk-cp/reflex/internal/domain"
)

// MinPrefixLength is the shortest id prefix FindByPrefix will resolve.
// Exact ids of any length are always accepted.
const MinPrefixLength = 4

// Entity is implemented by values an EntityStore can hold.
type Entity[T any] interface {
	EntityID() string
	CreatedAt() time.Time
	WithTimestamps(created, modified time.Time) T
	Clone() T
}

// Delta is the set of changes accumulated since the previous drain.
type Delta[T any] struct {
	Changed []T      `json:"changed"`
	Deleted []string `json:"deleted"`
}

// Empty reports whether the delta carries no changes.
func (d Delta[T]) Empty() bool {
	return len(d.Changed) == 0 && len(d.Deleted) == 0
}

// ChangeKind describes a single mutation reported to listeners.
type ChangeKind string

const (
	ChangeUpsert ChangeKind = "upsert"
	ChangeDelete ChangeKind = "delete"
)

// Listener is called synchronously after every mutation, outside the store lock.
type Listener func(kind ChangeKind, id string)

// EntityStore is an in-memory keyed collection that records which ids were
// changed or deleted since the last call to GetDelta. The changed and deleted
// sets are kept disjoint.
type EntityStore[T Entity[T]] struct {
	mu      sync.RWMutex
	items   map[string]T
	changed map[string]struct{}
	deleted map[string]struct{}

	listenerMu sync.RWMutex
	listeners  map[int]Listener
	nextID     int

	now func() time.Time
}

func NewEntityStore[T Entity[T]]() *EntityStore[T] {
	return &EntityStore[T]{
		items:     make(map[string]T),
		changed:   make(map[string]struct{}),
		deleted:   make(map[string]struct{}),
		listeners: make(map[int]Listener),
		now:       time.Now,
	}
}

// SetClock overrides the time source used for created/modified stamps.
func (s *EntityStore[T]) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Add writes e, preserving the created stamp of an existing entity with the
// same id. It returns the stored copy.
func (s *EntityStore[T]) Add(e T) T {
	s.mu.Lock()
	stored := s.put(e)
	s.mu.Unlock()

	s.notify(ChangeUpsert, stored.EntityID())
	return stored.Clone()
}

// Update is like Add but fails with ErrNotFound when the id is absent, so a
// concurrently deleted entity is never resurrected.
func (s *EntityStore[T]) Update(e T) (T, error) {
	s.mu.Lock()
	if _, ok := s.items[e.EntityID()]; !ok {
		s.mu.Unlock()
		var zero T
		return zero, ErrNotFound
	}
	stored := s.put(e)
	s.mu.Unlock()

	s.notify(ChangeUpsert, stored.EntityID())
	return stored.Clone(), nil
}

// Mutate applies fn to the current value of id under the store lock and
// writes the result. fn must not call back into the store.
func (s *EntityStore[T]) Mutate(id string, fn func(T) (T, error)) (T, error) {
	var zero T

	s.mu.Lock()
	cur, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return zero, ErrNotFound
	}
	next, err := fn(cur.Clone())
	if err != nil {
		s.mu.Unlock()
		return zero, err
	}
	stored := s.put(next)
	s.mu.Unlock()

	s.notify(ChangeUpsert, stored.EntityID())
	return stored.Clone(), nil
}

// put must be called with mu held.
func (s *EntityStore[T]) put(e T) T {
	id := e.EntityID()
	now := s.now()

	created := e.CreatedAt()
	if existing, ok := s.items[id]; ok && !existing.CreatedAt().IsZero() {
		created = existing.CreatedAt()
	}
	if created.IsZero() {
		created = now
	}

	stored := e.Clone().WithTimestamps(created, now)
	s.items[id] = stored
	s.changed[id] = struct{}{}
	delete(s.deleted, id)
	return stored
}

// Delete removes id. It reports whether the entity existed.
func (s *EntityStore[T]) Delete(id string) bool {
	s.mu.Lock()
	if _, ok := s.items[id]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.items, id)
	delete(s.changed, id)
	s.deleted[id] = struct{}{}
	s.mu.Unlock()

	s.notify(ChangeDelete, id)
	return true
}

func (s *EntityStore[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[id]
	if !ok {
		return e, false
	}
	return e.Clone(), true
}

// List returns every entity ordered by creation time, then id.
func (s *EntityStore[T]) List() []T {
	return s.Filter(nil)
}

// Filter returns the entities matching keep (all when keep is nil), ordered
// by creation time, then id.
func (s *EntityStore[T]) Filter(keep func(T) bool) []T {
	s.mu.RLock()
	out := make([]T, 0, len(s.items))
	for _, e := range s.items {
		if keep == nil || keep(e) {
			out = append(out, e.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ci, cj := out[i].CreatedAt(), out[j].CreatedAt()
		if !ci.Equal(cj) {
			return ci.Before(cj)
		}
		return out[i].EntityID() < out[j].EntityID()
	})
	return out
}

func (s *EntityStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// FindByPrefix resolves an exact id, or else a prefix shared by exactly one
// stored id. Prefixes shorter than MinPrefixLength never match.
func (s *EntityStore[T]) FindByPrefix(prefix string) (T, error) {
	var zero T
	if prefix == "" {
		return zero, ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.items[prefix]; ok {
		return e.Clone(), nil
	}
	if len(prefix) < MinPrefixLength {
		return zero, ErrNotFound
	}

	var match T
	found := 0
	for id, e := range s.items {
		if strings.HasPrefix(id, prefix) {
			match = e
			found++
			if found > 1 {
				return zero, ErrAmbiguousPrefix
			}
		}
	}
	if found == 0 {
		return zero, ErrNotFound
	}
	return match.Clone(), nil
}

// GetDelta drains and returns the pending changes. The next window starts
// empty.
func (s *EntityStore[T]) GetDelta() Delta[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := Delta[T]{
		Changed: make([]T, 0, len(s.changed)),
		Deleted: make([]string, 0, len(s.deleted)),
	}
	for id := range s.changed {
		if e, ok := s.items[id]; ok {
			d.Changed = append(d.Changed, e.Clone())
		}
	}
	for id := range s.deleted {
		d.Deleted = append(d.Deleted, id)
	}
	sort.Strings(d.Deleted)
	sort.Slice(d.Changed, func(i, j int) bool { return d.Changed[i].EntityID() < d.Changed[j].EntityID() })

	s.changed = make(map[string]struct{})
	s.deleted = make(map[string]struct{})
	return d
}

// Replace swaps the whole content of the store, e.g. after loading a
// snapshot. Every loaded id is recorded as changed and every id that did not
// survive the swap as deleted.
func (s *EntityStore[T]) Replace(entities []T) {
	s.mu.Lock()
	for id := range s.items {
		s.deleted[id] = struct{}{}
	}
	s.items = make(map[string]T, len(entities))
	s.changed = make(map[string]struct{}, len(entities))
	for _, e := range entities {
		s.items[e.EntityID()] = e.Clone()
		s.changed[e.EntityID()] = struct{}{}
		delete(s.deleted, e.EntityID())
	}
	s.mu.Unlock()

	s.notify(ChangeUpsert, "")
}

// Subscribe registers l and returns a function that removes it.
func (s *EntityStore[T]) Subscribe(l Listener) func() {
	s.listenerMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.listenerMu.Unlock()

	return func() {
		s.listenerMu.Lock()
		delete(s.listeners, id)
		s.listenerMu.Unlock()
	}
}

func (s *EntityStore[T]) notify(kind ChangeKind, id string) {
	s.listenerMu.RLock()
	ls := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.listenerMu.RUnlock()

	for _, l := range ls {
		l(kind, id)
	}
}

// ThoughtStore holds thoughts.
type ThoughtStore = EntityStore[domain.Thought]

// RuleStore holds rules.
type RuleStore = EntityStore[domain.Rule]

func NewThoughtStore() *ThoughtStore { return NewEntityStore[domain.Thought]() }

func NewRuleStore() *RuleStore { return NewEntityStore[domain.Rule]() }
