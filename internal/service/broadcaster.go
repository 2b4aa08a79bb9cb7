package service

import (
	"sync"
	"time"

	"github.com/Harshitk-cp/reflex/internal/domain"
	"github.com/Harshitk-cp/reflex/internal/store"
	"go.uber.org/zap"
)

const (
	MessageSnapshot = "snapshot"
	MessageDelta    = "delta"

	defaultBroadcastInterval = 100 * time.Millisecond
	defaultSubscriberBuffer  = 64
)

// DeltaMessage is pushed to stream subscribers. A snapshot carries every
// entity in Changed and nothing in Deleted.
type DeltaMessage struct {
	Type     string                     `json:"type"`
	Thoughts store.Delta[domain.Thought] `json:"thoughts"`
	Rules    store.Delta[domain.Rule]    `json:"rules"`
}

// DeltaBroadcaster is the only consumer of the stores' change windows. It
// drains them shortly after a change and fans the result out.
type DeltaBroadcaster struct {
	thoughts *store.ThoughtStore
	rules    *store.RuleStore
	logger   *zap.Logger
	interval time.Duration

	mu     sync.Mutex
	subs   map[int]chan DeltaMessage
	nextID int

	dirty   chan struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup
	unsub   []func()
	started bool
}

func NewDeltaBroadcaster(thoughts *store.ThoughtStore, rules *store.RuleStore, logger *zap.Logger) *DeltaBroadcaster {
	return &DeltaBroadcaster{
		thoughts: thoughts,
		rules:    rules,
		logger:   logger,
		interval: defaultBroadcastInterval,
		subs:     make(map[int]chan DeltaMessage),
		dirty:    make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}
}

func (b *DeltaBroadcaster) SetInterval(d time.Duration) {
	if d > 0 {
		b.interval = d
	}
}

// Subscribe registers a listener. The returned channel is closed when the
// subscription is cancelled, when the broadcaster stops, or when the
// subscriber falls behind; a closed channel means the consumer should
// resubscribe and start again from a snapshot.
func (b *DeltaBroadcaster) Subscribe() (<-chan DeltaMessage, func()) {
	ch := make(chan DeltaMessage, defaultSubscriberBuffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { b.drop(id) })
	}
}

func (b *DeltaBroadcaster) drop(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Snapshot returns the full current state as a message.
func (b *DeltaBroadcaster) Snapshot() DeltaMessage {
	return DeltaMessage{
		Type:     MessageSnapshot,
		Thoughts: store.Delta[domain.Thought]{Changed: b.thoughts.List(), Deleted: []string{}},
		Rules:    store.Delta[domain.Rule]{Changed: b.rules.List(), Deleted: []string{}},
	}
}

func (b *DeltaBroadcaster) Start() {
	if b.started {
		return
	}
	b.started = true

	mark := func(store.ChangeKind, string) {
		select {
		case b.dirty <- struct{}{}:
		default:
		}
	}
	b.unsub = append(b.unsub, b.thoughts.Subscribe(mark), b.rules.Subscribe(mark))

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-b.stopCh:
				return
			case <-b.dirty:
			}

			// Coalesce bursts of changes into one message.
			select {
			case <-b.stopCh:
				return
			case <-time.After(b.interval):
			}
			b.Flush()
		}
	}()
}

// Flush drains both stores' pending changes and sends them to every
// subscriber. It reports whether anything was sent.
func (b *DeltaBroadcaster) Flush() bool {
	msg := DeltaMessage{
		Type:     MessageDelta,
		Thoughts: b.thoughts.GetDelta(),
		Rules:    b.rules.GetDelta(),
	}
	if msg.Thoughts.Empty() && msg.Rules.Empty() {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- msg:
		default:
			b.logger.Warn("stream subscriber too slow, disconnecting", zap.Int("subscriber", id))
			delete(b.subs, id)
			close(ch)
		}
	}
	return true
}

// Stop halts the broadcaster and closes every subscription.
func (b *DeltaBroadcaster) Stop() {
	if !b.started {
		return
	}
	b.started = false
	for _, u := range b.unsub {
		u()
	}
	close(b.stopCh)
	b.wg.Wait()

	b.mu.Lock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	b.mu.Unlock()
}
