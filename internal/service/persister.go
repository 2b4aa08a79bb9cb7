package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Harshitk-cp/reflex/internal/domain"
	"github.com/Harshitk-cp/reflex/internal/store"
	"go.uber.org/zap"
)

const (
	defaultPersistDebounce = 500 * time.Millisecond
	finalFlushTimeout      = 10 * time.Second
)

// Persister saves full snapshots of both stores, debounced after changes,
// plus a final flush on Stop. It never drains store deltas.
type Persister struct {
	thoughts  *store.ThoughtStore
	rules     *store.RuleStore
	snapshots domain.SnapshotStore
	logger    *zap.Logger

	debounce time.Duration
	dirty    chan struct{}
	stopCh   chan struct{}
	wg       sync.WaitGroup
	unsub    []func()

	mu      sync.Mutex
	started bool
}

func NewPersister(thoughts *store.ThoughtStore, rules *store.RuleStore, snapshots domain.SnapshotStore, logger *zap.Logger) *Persister {
	return &Persister{
		thoughts:  thoughts,
		rules:     rules,
		snapshots: snapshots,
		logger:    logger,
		debounce:  defaultPersistDebounce,
		dirty:     make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

func (p *Persister) SetDebounce(d time.Duration) {
	if d > 0 {
		p.debounce = d
	}
}

// Load restores the last snapshot into the stores. A missing snapshot is not
// an error. It returns the number of thoughts and rules loaded.
func (p *Persister) Load(ctx context.Context) (int, int, error) {
	data, err := p.snapshots.Load(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("load snapshot: %w", err)
	}

	thoughts, rules, err := store.DecodeSnapshot(data)
	if err != nil {
		return 0, 0, err
	}
	p.thoughts.Replace(thoughts)
	p.rules.Replace(rules)

	p.logger.Info("snapshot restored", zap.Int("thoughts", len(thoughts)), zap.Int("rules", len(rules)))
	return len(thoughts), len(rules), nil
}

// Flush writes a snapshot now.
func (p *Persister) Flush(ctx context.Context) error {
	data, err := store.EncodeSnapshot(p.thoughts.List(), p.rules.List())
	if err == nil {
		err = p.snapshots.Save(ctx, data)
	}
	RecordSnapshot(err)
	if err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return nil
}

func (p *Persister) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	mark := func(store.ChangeKind, string) {
		select {
		case p.dirty <- struct{}{}:
		default:
		}
	}
	p.unsub = append(p.unsub, p.thoughts.Subscribe(mark), p.rules.Subscribe(mark))

	p.wg.Add(1)
	go p.run()
	p.logger.Info("persister started", zap.Duration("debounce", p.debounce))
}

func (p *Persister) run() {
	defer p.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-p.stopCh:
			return
		case <-p.dirty:
			if fire == nil {
				timer = time.NewTimer(p.debounce)
				fire = timer.C
			}
		case <-fire:
			fire = nil
			ctx, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
			if err := p.Flush(ctx); err != nil {
				p.logger.Error("snapshot failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// Stop unsubscribes, stops the background loop and writes a final snapshot.
func (p *Persister) Stop() error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	for _, u := range p.unsub {
		u()
	}
	p.unsub = nil
	p.mu.Unlock()

	close(p.stopCh)
	p.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
	defer cancel()
	err := p.Flush(ctx)
	if err == nil {
		p.logger.Info("final snapshot written")
	}
	return err
}
