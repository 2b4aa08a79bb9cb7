package service

import (
	"sync"
	"time"

	"github.com/Harshitk-cp/reflex/internal/domain"
	"github.com/Harshitk-cp/reflex/internal/store"
	"go.uber.org/zap"
)

const defaultWakeInterval = 1 * time.Second

// Waker returns WAITING thoughts whose time condition has elapsed to
// PENDING. It is started and stopped together with the engine loop.
type Waker struct {
	thoughts *store.ThoughtStore
	logger   *zap.Logger
	now      func() time.Time
	onWake   func(n int)

	interval time.Duration

	mu     sync.Mutex
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewWaker(thoughts *store.ThoughtStore, logger *zap.Logger) *Waker {
	return &Waker{
		thoughts: thoughts,
		logger:   logger,
		now:      time.Now,
		interval: defaultWakeInterval,
	}
}

func (w *Waker) SetInterval(d time.Duration) {
	if d > 0 {
		w.interval = d
	}
}

// Start runs the waker in a background goroutine. Calling Start on a
// running waker is a no-op.
func (w *Waker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopCh != nil {
		return
	}
	stopCh := make(chan struct{})
	w.stopCh = stopCh

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				w.Tick()
			case <-stopCh:
				return
			}
		}
	}()
}

// Stop halts the waker and waits for its goroutine to exit.
func (w *Waker) Stop() {
	w.mu.Lock()
	stopCh := w.stopCh
	w.stopCh = nil
	w.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
	}
	w.wg.Wait()
}

// Tick wakes every thought whose wait deadline has passed and returns how
// many were woken.
func (w *Waker) Tick() int {
	now := w.now()
	due := w.thoughts.Filter(func(th domain.Thought) bool {
		return th.Status == domain.StatusWaiting && th.Metadata.WaitingFor.Elapsed(now)
	})

	woken := 0
	for _, th := range due {
		_, err := w.thoughts.Mutate(th.ID, func(cur domain.Thought) (domain.Thought, error) {
			if cur.Status != domain.StatusWaiting || !cur.Metadata.WaitingFor.Elapsed(now) {
				return cur, errNoChange
			}
			cur.Status = domain.StatusPending
			cur.Metadata.WaitingFor = nil
			return cur, nil
		})
		if err == nil {
			woken++
		}
	}

	if woken > 0 {
		w.logger.Debug("woke waiting thoughts", zap.Int("count", woken))
		RecordWakeups(woken)
		if w.onWake != nil {
			w.onWake(woken)
		}
	}
	return woken
}
