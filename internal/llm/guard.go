package llm

import (
	"context"
	"errors"
	"time"

	"github.com/Harshitk-cp/reflex/internal/domain"
	"golang.org/x/time/rate"
)

// GuardConfig bounds how the engine calls a remote model.
type GuardConfig struct {
	// RPS of zero disables rate limiting.
	RPS   float64
	Burst int
	// Timeout applies to each attempt. Zero leaves the caller's deadline.
	Timeout time.Duration
	// MaxRetries counts extra attempts after a retryable APIError.
	MaxRetries int
	Backoff    time.Duration
}

// Guarded wraps a client with a shared rate limit, a per-attempt timeout
// and retries on 429 and 5xx answers. Every concurrent engine worker shares
// one Guarded, so the limit is process-wide.
type Guarded struct {
	next    domain.LLMClient
	limiter *rate.Limiter
	cfg     GuardConfig
}

func NewGuarded(next domain.LLMClient, cfg GuardConfig) *Guarded {
	g := &Guarded{next: next, cfg: cfg}
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	if g.cfg.Backoff <= 0 {
		g.cfg.Backoff = 500 * time.Millisecond
	}
	return g
}

func (g *Guarded) Generate(ctx context.Context, prompt string) (string, error) {
	backoff := g.cfg.Backoff
	for attempt := 0; ; attempt++ {
		out, err := g.attempt(ctx, prompt)
		if err == nil {
			return out, nil
		}

		var apiErr *APIError
		if attempt >= g.cfg.MaxRetries || !errors.As(err, &apiErr) || !apiErr.Retryable() {
			return "", err
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
}

func (g *Guarded) attempt(ctx context.Context, prompt string) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}
	return g.next.Generate(ctx, prompt)
}
