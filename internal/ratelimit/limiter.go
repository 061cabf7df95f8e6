// Package ratelimit paces the Embedding Coordinator's calls to the remote
// embedding service. It keeps the teacher's Config/Limiter naming but is
// backed by golang.org/x/time/rate rather than a hand-rolled token bucket,
// so bursts are handled correctly.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Config controls pacing between successive embedding batches.
type Config struct {
	// IntervalMS is the minimum spacing, in milliseconds, between the
	// starts of successive embedding calls (successive returns from
	// Wait). This is the spec's rate_limit_ms. It is not measured from the
	// end of a call: a call that itself takes IntervalMS or longer is
	// followed by the next one without further delay.
	IntervalMS int
	Enabled    bool
}

// Limiter enforces Config.IntervalMS between calls to Wait.
type Limiter struct {
	cfg     Config
	limiter *rate.Limiter
}

// New constructs a Limiter. When cfg.IntervalMS <= 0 or cfg.Enabled is
// false, Wait returns immediately.
func New(cfg Config) *Limiter {
	if !cfg.Enabled || cfg.IntervalMS <= 0 {
		return &Limiter{cfg: cfg}
	}
	every := time.Duration(cfg.IntervalMS) * time.Millisecond
	return &Limiter{cfg: cfg, limiter: rate.NewLimiter(rate.Every(every), 1)}
}

// Wait blocks until the next call is permitted, or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.limiter == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}
