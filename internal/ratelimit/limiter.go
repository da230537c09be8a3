// Package ratelimit throttles outgoing embedding requests to a token budget
// per fixed time window.
package ratelimit

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/0x5457/decl-index/internal/constants"
)

// ErrTokenCount is returned for a negative token count.
var ErrTokenCount = errors.New("ratelimit: negative token count")

// Clock abstracts time so tests can drive the limiter without sleeping.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SystemClock returns the wall clock.
func SystemClock() Clock { return realClock{} }

// Limiter is a fixed-window token limiter. Bursts up to twice the budget are
// possible across a window boundary.
type Limiter struct {
	mu          sync.Mutex
	clock       Clock
	budget      int
	window      time.Duration
	windowStart time.Time
	sent        int
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock injects the clock used for windows and waits.
func WithClock(c Clock) Option { return func(l *Limiter) { l.clock = c } }

// WithWindow overrides the window length (60s by default).
func WithWindow(d time.Duration) Option { return func(l *Limiter) { l.window = d } }

// New creates a limiter allowing budget tokens per window.
func New(budget int, opts ...Option) *Limiter {
	l := &Limiter{clock: SystemClock(), budget: budget, window: constants.RateWindow}
	for _, opt := range opts {
		opt(l)
	}
	l.windowStart = l.clock.Now()
	return l
}

// Budget returns the token budget per window.
func (l *Limiter) Budget() int { return l.budget }

// Sent returns the tokens recorded in the current window.
func (l *Limiter) Sent() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sent
}

// Acquire blocks until tokens more can be sent within the window budget and
// records them. The lock is held while waiting so concurrent callers share
// one budget.
func (l *Limiter) Acquire(ctx context.Context, tokens int) error {
	if tokens < 0 {
		return ErrTokenCount
	}
	if tokens == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	elapsed := now.Sub(l.windowStart)
	if elapsed >= l.window {
		l.sent = 0
		l.windowStart = now
		elapsed = 0
	}
	if l.sent+tokens > l.budget {
		wait := l.window - elapsed
		log.Printf("rate limit: %d+%d tokens over budget %d, waiting %s", l.sent, tokens, l.budget, wait.Round(time.Millisecond))
		if err := l.clock.Sleep(ctx, wait); err != nil {
			return err
		}
		l.sent = 0
		l.windowStart = l.clock.Now()
	}
	l.sent += tokens
	return nil
}
