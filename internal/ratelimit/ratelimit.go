// Package ratelimit implements a process-local fixed-window request limiter.
//
// Each identifier (client IP or user id) gets a counter that resets when its
// window expires. Bursts at window boundaries are not smoothed. State lives
// in a single map, so limits are per process and not shared across replicas.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Class names a route group with its own policy.
type Class string

const (
	Login  Class = "login"
	API    Class = "api"
	Upload Class = "upload"
	Email  Class = "email"
)

// Policy is the number of requests allowed per window.
type Policy struct {
	Max    int
	Window time.Duration
}

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the time until the current window resets, rounded up to a second.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait <= 0 {
		return 0
	}
	return wait.Truncate(time.Second) + time.Second
}

type window struct {
	count   int
	resetAt time.Time
}

// Limiter is a fixed-window counter keyed by identifier.
type Limiter struct {
	policy Policy
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter for one policy.
func New(p Policy, opts ...Option) *Limiter {
	l := &Limiter{
		policy:  p,
		now:     time.Now,
		windows: make(map[string]*window),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policy returns the limiter's policy.
func (l *Limiter) Policy() Policy {
	return l.policy
}

// Allow counts one request for key.
//
// With no record or an expired window a new window starts at count 1.
// Otherwise the count increments and the request passes while count <= Max.
func (l *Limiter) Allow(key string) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{count: 1, resetAt: now.Add(l.policy.Window)}
		l.windows[key] = w
	} else {
		w.count++
	}

	return Decision{
		Allowed:   w.count <= l.policy.Max,
		Limit:     l.policy.Max,
		Remaining: max(l.policy.Max-w.count, 0),
		ResetAt:   w.resetAt,
	}
}

// Sweep discards expired windows and returns how many were removed.
func (l *Limiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked identifiers.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Run sweeps every interval until ctx is cancelled.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				slog.Debug("rate limit windows swept", "removed", n)
			}
		}
	}
}

// Set holds one limiter per route class.
type Set struct {
	limiters map[Class]*Limiter
}

// NewSet builds limiters for every class in policies.
func NewSet(policies map[Class]Policy, opts ...Option) *Set {
	s := &Set{limiters: make(map[Class]*Limiter, len(policies))}
	for class, p := range policies {
		s.limiters[class] = New(p, opts...)
	}
	return s
}

// Get returns the limiter for class, or nil when the class is not configured.
func (s *Set) Get(class Class) *Limiter {
	if s == nil {
		return nil
	}
	return s.limiters[class]
}

// Run sweeps every limiter in the set until ctx is cancelled.
func (s *Set) Run(ctx context.Context, interval time.Duration) {
	var wg sync.WaitGroup
	for _, l := range s.limiters {
		wg.Add(1)
		go func(l *Limiter) {
			defer wg.Done()
			l.Run(ctx, interval)
		}(l)
	}
	wg.Wait()
}
