package core

// upload_limiter.go bounds how many file uploads are written to storage at
// once. Requests wait up to maxWait for a slot before failing with
// ErrTooManyUploads. WaitForDrain lets shutdown wait for in-flight uploads.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyUploads is returned when all upload slots are occupied and the
// wait timeout expires.
var ErrTooManyUploads = errors.New("too many concurrent uploads, please try again later")

// Upload limiter defaults.
const (
	DefaultMaxConcurrentUploads = 5
	DefaultMaxWaitTime          = 30 * time.Second
)

// drainPoll is how often WaitForDrain checks the active count.
var drainPoll = 50 * time.Millisecond

// UploadLimiter is a counting semaphore over upload slots.
type UploadLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	active   atomic.Int64
	rejected atomic.Int64
	total    atomic.Int64
}

// UploadLimiterStatus is a snapshot for the admin status endpoint.
type UploadLimiterStatus struct {
	Active        int   `json:"active"`
	Available     int   `json:"available"`
	MaxConcurrent int   `json:"max_concurrent"`
	Completed     int64 `json:"completed"`
	Rejected      int64 `json:"rejected"`
}

// NewUploadLimiter creates a limiter with maxConcurrent slots. Non-positive
// arguments fall back to the defaults.
func NewUploadLimiter(maxConcurrent int, maxWait time.Duration) *UploadLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentUploads
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &UploadLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting at most maxWait. The caller must call
// Release when the upload finishes.
func (l *UploadLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		l.rejected.Add(1)
		return ErrTooManyUploads
	}
}

// TryAcquire takes a slot only if one is free.
func (l *UploadLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return true
	default:
		l.rejected.Add(1)
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *UploadLimiter) Release() {
	l.active.Add(-1)
	l.total.Add(1)
	<-l.slots
}

// ActiveCount returns the number of uploads holding a slot.
func (l *UploadLimiter) ActiveCount() int {
	return int(l.active.Load())
}

// MaxConcurrent returns the number of slots.
func (l *UploadLimiter) MaxConcurrent() int {
	return cap(l.slots)
}

// WaitForDrain blocks until no upload holds a slot or ctx ends.
func (l *UploadLimiter) WaitForDrain(ctx context.Context) error {
	if l.ActiveCount() == 0 {
		return nil
	}
	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.ActiveCount() == 0 {
				return nil
			}
		}
	}
}

// Status returns the current limiter state.
func (l *UploadLimiter) Status() UploadLimiterStatus {
	return UploadLimiterStatus{
		Active:        l.ActiveCount(),
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
		Completed:     l.total.Load(),
		Rejected:      l.rejected.Load(),
	}
}
