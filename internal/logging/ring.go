package logging

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Record is a flattened log record kept in the ring.
type Record struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// Ring is a fixed-capacity buffer of the most recent records.
// Once full, each new record overwrites the oldest one.
type Ring struct {
	mu    sync.Mutex
	buf   []Record
	next  int
	count int
}

// NewRing creates a ring holding at most size records.
func NewRing(size int) *Ring {
	if size < 0 {
		size = 0
	}
	return &Ring{buf: make([]Record, size)}
}

// Add stores a record, evicting the oldest when full.
func (r *Ring) Add(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.buf) == 0 {
		return
	}
	r.buf[r.next] = rec
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// Recent returns up to n records, oldest first. n <= 0 returns everything held.
func (r *Ring) Recent(n int) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n <= 0 || n > r.count {
		n = r.count
	}
	out := make([]Record, 0, n)
	start := (r.next - n + len(r.buf)) % max(len(r.buf), 1)
	for i := 0; i < n; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

// Len reports how many records are held.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// RingHandler tees records into a Ring before passing them on.
//
// Attributes bound with WithAttrs keep the group prefix that was open when
// they were added; only the record's own attributes take the full prefix.
type RingHandler struct {
	next   slog.Handler
	ring   *Ring
	bound  map[string]any
	prefix string
}

// NewRingHandler wraps next so every handled record is also kept in ring.
func NewRingHandler(next slog.Handler, ring *Ring) *RingHandler {
	return &RingHandler{next: next, ring: ring}
}

func (h *RingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *RingHandler) Handle(ctx context.Context, r slog.Record) error {
	rec := Record{
		Time:    r.Time,
		Level:   r.Level.String(),
		Message: r.Message,
	}
	if n := len(h.bound) + r.NumAttrs(); n > 0 {
		rec.Attrs = make(map[string]any, n)
		for k, v := range h.bound {
			rec.Attrs[k] = v
		}
		r.Attrs(func(a slog.Attr) bool {
			flatten(rec.Attrs, h.prefix, a)
			return true
		})
	}
	h.ring.Add(rec)

	return h.next.Handle(ctx, r)
}

// flatten stores a under prefix+key, expanding group values into dotted keys.
func flatten(m map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		inner := prefix
		if a.Key != "" {
			inner += a.Key + "."
		}
		for _, ga := range v.Group() {
			flatten(m, inner, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	m[prefix+a.Key] = v.Any()
}

func (h *RingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.next = h.next.WithAttrs(attrs)
	clone.bound = make(map[string]any, len(h.bound)+len(attrs))
	for k, v := range h.bound {
		clone.bound[k] = v
	}
	for _, a := range attrs {
		flatten(clone.bound, h.prefix, a)
	}
	return &clone
}

func (h *RingHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.next = h.next.WithGroup(name)
	clone.prefix = h.prefix + name + "."
	return &clone
}
