package core

import (
	"context"

	"github.com/google/uuid"
)

// Actor is the caller of a service operation.
type Actor struct {
	UserID uuid.UUID
	Admin  bool
}

// System is the actor used by offline commands such as the CLI import.
var System = Actor{Admin: true}

// RequestMeta describes where a request came from. It is stored with audit
// records.
type RequestMeta struct {
	IP        string
	UserAgent string
}

type requestMetaKey struct{}

// WithRequestMeta attaches m to ctx.
func WithRequestMeta(ctx context.Context, m RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, m)
}

// RequestMetaFrom returns the metadata attached to ctx, or the zero value
// for offline callers.
func RequestMetaFrom(ctx context.Context) RequestMeta {
	m, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return m
}
