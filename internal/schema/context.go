package schema

import "context"

// The current schema is carried as a context value through the pipeline so
// components (transformers reading changed files, repo adapters deriving
// branch names) can reach it without it being threaded through every call.
// This replaces a process-wide slot; concurrent pipelines in separate
// contexts cannot observe each other's schema.

type contextKey struct{}

// NewContext returns a context carrying the given Schema as the current one.
func NewContext(ctx context.Context, s *Schema) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the current Schema, if any.
func FromContext(ctx context.Context) (*Schema, bool) {
	s, ok := ctx.Value(contextKey{}).(*Schema)
	return s, ok
}
