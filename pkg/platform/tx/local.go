package tx

import (
	"context"
	"sync"
)

type localKey struct{}

// LocalRunner serializes units of work for the in-memory stores. It does not
// roll back: stores mutate in place, so a failing fn leaves partial writes.
// Nested calls on the same context reuse the outer unit of work.
type LocalRunner struct {
	mu sync.Mutex
}

func NewLocalRunner() *LocalRunner {
	return &LocalRunner{}
}

func (r *LocalRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(localKey{}) != nil {
		return fn(ctx)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(context.WithValue(ctx, localKey{}, struct{}{}))
}
