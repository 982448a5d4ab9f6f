// Package outbox makes job publication atomic with the state change that
// caused it: writers add jobs to the outbox inside their transaction and the
// Relay publishes committed entries to the queue.
package outbox

import (
	"context"
	"time"

	"welfare/internal/queue"
)

// Entry is one committed, not yet acknowledged job.
type Entry struct {
	Job         queue.Job
	CreatedAt   time.Time
	PublishedAt *time.Time
}

// Store persists outbox entries. ClaimUnpublished must be called inside a
// unit of work; claimed rows stay locked until it ends.
type Store interface {
	Add(ctx context.Context, job queue.Job) error
	ClaimUnpublished(ctx context.Context, limit int) ([]Entry, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}

// Writer is the narrow view handed to services that emit jobs.
type Writer interface {
	Add(ctx context.Context, job queue.Job) error
}
