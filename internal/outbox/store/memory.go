package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"welfare/internal/outbox"
	"welfare/internal/queue"
	"welfare/pkg/platform/sentinel"
)

// InMemory is an outbox for the memory backend. It has no row locks;
// concurrent relays must share one tx.LocalRunner.
type InMemory struct {
	mu      sync.Mutex
	entries map[string]*outbox.Entry
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[string]*outbox.Entry)}
}

func (s *InMemory) Add(_ context.Context, job queue.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[job.ID]; ok {
		return sentinel.ErrConflict
	}
	s.entries[job.ID] = &outbox.Entry{Job: job, CreatedAt: job.EnqueuedAt}
	return nil
}

func (s *InMemory) ClaimUnpublished(_ context.Context, limit int) ([]outbox.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]outbox.Entry, 0)
	for _, e := range s.entries {
		if e.PublishedAt == nil {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemory) MarkPublished(_ context.Context, ids []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if e, ok := s.entries[id]; ok {
			t := at
			e.PublishedAt = &t
		}
	}
	return nil
}

// Pending returns unpublished jobs of the given kind, oldest first.
func (s *InMemory) Pending(kind queue.Kind) []queue.Job {
	entries, _ := s.ClaimUnpublished(context.Background(), 0)
	out := make([]queue.Job, 0, len(entries))
	for _, e := range entries {
		if e.Job.Kind == kind {
			out = append(out, e.Job)
		}
	}
	return out
}
