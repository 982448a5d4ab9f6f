// Package memory is a channel-backed queue for tests and single-process runs.
// Jobs do not survive a restart.
package memory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"welfare/internal/platform/metrics"
	"welfare/internal/queue"
)

const backendName = "memory"

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("memory queue closed")

type Queue struct {
	jobs    chan queue.Job
	policy  queue.RetryPolicy
	logger  *slog.Logger
	metrics *metrics.Queue

	mu      sync.Mutex
	dead    []queue.Job
	closed  chan struct{}
	once    sync.Once
	pending sync.WaitGroup
}

type Option func(*Queue)

func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		q.logger = logger
	}
}

func WithMetrics(m *metrics.Queue) Option {
	return func(q *Queue) {
		q.metrics = m
	}
}

func WithRetryPolicy(p queue.RetryPolicy) Option {
	return func(q *Queue) {
		q.policy = p
	}
}

// New creates a queue holding up to capacity undelivered jobs.
func New(capacity int, opts ...Option) *Queue {
	if capacity < 1 {
		capacity = 1024
	}
	q := &Queue{
		jobs:   make(chan queue.Job, capacity),
		policy: queue.DefaultRetryPolicy(),
		logger: slog.Default(),
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue) Publish(ctx context.Context, job queue.Job) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}
	select {
	case q.jobs <- job:
		q.metrics.IncPublished(backendName, string(job.Kind))
		return nil
	case <-q.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume delivers jobs to h until ctx is cancelled or the queue is closed.
func (q *Queue) Consume(ctx context.Context, h queue.Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-q.closed:
			return nil
		case job := <-q.jobs:
			q.deliver(ctx, h, job)
		}
	}
}

// Drain delivers every job currently buffered, including jobs the handlers
// publish while draining, and returns how many deliveries were made.
// Delayed retries that have not fired yet are not waited for.
func (q *Queue) Drain(ctx context.Context, h queue.Handler) int {
	n := 0
	for {
		select {
		case job := <-q.jobs:
			q.deliver(ctx, h, job)
			n++
		default:
			return n
		}
	}
}

func (q *Queue) deliver(ctx context.Context, h queue.Handler, job queue.Job) {
	start := time.Now()
	err := h.HandleJob(ctx, job)
	if err == nil {
		q.metrics.ObserveHandled(string(job.Kind), metrics.OutcomeSuccess, start)
		return
	}

	next, delay, retry := q.policy.Next(job)
	if !retry {
		q.logger.ErrorContext(ctx, "job exhausted retries, dead-lettering",
			"job_id", job.ID,
			"kind", job.Kind,
			"attempts", next.Attempt,
			"error", err,
		)
		q.metrics.ObserveHandled(string(job.Kind), metrics.OutcomeDeadLetter, start)
		q.mu.Lock()
		q.dead = append(q.dead, next)
		q.mu.Unlock()
		return
	}

	q.logger.WarnContext(ctx, "job failed, scheduling retry",
		"job_id", job.ID,
		"kind", job.Kind,
		"attempt", next.Attempt,
		"delay", delay,
		"error", err,
	)
	q.metrics.ObserveHandled(string(job.Kind), metrics.OutcomeRetry, start)
	q.schedule(next, delay)
}

func (q *Queue) schedule(job queue.Job, delay time.Duration) {
	q.pending.Add(1)
	go func() {
		defer q.pending.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-q.closed:
			return
		}
		select {
		case q.jobs <- job:
		case <-q.closed:
		}
	}()
}

// DeadLetters returns the jobs that exhausted their retries.
func (q *Queue) DeadLetters() []queue.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]queue.Job, len(q.dead))
	copy(out, q.dead)
	return out
}

// Len returns the number of buffered jobs.
func (q *Queue) Len() int {
	return len(q.jobs)
}

// Close stops consumers and pending retries. Buffered jobs are dropped.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.closed)
	})
	q.pending.Wait()
}
