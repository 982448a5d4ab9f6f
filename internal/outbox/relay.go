package outbox

import (
	"context"
	"log/slog"
	"time"

	"welfare/internal/platform/metrics"
	"welfare/internal/queue"
	"welfare/pkg/platform/tx"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = time.Second
)

// Relay publishes committed outbox entries to the queue.
type Relay struct {
	store        Store
	publisher    queue.Publisher
	tx           tx.Runner
	logger       *slog.Logger
	metrics      *metrics.Queue
	now          func() time.Time
	batchSize    int
	pollInterval time.Duration
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Queue) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Relay) {
		r.now = now
	}
}

func NewRelay(store Store, publisher queue.Publisher, runner tx.Runner, opts ...Option) *Relay {
	r := &Relay{
		store:        store,
		publisher:    publisher,
		tx:           runner,
		logger:       slog.Default(),
		now:          time.Now,
		batchSize:    defaultBatchSize,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce claims one batch, publishes it and marks what was published. A
// publish failure stops the batch; entries published before it are still
// marked and the rest stay pending for the next pass.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	published := 0
	var publishErr error
	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		entries, err := r.store.ClaimUnpublished(ctx, r.batchSize)
		if err != nil {
			r.logger.ErrorContext(ctx, "outbox claim failed", "error", err)
			return err
		}

		ids := make([]string, 0, len(entries))
		for _, e := range entries {
			if publishErr = r.publisher.Publish(ctx, e.Job); publishErr != nil {
				r.logger.ErrorContext(ctx, "outbox publish failed",
					"job_id", e.Job.ID,
					"kind", e.Job.Kind,
					"error", publishErr,
				)
				break
			}
			ids = append(ids, e.Job.ID)
		}

		if len(ids) > 0 {
			if err := r.store.MarkPublished(ctx, ids, r.now().UTC()); err != nil {
				r.logger.ErrorContext(ctx, "outbox mark published failed", "error", err)
				return err
			}
		}
		published = len(ids)
		r.metrics.ObserveRelayPass(len(entries), published)
		// Commit the marks; the publish error is reported after the tx.
		return nil
	})
	if err != nil {
		return 0, err
	}

	if published > 0 {
		r.logger.DebugContext(ctx, "outbox relay pass completed", "published_count", published)
	}
	return published, publishErr
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// another pass.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		n, err := r.RunOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil && n >= r.batchSize {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
