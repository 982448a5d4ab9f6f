package queue

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Publisher hands a job to the queue. Delivery is at-least-once.
type Publisher interface {
	Publish(ctx context.Context, job Job) error
}

// Handler processes one delivery. A non-nil error asks the backend to apply
// the retry policy.
type Handler interface {
	HandleJob(ctx context.Context, job Job) error
}

type HandlerFunc func(ctx context.Context, job Job) error

func (f HandlerFunc) HandleJob(ctx context.Context, job Job) error { return f(ctx, job) }

// Consumer pulls jobs and feeds them to h until ctx is cancelled. It returns
// nil on cancellation and an error only when the backend is unusable.
type Consumer interface {
	Consume(ctx context.Context, h Handler) error
}

// RunConsumers runs n copies of c against h and waits for all of them.
func RunConsumers(ctx context.Context, c Consumer, h Handler, n int) error {
	if n < 1 {
		n = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			return c.Consume(ctx, h)
		})
	}
	return g.Wait()
}
