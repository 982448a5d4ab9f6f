package queue

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"welfare/internal/platform/metrics"
)

// Router dispatches jobs to kind-specific handlers.
type Router struct {
	handlers map[Kind]Handler
	logger   *slog.Logger
	metrics  *metrics.Queue
	tracer   trace.Tracer
}

type RouterOption func(*Router)

func WithRouterMetrics(m *metrics.Queue) RouterOption {
	return func(r *Router) {
		r.metrics = m
	}
}

func NewRouter(logger *slog.Logger, opts ...RouterOption) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		handlers: make(map[Kind]Handler),
		logger:   logger,
		tracer:   otel.Tracer("welfare/queue"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a handler for a job kind.
func (r *Router) Register(kind Kind, handler Handler) {
	r.handlers[kind] = handler
}

// HandleJob routes the job to its handler. Unknown kinds are logged and
// acknowledged so they do not cycle through redelivery.
func (r *Router) HandleJob(ctx context.Context, job Job) error {
	handler, ok := r.handlers[job.Kind]
	if !ok {
		r.logger.WarnContext(ctx, "no handler for job kind, skipping",
			"job_id", job.ID,
			"kind", job.Kind,
		)
		r.metrics.ObserveHandled(string(job.Kind), metrics.OutcomeUnroutable, time.Now())
		return nil
	}

	ctx, span := r.tracer.Start(ctx, "queue.handle "+string(job.Kind), trace.WithAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("job.kind", string(job.Kind)),
		attribute.Int("job.attempt", job.Attempt),
	))
	defer span.End()

	if err := handler.HandleJob(ctx, job); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
