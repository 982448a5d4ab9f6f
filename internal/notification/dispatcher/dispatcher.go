// Package dispatcher delivers send-notification jobs through an outbound
// channel.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"welfare/internal/queue"
)

// Channel delivers one message to one contact.
type Channel interface {
	Send(ctx context.Context, contact, message string) error
}

type Dispatcher struct {
	channel Channel
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func New(channel Channel, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		channel: channel,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleJob sends the message. Malformed payloads are logged and
// acknowledged; channel failures are returned so the queue retries.
func (d *Dispatcher) HandleJob(ctx context.Context, job queue.Job) error {
	var payload queue.SendNotificationPayload
	if err := job.Decode(&payload); err != nil {
		d.logger.ErrorContext(ctx, "dropping malformed notification job", "job_id", job.ID, "error", err)
		d.metrics.IncDropped()
		return nil
	}
	if strings.TrimSpace(payload.Phone) == "" || payload.Message == "" {
		d.logger.ErrorContext(ctx, "dropping notification job without contact or message", "job_id", job.ID)
		d.metrics.IncDropped()
		return nil
	}

	if err := d.channel.Send(ctx, payload.Phone, payload.Message); err != nil {
		d.metrics.IncFailed()
		return fmt.Errorf("send notification %s: %w", job.ID, err)
	}
	d.metrics.IncSent()
	d.logger.DebugContext(ctx, "notification delivered", "job_id", job.ID, "attempt", job.Attempt)
	return nil
}
