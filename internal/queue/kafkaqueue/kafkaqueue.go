// Package kafkaqueue carries jobs on a Kafka topic.
//
// Consumers join a consumer group with auto-commit disabled. A fetched batch
// is handled record by record; failures are retried in place with the
// configured backoff, exhausted jobs are produced to the dead-letter topic,
// and offsets are committed only after every record in the batch settled.
package kafkaqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"welfare/internal/platform/config"
	"welfare/internal/platform/kafka"
	"welfare/internal/platform/metrics"
	"welfare/internal/queue"
)

const backendName = "kafka"

type Queue struct {
	producer *kgo.Client
	cfg      config.KafkaConfig
	policy   queue.RetryPolicy
	logger   *slog.Logger
	metrics  *metrics.Queue
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

// New wraps a producer client. Consumers open their own group clients.
func New(producer *kgo.Client, cfg config.KafkaConfig, opts ...Option) *Queue {
	q := &Queue{
		producer: producer,
		cfg:      cfg,
		policy:   queue.DefaultRetryPolicy(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Publish produces the job keyed by its ID and waits for the broker ack.
func (q *Queue) Publish(ctx context.Context, job queue.Job) error {
	if err := q.produce(ctx, q.cfg.Topic, job); err != nil {
		return err
	}
	q.metrics.IncPublished(backendName, string(job.Kind))
	return nil
}

func (q *Queue) produce(ctx context.Context, topic string, job queue.Job) error {
	raw, err := job.Encode()
	if err != nil {
		return err
	}
	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(job.ID),
		Value: raw,
		Headers: []kgo.RecordHeader{
			{Key: "kind", Value: []byte(job.Kind)},
		},
	}
	if err := q.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("kafka produce to %s: %w", topic, err)
	}
	return nil
}

// Consume joins the consumer group and blocks until ctx is cancelled.
func (q *Queue) Consume(ctx context.Context, h queue.Handler) error {
	client, err := kafka.New(ctx, q.cfg,
		kgo.ConsumerGroup(q.cfg.ConsumerGroup),
		kgo.ConsumeTopics(q.cfg.Topic),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer client.Close()

	for {
		fetches := client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			q.logger.ErrorContext(ctx, "kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		records := fetches.Records()
		if len(records) == 0 {
			continue
		}
		for _, record := range records {
			if !q.deliver(ctx, h, record) {
				// Shutdown mid-batch: leave the batch uncommitted for redelivery.
				return nil
			}
		}
		if err := client.CommitRecords(ctx, records...); err != nil && ctx.Err() == nil {
			q.logger.ErrorContext(ctx, "kafka commit failed", "error", err)
		}
	}
}

// deliver settles one record. It returns false only when ctx was cancelled
// before the record settled.
func (q *Queue) deliver(ctx context.Context, h queue.Handler, record *kgo.Record) bool {
	job, err := queue.DecodeJob(record.Value)
	if err != nil {
		q.logger.ErrorContext(ctx, "dropping undecodable job",
			"partition", record.Partition,
			"offset", record.Offset,
			"error", err,
		)
		return true
	}

	for {
		start := time.Now()
		handleErr := h.HandleJob(ctx, job)
		if handleErr == nil {
			q.metrics.ObserveHandled(string(job.Kind), metrics.OutcomeSuccess, start)
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		next, delay, retry := q.policy.Next(job)
		if !retry {
			q.logger.ErrorContext(ctx, "job exhausted retries, dead-lettering",
				"job_id", job.ID, "kind", job.Kind, "attempts", next.Attempt, "error", handleErr)
			q.metrics.ObserveHandled(string(job.Kind), metrics.OutcomeDeadLetter, start)
			for {
				err := q.produce(ctx, q.cfg.DeadLetterTopic, next)
				if err == nil {
					return true
				}
				q.logger.ErrorContext(ctx, "dead-letter produce failed", "job_id", job.ID, "error", err)
				if !wait(ctx, q.policy.Backoff(1)) {
					return false
				}
			}
		}

		q.logger.WarnContext(ctx, "job failed, retrying",
			"job_id", job.ID, "kind", job.Kind, "attempt", next.Attempt, "delay", delay, "error", handleErr)
		q.metrics.ObserveHandled(string(job.Kind), metrics.OutcomeRetry, start)
		job = next

		if !wait(ctx, delay) {
			return false
		}
	}
}

func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
