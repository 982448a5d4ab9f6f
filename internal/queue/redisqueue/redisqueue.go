// Package redisqueue is a reliable Redis list queue.
//
// Keys, for a queue named N:
//
//	N:ready               LIST  jobs waiting for a consumer (LPUSH in, BLMOVE out)
//	N:processing:<id>     LIST  jobs held by consumer <id> until acked
//	N:delayed             ZSET  retries scored by due time (unix ms)
//	N:dead                LIST  jobs that exhausted their retries
//
// A consumer that dies mid-job leaves the job in its processing list; the
// next consumer started with the same ID moves it back to ready.
package redisqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"welfare/internal/platform/metrics"
	"welfare/internal/queue"
)

const (
	backendName  = "redis"
	blockTimeout = time.Second
	promoteBatch = 100
)

// promoteScript moves due delayed jobs onto the ready list atomically.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, job in ipairs(due) do
	redis.call('ZREM', KEYS[1], job)
	redis.call('LPUSH', KEYS[2], job)
end
return #due
`)

type Queue struct {
	client  *redis.Client
	name    string
	policy  queue.RetryPolicy
	logger  *slog.Logger
	metrics *metrics.Queue
	now     func() time.Time
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

func New(client *redis.Client, name string, opts ...Option) *Queue {
	q := &Queue{
		client: client,
		name:   name,
		policy: queue.DefaultRetryPolicy(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue) readyKey() string               { return q.name + ":ready" }
func (q *Queue) delayedKey() string             { return q.name + ":delayed" }
func (q *Queue) deadKey() string                { return q.name + ":dead" }
func (q *Queue) processingKey(id string) string { return q.name + ":processing:" + id }

func (q *Queue) Publish(ctx context.Context, job queue.Job) error {
	raw, err := job.Encode()
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.readyKey(), raw).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	q.metrics.IncPublished(backendName, string(job.Kind))
	return nil
}

// Consumer binds the queue to a stable consumer ID. Use one ID per consumer
// goroutine, stable across restarts (e.g. hostname plus index).
func (q *Queue) Consumer(id string) *Consumer {
	return &Consumer{q: q, id: id}
}

type Consumer struct {
	q  *Queue
	id string
}

// Group gives every Consume call its own consumer ID, <prefix>-1,
// <prefix>-2 and so on, so one Group can back queue.RunConsumers.
func (q *Queue) Group(prefix string) *Group {
	return &Group{q: q, prefix: prefix}
}

type Group struct {
	q      *Queue
	prefix string
	next   atomic.Int64
}

func (g *Group) Consume(ctx context.Context, h queue.Handler) error {
	id := fmt.Sprintf("%s-%d", g.prefix, g.next.Add(1))
	return g.q.Consumer(id).Consume(ctx, h)
}

// Consume blocks delivering jobs to h until ctx is cancelled.
func (c *Consumer) Consume(ctx context.Context, h queue.Handler) error {
	q := c.q
	processing := q.processingKey(c.id)

	if n, err := q.recover(ctx, processing); err != nil {
		return err
	} else if n > 0 {
		q.logger.WarnContext(ctx, "requeued jobs left by previous run", "consumer", c.id, "count", n)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := q.PromoteDue(ctx); err != nil && ctx.Err() == nil {
			q.logger.ErrorContext(ctx, "promote delayed jobs failed", "error", err)
		}

		raw, err := q.client.BLMove(ctx, q.readyKey(), processing, "RIGHT", "LEFT", blockTimeout).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			q.logger.ErrorContext(ctx, "redis dequeue failed", "error", err)
			if !sleep(ctx, blockTimeout) {
				return nil
			}
			continue
		}

		q.deliver(ctx, h, processing, raw)
	}
}

func (q *Queue) deliver(ctx context.Context, h queue.Handler, processing, raw string) {
	job, err := queue.DecodeJob([]byte(raw))
	if err != nil {
		q.logger.ErrorContext(ctx, "dropping undecodable job", "error", err)
		q.ack(ctx, processing, raw)
		return
	}

	start := time.Now()
	handleErr := h.HandleJob(ctx, job)
	if handleErr == nil {
		q.metrics.ObserveHandled(string(job.Kind), metrics.OutcomeSuccess, start)
		q.ack(ctx, processing, raw)
		return
	}

	next, delay, retry := q.policy.Next(job)
	encoded, err := next.Encode()
	if err != nil {
		q.logger.ErrorContext(ctx, "re-encode failed job", "job_id", job.ID, "error", err)
		q.ack(ctx, processing, raw)
		return
	}

	// Detached so a shutdown mid-handling still records the outcome.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if retry {
		q.logger.WarnContext(ctx, "job failed, scheduling retry",
			"job_id", job.ID, "kind", job.Kind, "attempt", next.Attempt, "delay", delay, "error", handleErr)
		q.metrics.ObserveHandled(string(job.Kind), metrics.OutcomeRetry, start)
		due := q.now().Add(delay).UnixMilli()
		_, err = q.client.TxPipelined(wctx, func(pipe redis.Pipeliner) error {
			pipe.ZAdd(wctx, q.delayedKey(), redis.Z{Score: float64(due), Member: encoded})
			pipe.LRem(wctx, processing, 1, raw)
			return nil
		})
	} else {
		q.logger.ErrorContext(ctx, "job exhausted retries, dead-lettering",
			"job_id", job.ID, "kind", job.Kind, "attempts", next.Attempt, "error", handleErr)
		q.metrics.ObserveHandled(string(job.Kind), metrics.OutcomeDeadLetter, start)
		_, err = q.client.TxPipelined(wctx, func(pipe redis.Pipeliner) error {
			pipe.LPush(wctx, q.deadKey(), encoded)
			pipe.LRem(wctx, processing, 1, raw)
			return nil
		})
	}
	if err != nil {
		q.logger.ErrorContext(ctx, "record job failure", "job_id", job.ID, "error", err)
	}
}

func (q *Queue) ack(ctx context.Context, processing, raw string) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := q.client.LRem(wctx, processing, 1, raw).Err(); err != nil {
		q.logger.ErrorContext(ctx, "ack job failed", "error", err)
	}
}

// PromoteDue moves delayed jobs whose due time has passed onto ready.
func (q *Queue) PromoteDue(ctx context.Context) (int, error) {
	now := strconv.FormatInt(q.now().UnixMilli(), 10)
	n, err := promoteScript.Run(ctx, q.client,
		[]string{q.delayedKey(), q.readyKey()}, now, promoteBatch).Int()
	if err != nil {
		return 0, fmt.Errorf("promote delayed jobs: %w", err)
	}
	return n, nil
}

func (q *Queue) recover(ctx context.Context, processing string) (int, error) {
	n := 0
	for {
		err := q.client.LMove(ctx, processing, q.readyKey(), "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("recover processing list: %w", err)
		}
		n++
	}
}

// DeadLetters returns up to limit dead-lettered jobs, newest first.
func (q *Queue) DeadLetters(ctx context.Context, limit int64) ([]queue.Job, error) {
	raws, err := q.client.LRange(ctx, q.deadKey(), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	out := make([]queue.Job, 0, len(raws))
	for _, raw := range raws {
		job, err := queue.DecodeJob([]byte(raw))
		if err != nil {
			continue
		}
		out = append(out, job)
	}
	return out, nil
}

// Depth reports ready and delayed job counts.
func (q *Queue) Depth(ctx context.Context) (ready, delayed int64, err error) {
	pipe := q.client.Pipeline()
	readyCmd := pipe.LLen(ctx, q.readyKey())
	delayedCmd := pipe.ZCard(ctx, q.delayedKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("queue depth: %w", err)
	}
	return readyCmd.Val(), delayedCmd.Val(), nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
