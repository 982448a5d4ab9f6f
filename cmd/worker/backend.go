package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"welfare/internal/platform/config"
	"welfare/internal/platform/httpserver"
	"welfare/internal/platform/kafka"
	"welfare/internal/platform/metrics"
	"welfare/internal/platform/redis"
	"welfare/internal/queue"
	"welfare/internal/queue/kafkaqueue"
	"welfare/internal/queue/memory"
	"welfare/internal/queue/redisqueue"
)

const memoryQueueCapacity = 1024

// backend is the selected queue implementation.
type backend struct {
	publisher queue.Publisher
	consumer  queue.Consumer
	health    httpserver.HealthCheck
	close     func()
}

func openBackend(ctx context.Context, cfg config.Config, log *slog.Logger, m *metrics.Queue) (*backend, error) {
	policy := queue.RetryPolicy{
		MaxAttempts: cfg.Queue.MaxAttempts,
		BaseDelay:   cfg.Queue.RetryBaseDelay,
		MaxDelay:    cfg.Queue.RetryMaxDelay,
	}

	switch cfg.Queue.Backend {
	case config.QueueBackendRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		if client == nil {
			return nil, fmt.Errorf("REDIS_URL is required for the redis queue backend")
		}
		q := redisqueue.New(client.Client, cfg.Queue.Name,
			redisqueue.WithLogger(log),
			redisqueue.WithMetrics(m),
			redisqueue.WithRetryPolicy(policy),
		)
		return &backend{
			publisher: q,
			consumer:  q.Group(consumerPrefix()),
			health:    client.Health,
			close:     func() { _ = client.Close() },
		}, nil

	case config.QueueBackendKafka:
		producer, err := kafka.New(ctx, cfg.Kafka)
		if err != nil {
			return nil, err
		}
		if err := kafka.EnsureTopics(ctx, producer, cfg.Kafka); err != nil {
			producer.Close()
			return nil, err
		}
		q := kafkaqueue.New(producer, cfg.Kafka,
			kafkaqueue.WithLogger(log),
			kafkaqueue.WithMetrics(m),
			kafkaqueue.WithRetryPolicy(policy),
		)
		return &backend{
			publisher: q,
			consumer:  q,
			health:    producer.Ping,
			close:     producer.Close,
		}, nil

	default:
		log.Warn("using in-process memory queue; jobs are lost on exit")
		q := memory.New(memoryQueueCapacity,
			memory.WithLogger(log),
			memory.WithMetrics(m),
			memory.WithRetryPolicy(policy),
		)
		return &backend{publisher: q, consumer: q, close: q.Close}, nil
	}
}

// consumerPrefix is stable across restarts of the same host, so a restarted
// worker reclaims the jobs its previous run was holding.
func consumerPrefix() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "worker"
	}
	return host
}
