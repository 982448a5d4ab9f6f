package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"welfare/pkg/platform/strutil"
)

// Queue backends accepted by QUEUE_BACKEND.
const (
	QueueBackendRedis  = "redis"
	QueueBackendKafka  = "kafka"
	QueueBackendMemory = "memory"
)

// Config is the full process configuration for the worker and the CLI.
type Config struct {
	LogLevel     string
	DatabaseURL  string
	Redis        RedisConfig
	Kafka        KafkaConfig
	Queue        QueueConfig
	Worker       WorkerConfig
	Outbox       OutboxConfig
	Settlement   SettlementConfig
	Notification NotificationConfig
	OpsAddr      string
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers         []string
	Topic           string
	DeadLetterTopic string
	ConsumerGroup   string
	Partitions      int32
}

type QueueConfig struct {
	Backend        string
	Name           string
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

type WorkerConfig struct {
	Concurrency   int
	ScanBatchSize int
}

type OutboxConfig struct {
	BatchSize    int
	PollInterval time.Duration
}

type SettlementConfig struct {
	SuccessRate float64
	// Seed of the simulated gateway's random source; 0 seeds from the clock.
	Seed int64
}

type NotificationConfig struct {
	// WebhookURL switches outbound messages from the log channel to an HTTP
	// SMS gateway when set.
	WebhookURL       string
	WebhookTimeout   time.Duration
	FailureThreshold int
}

// FromEnv builds a Config from environment variables, loading an optional
// .env file first. Variables already set in the environment win.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	p := &parser{}
	cfg := Config{
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		OpsAddr:     getEnv("OPS_ADDR", ":9090"),
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", ""),
			PoolSize:     p.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:         strutil.SplitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			Topic:           getEnv("KAFKA_TOPIC", "welfare.jobs"),
			DeadLetterTopic: getEnv("KAFKA_DEAD_LETTER_TOPIC", "welfare.jobs.dlq"),
			ConsumerGroup:   getEnv("KAFKA_CONSUMER_GROUP", "welfare-worker"),
			Partitions:      int32(p.int("KAFKA_PARTITIONS", 6)),
		},
		Queue: QueueConfig{
			Backend:        strings.ToLower(getEnv("QUEUE_BACKEND", QueueBackendRedis)),
			Name:           getEnv("QUEUE_NAME", "welfare:jobs"),
			MaxAttempts:    p.int("QUEUE_MAX_ATTEMPTS", 5),
			RetryBaseDelay: p.duration("QUEUE_RETRY_BASE_DELAY", 2*time.Second),
			RetryMaxDelay:  p.duration("QUEUE_RETRY_MAX_DELAY", 5*time.Minute),
		},
		Worker: WorkerConfig{
			Concurrency:   p.int("WORKER_CONCURRENCY", 4),
			ScanBatchSize: p.int("WORKER_SCAN_BATCH_SIZE", 500),
		},
		Outbox: OutboxConfig{
			BatchSize:    p.int("OUTBOX_BATCH_SIZE", 100),
			PollInterval: p.duration("OUTBOX_POLL_INTERVAL", time.Second),
		},
		Settlement: SettlementConfig{
			SuccessRate: p.float("SETTLEMENT_SUCCESS_RATE", 0.9),
			Seed:        int64(p.int("SETTLEMENT_SEED", 0)),
		},
		Notification: NotificationConfig{
			WebhookURL:       getEnv("SMS_WEBHOOK_URL", ""),
			WebhookTimeout:   p.duration("SMS_WEBHOOK_TIMEOUT", 5*time.Second),
			FailureThreshold: p.int("SMS_BREAKER_FAILURE_THRESHOLD", 5),
		},
	}
	if p.err != nil {
		return Config{}, p.err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Queue.Backend {
	case QueueBackendRedis, QueueBackendKafka, QueueBackendMemory:
	default:
		return fmt.Errorf("QUEUE_BACKEND must be one of redis, kafka, memory: got %q", c.Queue.Backend)
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	if c.Worker.ScanBatchSize < 1 {
		return fmt.Errorf("WORKER_SCAN_BATCH_SIZE must be at least 1")
	}
	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("QUEUE_MAX_ATTEMPTS must be at least 1")
	}
	if c.Settlement.SuccessRate < 0 || c.Settlement.SuccessRate > 1 {
		return fmt.Errorf("SETTLEMENT_SUCCESS_RATE must be within [0,1]")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// parser keeps the first parse error so FromEnv reads as a flat literal.
type parser struct {
	err error
}

func (p *parser) int(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func (p *parser) float(key string, fallback float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func (p *parser) fail(key, raw string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s=%q: %w", key, raw, err)
	}
}
