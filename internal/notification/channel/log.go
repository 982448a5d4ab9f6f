// Package channel holds the outbound notification channels.
package channel

import (
	"context"
	"log/slog"
)

// Log simulates an SMS gateway by writing each message as a log line.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Send(ctx context.Context, contact, message string) error {
	l.logger.InfoContext(ctx, "sms simulated",
		"to", contact,
		"message", message,
	)
	return nil
}

func (l *Log) Name() string { return "log" }
