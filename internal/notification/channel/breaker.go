package channel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"welfare/pkg/platform/circuit"
	"welfare/pkg/platform/sentinel"
)

// Sender is the outbound channel contract.
type Sender interface {
	Send(ctx context.Context, contact, message string) error
}

// Breaker wraps a Sender with a circuit breaker. While open, sends fail fast
// with sentinel.ErrUnavailable; one probe is let through per cooldown.
type Breaker struct {
	next     Sender
	breaker  *circuit.Breaker
	cooldown time.Duration
	logger   *slog.Logger
	onChange func(open bool)
	now      func() time.Time

	mu        sync.Mutex
	lastProbe time.Time
}

type BreakerOption func(*Breaker)

func WithCooldown(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		b.cooldown = d
	}
}

func WithBreakerLogger(logger *slog.Logger) BreakerOption {
	return func(b *Breaker) {
		b.logger = logger
	}
}

// WithStateHook is called whenever the circuit opens or closes.
func WithStateHook(fn func(open bool)) BreakerOption {
	return func(b *Breaker) {
		b.onChange = fn
	}
}

func NewBreaker(next Sender, breaker *circuit.Breaker, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		next:     next,
		breaker:  breaker,
		cooldown: 30 * time.Second,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Breaker) Send(ctx context.Context, contact, message string) error {
	if b.breaker.IsOpen() && !b.allowProbe() {
		return fmt.Errorf("%w: circuit %s open", sentinel.ErrUnavailable, b.breaker.Name())
	}

	if err := b.next.Send(ctx, contact, message); err != nil {
		if _, change := b.breaker.RecordFailure(); change.Opened {
			b.mu.Lock()
			b.lastProbe = b.now()
			b.mu.Unlock()
			b.logger.WarnContext(ctx, "notification channel circuit opened", "circuit", b.breaker.Name(), "error", err)
			b.notify(true)
		}
		return err
	}
	if _, change := b.breaker.RecordSuccess(); change.Closed {
		b.logger.InfoContext(ctx, "notification channel circuit closed", "circuit", b.breaker.Name())
		b.notify(false)
	}
	return nil
}

func (b *Breaker) allowProbe() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	if now.Sub(b.lastProbe) < b.cooldown {
		return false
	}
	b.lastProbe = now
	return true
}

func (b *Breaker) notify(open bool) {
	if b.onChange != nil {
		b.onChange(open)
	}
}
