// Command worker runs the background side of the pipeline: the outbox
// relay, the queue consumers (scheme scans and notification delivery) and
// the ops endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	citizenstore "welfare/internal/citizen/store"
	ledgerstore "welfare/internal/ledger/store"
	"welfare/internal/matching"
	"welfare/internal/notification"
	"welfare/internal/notification/channel"
	"welfare/internal/notification/dispatcher"
	notificationstore "welfare/internal/notification/store"
	"welfare/internal/outbox"
	outboxstore "welfare/internal/outbox/store"
	"welfare/internal/platform/config"
	"welfare/internal/platform/httpserver"
	"welfare/internal/platform/logger"
	"welfare/internal/platform/metrics"
	"welfare/internal/platform/postgres"
	"welfare/internal/queue"
	schemestore "welfare/internal/scheme/store"
	"welfare/pkg/platform/circuit"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db, log); err != nil {
		return err
	}

	queueMetrics := metrics.New()
	b, err := openBackend(ctx, cfg, log, queueMetrics)
	if err != nil {
		return err
	}
	defer b.close()

	transactor := postgres.NewTransactor(db)
	citizens := citizenstore.NewPostgres(db)
	outboxStore := outboxstore.NewPostgres(db)
	notifier := notification.NewNotifier(notificationstore.NewPostgres(db), outboxStore, time.Now)

	scanner := matching.New(
		schemestore.NewPostgres(db),
		citizens,
		ledgerstore.NewPostgres(db),
		notifier,
		transactor,
		matching.WithLogger(log),
		matching.WithMetrics(matching.NewMetrics()),
		matching.WithBatchSize(cfg.Worker.ScanBatchSize),
	)

	router := queue.NewRouter(log, queue.WithRouterMetrics(queueMetrics))
	router.Register(queue.KindScanScheme, scanner)
	router.Register(queue.KindSendNotification, newDispatcher(cfg.Notification, log))

	relay := outbox.NewRelay(outboxStore, b.publisher, transactor,
		outbox.WithLogger(log),
		outbox.WithMetrics(queueMetrics),
		outbox.WithBatchSize(cfg.Outbox.BatchSize),
		outbox.WithPollInterval(cfg.Outbox.PollInterval),
	)

	checks := map[string]httpserver.HealthCheck{"postgres": db.PingContext}
	if b.health != nil {
		checks[cfg.Queue.Backend] = b.health
	}
	ops := httpserver.New(cfg.OpsAddr, httpserver.NewOpsRouter(checks))

	log.InfoContext(ctx, "worker starting",
		"queue_backend", cfg.Queue.Backend,
		"concurrency", cfg.Worker.Concurrency,
		"ops_addr", cfg.OpsAddr,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return queue.RunConsumers(gctx, b.consumer, router, cfg.Worker.Concurrency)
	})
	g.Go(func() error {
		return relay.Run(gctx)
	})
	g.Go(func() error {
		if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return ops.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info("worker stopped")
	return err
}

func newDispatcher(cfg config.NotificationConfig, log *slog.Logger) *dispatcher.Dispatcher {
	var sender channel.Sender = channel.NewLog(log)
	if cfg.WebhookURL != "" {
		sender = channel.NewWebhook(cfg.WebhookURL, cfg.WebhookTimeout)
	}
	dm := dispatcher.NewMetrics()
	guarded := channel.NewBreaker(sender,
		circuit.New("sms", circuit.WithFailureThreshold(cfg.FailureThreshold)),
		channel.WithBreakerLogger(log),
		channel.WithStateHook(dm.SetCircuitBreakerState),
	)
	return dispatcher.New(guarded, dispatcher.WithLogger(log), dispatcher.WithMetrics(dm))
}
