package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"time"

	"welfare/internal/citizen"
	citizenstore "welfare/internal/citizen/store"
	ledgerstore "welfare/internal/ledger/store"
	"welfare/internal/notification"
	notificationstore "welfare/internal/notification/store"
	outboxstore "welfare/internal/outbox/store"
	"welfare/internal/platform/config"
	"welfare/internal/platform/logger"
	"welfare/internal/platform/postgres"
	schemeservice "welfare/internal/scheme/service"
	schemestore "welfare/internal/scheme/store"
	"welfare/internal/settlement"
	dErrors "welfare/pkg/domain-errors"
	"welfare/pkg/platform/sentinel"
)

// app holds what every command needs once flags are parsed.
type app struct {
	cfg config.Config
	log *slog.Logger
	db  *sql.DB

	operatorPhone string
}

func (a *app) open(ctx context.Context) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid configuration: "+err.Error())
	}
	a.cfg = cfg
	a.log = logger.NewWithWriter(os.Stderr, cfg.LogLevel)
	slog.SetDefault(a.log)

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "database unavailable")
	}
	a.db = db
	return nil
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

// operator resolves --as to the acting citizen.
func (a *app) operator(ctx context.Context) (citizen.Actor, error) {
	if a.operatorPhone == "" {
		return citizen.Actor{}, dErrors.New(dErrors.CodeInvalidInput, "--as is required")
	}
	c, err := citizenstore.NewPostgres(a.db).FindByPhone(ctx, a.operatorPhone)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return citizen.Actor{}, dErrors.New(dErrors.CodeForbidden, "unknown operator")
		}
		return citizen.Actor{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load operator")
	}
	return c.Actor(), nil
}

func (a *app) schemes() *schemeservice.Service {
	return schemeservice.New(
		schemestore.NewPostgres(a.db),
		ledgerstore.NewPostgres(a.db),
		outboxstore.NewPostgres(a.db),
		postgres.NewTransactor(a.db),
		schemeservice.WithLogger(a.log),
	)
}

func (a *app) settlement() *settlement.Service {
	citizens := citizenstore.NewPostgres(a.db)
	notifier := notification.NewNotifier(notificationstore.NewPostgres(a.db), outboxstore.NewPostgres(a.db), time.Now)
	gateway := settlement.NewSimulatedGateway(a.cfg.Settlement.SuccessRate, a.cfg.Settlement.Seed)
	return settlement.New(
		ledgerstore.NewPostgres(a.db),
		schemestore.NewPostgres(a.db),
		citizens,
		notifier,
		gateway,
		postgres.NewTransactor(a.db),
		settlement.WithLogger(a.log),
	)
}
