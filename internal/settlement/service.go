// Package settlement disburses scheme payments for matched citizens and
// records the outcome on the match record.
package settlement

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"welfare/internal/citizen"
	"welfare/internal/ledger"
	"welfare/internal/notification"
	"welfare/internal/scheme"
	"welfare/pkg/domain"
	dErrors "welfare/pkg/domain-errors"
	"welfare/pkg/platform/sentinel"
	"welfare/pkg/platform/tx"
)

type Ledger interface {
	// FindForUpdate loads a record and holds it until the unit of work ends.
	FindForUpdate(ctx context.Context, id domain.MatchID) (*ledger.MatchRecord, error)
	UpdateSettlement(ctx context.Context, rec *ledger.MatchRecord) error
}

type SchemeStore interface {
	FindByID(ctx context.Context, id domain.SchemeID) (*scheme.Scheme, error)
}

type CitizenStore interface {
	FindByID(ctx context.Context, id domain.CitizenID) (*citizen.Citizen, error)
}

type Notifier interface {
	Notify(ctx context.Context, to notification.Recipient, kind notification.Kind, message string) (bool, error)
}

// Result is what an official sees after a settlement attempt.
type Result struct {
	MatchID       domain.MatchID
	Status        ledger.Status
	TransactionID string
	PaymentDate   *time.Time
	Message       string
}

type Service struct {
	ledger    Ledger
	schemes   SchemeStore
	citizens  CitizenStore
	notifier  Notifier
	disburser Disburser
	tx        tx.Runner
	txIDs     *TxIDGenerator
	logger    *slog.Logger
	metrics   *Metrics
	tracer    trace.Tracer
	now       func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithTxIDGenerator(g *TxIDGenerator) Option {
	return func(s *Service) {
		s.txIDs = g
	}
}

func New(ledger Ledger, schemes SchemeStore, citizens CitizenStore, notifier Notifier, disburser Disburser, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		ledger:    ledger,
		schemes:   schemes,
		citizens:  citizens,
		notifier:  notifier,
		disburser: disburser,
		tx:        runner,
		logger:    slog.Default(),
		tracer:    otel.Tracer("welfare/settlement"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.txIDs == nil {
		s.txIDs = NewTxIDGenerator()
	}
	return s
}

// Settle attempts one disbursement for a match record. A declined transfer
// is not an error: the record moves to PAYMENT_FAILED and the result says
// so. Settling again after a failure is the only retry. PAID records are
// final and are never disbursed twice.
func (s *Service) Settle(ctx context.Context, actor citizen.Actor, matchID domain.MatchID) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "settlement.Settle", trace.WithAttributes(
		attribute.String("match.id", matchID.String()),
	))
	defer span.End()

	if !actor.IsOfficial() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only officials can process payments")
	}
	if matchID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "application id is required")
	}

	start := time.Now()
	var result *Result
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		result, err = s.settle(txCtx, matchID)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "settle")
		s.metrics.ObserveSettlement(outcomeError, start)
		return nil, err
	}

	span.SetAttributes(attribute.String("settlement.status", string(result.Status)))
	s.metrics.ObserveSettlement(string(result.Status), start)
	s.logger.InfoContext(ctx, "settlement processed",
		"match_id", matchID,
		"actor_id", actor.ID,
		"status", result.Status,
		"transaction_id", result.TransactionID,
	)
	return result, nil
}

func (s *Service) settle(ctx context.Context, matchID domain.MatchID) (*Result, error) {
	rec, err := s.ledger.FindForUpdate(ctx, matchID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "application not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load application")
	}
	if rec.Status == ledger.StatusPaid {
		return nil, dErrors.New(dErrors.CodeInvalidState, "application is already paid")
	}

	sc, err := s.schemes.FindByID(ctx, rec.SchemeID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load scheme")
	}
	beneficiary, err := s.citizens.FindByID(ctx, rec.CitizenID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load beneficiary")
	}

	derr := s.disburser.Disburse(ctx, Disbursement{
		MatchID:     rec.ID,
		CitizenID:   rec.CitizenID,
		Amount:      sc.Amount,
		BankAccount: beneficiary.BankAccount,
		IFSC:        beneficiary.IFSC,
	})
	now := s.now()

	if derr != nil {
		s.logger.WarnContext(ctx, "disbursement failed",
			"match_id", rec.ID,
			"attempt", rec.Attempts+1,
			"error", derr,
		)
		if err := rec.MarkFailed(derr.Error(), now); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidState, "application cannot be settled")
		}
		if err := s.save(ctx, rec); err != nil {
			return nil, err
		}
		return &Result{
			MatchID: rec.ID,
			Status:  rec.Status,
			Message: "Bank transaction failed. Please try again",
		}, nil
	}

	txnID := s.txIDs.Next(now)
	if err := rec.MarkPaid(txnID, now); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidState, "application cannot be settled")
	}
	if err := s.save(ctx, rec); err != nil {
		return nil, err
	}

	if _, err := s.notifier.Notify(ctx,
		notification.Recipient{ID: beneficiary.ID, Phone: beneficiary.Phone},
		notification.KindPayment,
		notification.PaymentMessage(sc.Amount, sc.Title, txnID),
	); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record payment notification")
	}

	return &Result{
		MatchID:       rec.ID,
		Status:        rec.Status,
		TransactionID: txnID,
		PaymentDate:   rec.PaymentDate,
		Message:       "Payment successful",
	}, nil
}

func (s *Service) save(ctx context.Context, rec *ledger.MatchRecord) error {
	err := s.ledger.UpdateSettlement(ctx, rec)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeInvalidState, "application is already paid")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "application not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "transaction reference already used")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record settlement")
	}
}
