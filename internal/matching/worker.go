// Package matching scans the citizen population for a scheme and records
// every new match exactly once.
package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"welfare/internal/citizen"
	"welfare/internal/eligibility"
	"welfare/internal/ledger"
	"welfare/internal/notification"
	"welfare/internal/queue"
	"welfare/internal/scheme"
	"welfare/pkg/domain"
	"welfare/pkg/platform/sentinel"
	"welfare/pkg/platform/tx"
)

const defaultBatchSize = 500

// ErrPartialScan is returned when some matches could not be written. The
// scan is safe to rerun in full, so the job should be redelivered.
var ErrPartialScan = errors.New("scan completed with write errors")

type SchemeStore interface {
	FindByID(ctx context.Context, id domain.SchemeID) (*scheme.Scheme, error)
}

type CitizenStore interface {
	ListCandidates(ctx context.Context, q citizen.CandidateQuery) ([]citizen.Citizen, error)
}

// Ledger must make CreateIfAbsent atomic: concurrent calls for one pair
// create exactly one record and leave an existing record untouched.
type Ledger interface {
	CreateIfAbsent(ctx context.Context, rec *ledger.MatchRecord) (bool, error)
}

type Notifier interface {
	Notify(ctx context.Context, to notification.Recipient, kind notification.Kind, message string) (bool, error)
}

// Summary describes one scan.
type Summary struct {
	SchemeID         domain.SchemeID
	Scanned          int
	Matched          int
	Created          int
	AlreadyMatched   int
	EvaluationErrors int
	WriteErrors      int
	Duration         time.Duration
}

type Worker struct {
	schemes   SchemeStore
	citizens  CitizenStore
	ledger    Ledger
	notifier  Notifier
	tx        tx.Runner
	logger    *slog.Logger
	metrics   *Metrics
	tracer    trace.Tracer
	now       func() time.Time
	batchSize int
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		w.now = now
	}
}

func New(schemes SchemeStore, citizens CitizenStore, ledger Ledger, notifier Notifier, runner tx.Runner, opts ...Option) *Worker {
	w := &Worker{
		schemes:   schemes,
		citizens:  citizens,
		ledger:    ledger,
		notifier:  notifier,
		tx:        runner,
		logger:    slog.Default(),
		tracer:    otel.Tracer("welfare/matching"),
		now:       time.Now,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HandleJob runs a scan-scheme job. Payloads that cannot name a scheme are
// logged and acknowledged.
func (w *Worker) HandleJob(ctx context.Context, job queue.Job) error {
	var payload queue.ScanSchemePayload
	if err := job.Decode(&payload); err != nil {
		w.logger.ErrorContext(ctx, "dropping malformed scan job", "job_id", job.ID, "error", err)
		return nil
	}
	schemeID, err := domain.ParseSchemeID(payload.SchemeID)
	if err != nil {
		w.logger.ErrorContext(ctx, "dropping scan job with invalid scheme id",
			"job_id", job.ID,
			"scheme_id", payload.SchemeID,
			"error", err,
		)
		return nil
	}
	_, err = w.ScanScheme(ctx, schemeID)
	return err
}

// ScanScheme evaluates every candidate for the scheme. A missing scheme is a
// no-op. Per-candidate failures are counted and never stop the scan; only
// failures to read the population abort it.
func (w *Worker) ScanScheme(ctx context.Context, schemeID domain.SchemeID) (Summary, error) {
	start := time.Now()
	summary := Summary{SchemeID: schemeID}

	ctx, span := w.tracer.Start(ctx, "matching.ScanScheme", trace.WithAttributes(
		attribute.String("scheme.id", schemeID.String()),
	))
	defer span.End()

	sc, err := w.schemes.FindByID(ctx, schemeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			w.logger.InfoContext(ctx, "scheme not found, skipping scan", "scheme_id", schemeID)
			return summary, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "load scheme")
		return summary, fmt.Errorf("load scheme %s: %w", schemeID, err)
	}

	policy := eligibility.Compile(*sc)
	if err := policy.Err(); err != nil {
		w.logger.WarnContext(ctx, "scheme rule set is malformed, no citizen can match",
			"scheme_id", schemeID,
			"error", err,
		)
	}
	if ignored := policy.Ignored(); len(ignored) > 0 {
		w.logger.WarnContext(ctx, "scheme rule set has unknown keys", "scheme_id", schemeID, "keys", ignored)
	}

	query := citizen.CandidateQuery{State: sc.CandidateState(), Limit: w.batchSize}
	for {
		if err := ctx.Err(); err != nil {
			return w.finish(ctx, span, summary, start, err)
		}
		page, err := w.citizens.ListCandidates(ctx, query)
		if err != nil {
			return w.finish(ctx, span, summary, start, fmt.Errorf("list candidates: %w", err))
		}
		for _, c := range page {
			w.scanOne(ctx, sc, policy, c, &summary)
		}
		if len(page) < w.batchSize {
			break
		}
		query.After = page[len(page)-1].ID
	}

	var scanErr error
	if summary.WriteErrors > 0 {
		scanErr = fmt.Errorf("%w: %d of %d matches not recorded", ErrPartialScan, summary.WriteErrors, summary.Matched)
	}
	return w.finish(ctx, span, summary, start, scanErr)
}

func (w *Worker) scanOne(ctx context.Context, sc *scheme.Scheme, policy *eligibility.Policy, c citizen.Citizen, summary *Summary) {
	summary.Scanned++

	decision := policy.Evaluate(c)
	if decision.Err != nil {
		summary.EvaluationErrors++
		// Malformed rules were reported once for the whole scan.
		if decision.Reason == eligibility.ReasonMalformedRules {
			return
		}
		w.logger.WarnContext(ctx, "eligibility evaluation failed, treating as not eligible",
			"scheme_id", sc.ID,
			"citizen_id", c.ID,
			"reason", decision.Reason,
			"error", decision.Err,
		)
		return
	}
	if !decision.Eligible {
		return
	}
	summary.Matched++

	created, err := w.recordMatch(ctx, sc, c)
	if err != nil {
		summary.WriteErrors++
		w.logger.ErrorContext(ctx, "failed to record match",
			"scheme_id", sc.ID,
			"citizen_id", c.ID,
			"error", err,
		)
		return
	}
	if created {
		summary.Created++
	} else {
		summary.AlreadyMatched++
	}
}

// recordMatch creates the match and, only when it is new, its notification
// and delivery job, all in one unit of work.
func (w *Worker) recordMatch(ctx context.Context, sc *scheme.Scheme, c citizen.Citizen) (bool, error) {
	var created bool
	err := w.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = w.ledger.CreateIfAbsent(ctx, ledger.NewMatch(c.ID, sc.ID, w.now()))
		if err != nil || !created {
			return err
		}
		_, err = w.notifier.Notify(ctx,
			notification.Recipient{ID: c.ID, Phone: c.Phone},
			notification.KindSchemeMatch,
			notification.MatchMessage(sc.Title),
		)
		return err
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (w *Worker) finish(ctx context.Context, span trace.Span, summary Summary, start time.Time, err error) (Summary, error) {
	summary.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("scan.scanned", summary.Scanned),
		attribute.Int("scan.matched", summary.Matched),
		attribute.Int("scan.created", summary.Created),
	)
	w.metrics.ObserveScan(summary)

	attrs := []any{
		"scheme_id", summary.SchemeID,
		"scanned", summary.Scanned,
		"matched", summary.Matched,
		"created", summary.Created,
		"already_matched", summary.AlreadyMatched,
		"evaluation_errors", summary.EvaluationErrors,
		"write_errors", summary.WriteErrors,
		"duration", summary.Duration,
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan incomplete")
		w.logger.ErrorContext(ctx, "scheme scan incomplete", append(attrs, "error", err)...)
		return summary, err
	}
	w.logger.InfoContext(ctx, "scheme scan complete", attrs...)
	return summary, nil
}
