// Package service is the officer-facing scheme tier: creating schemes,
// requesting rescans and listing the resulting applications.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"welfare/internal/citizen"
	"welfare/internal/eligibility"
	"welfare/internal/ledger"
	"welfare/internal/outbox"
	"welfare/internal/queue"
	"welfare/internal/scheme"
	"welfare/pkg/domain"
	dErrors "welfare/pkg/domain-errors"
	"welfare/pkg/platform/sentinel"
	"welfare/pkg/platform/tx"
)

type Store interface {
	Create(ctx context.Context, sc *scheme.Scheme) error
	FindByID(ctx context.Context, id domain.SchemeID) (*scheme.Scheme, error)
}

type ApplicationLister interface {
	ListApplications(ctx context.Context, schemeID domain.SchemeID) ([]ledger.Application, error)
}

type CreateRequest struct {
	Title       string
	Description string
	Category    string
	Amount      int64
	State       string
	District    string
	Criteria    json.RawMessage
}

type Service struct {
	schemes      Store
	applications ApplicationLister
	outbox       outbox.Writer
	tx           tx.Runner
	logger       *slog.Logger
	now          func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(schemes Store, applications ApplicationLister, out outbox.Writer, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		schemes:      schemes,
		applications: applications,
		outbox:       out,
		tx:           runner,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a scheme and, in the same unit of work, queues exactly one
// population scan for it.
func (s *Service) Create(ctx context.Context, actor citizen.Actor, req CreateRequest) (*scheme.Scheme, error) {
	if !actor.IsOfficial() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only officials can create schemes")
	}
	sc, err := s.buildScheme(ctx, actor, req)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.schemes.Create(txCtx, sc); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "scheme already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create scheme")
		}
		return s.enqueueScan(txCtx, sc.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "scheme created, scan queued",
		"scheme_id", sc.ID,
		"title", sc.Title,
		"state", sc.State,
		"district", sc.District,
		"created_by", actor.ID,
	)
	return sc, nil
}

// Rescan queues another population scan. Scans are idempotent, so this only
// picks up citizens who became eligible since the last one.
func (s *Service) Rescan(ctx context.Context, actor citizen.Actor, schemeID domain.SchemeID) error {
	if !actor.IsOfficial() {
		return dErrors.New(dErrors.CodeForbidden, "only officials can rescan schemes")
	}
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.find(txCtx, schemeID); err != nil {
			return err
		}
		if err := s.enqueueScan(txCtx, schemeID); err != nil {
			return err
		}
		s.logger.InfoContext(ctx, "scheme rescan queued", "scheme_id", schemeID, "requested_by", actor.ID)
		return nil
	})
}

// Applications lists every match for a scheme with the beneficiary's
// contact and bank details.
func (s *Service) Applications(ctx context.Context, actor citizen.Actor, schemeID domain.SchemeID) ([]ledger.Application, error) {
	if !actor.IsOfficial() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only officials can view applications")
	}
	if _, err := s.find(ctx, schemeID); err != nil {
		return nil, err
	}
	apps, err := s.applications.ListApplications(ctx, schemeID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list applications")
	}
	return apps, nil
}

func (s *Service) find(ctx context.Context, id domain.SchemeID) (*scheme.Scheme, error) {
	sc, err := s.schemes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "scheme not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load scheme")
	}
	return sc, nil
}

func (s *Service) enqueueScan(ctx context.Context, id domain.SchemeID) error {
	job, err := queue.NewJob(queue.KindScanScheme, queue.ScanSchemePayload{SchemeID: id.String()}, s.now())
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to build scan job")
	}
	if err := s.outbox.Add(ctx, job); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to queue scan")
	}
	return nil
}

func (s *Service) buildScheme(ctx context.Context, actor citizen.Actor, req CreateRequest) (*scheme.Scheme, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if req.Amount < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "amount must not be negative")
	}

	criteria := bytes.TrimSpace(req.Criteria)
	if len(criteria) == 0 || bytes.Equal(criteria, []byte("null")) {
		criteria = []byte("{}")
	}
	rules, err := eligibility.ParseRuleSet(criteria)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "criteria is malformed")
	}
	if len(rules.Ignored) > 0 {
		s.logger.WarnContext(ctx, "scheme criteria has unknown keys", "keys", rules.Ignored)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, criteria); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "criteria is malformed")
	}

	return &scheme.Scheme{
		ID:          domain.NewSchemeID(),
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		Amount:      req.Amount,
		State:       jurisdiction(req.State),
		District:    jurisdiction(req.District),
		Criteria:    compact.Bytes(),
		CreatedBy:   actor.ID,
		CreatedAt:   s.now(),
	}, nil
}

func jurisdiction(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, scheme.All) {
		return scheme.All
	}
	return v
}
