package matching

//go:generate mockgen -source=worker.go -destination=mocks/mocks.go -package=mocks SchemeStore,CitizenStore,Ledger,Notifier

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"welfare/internal/citizen"
	"welfare/internal/ledger"
	"welfare/internal/matching/mocks"
	"welfare/internal/notification"
	"welfare/internal/queue"
	"welfare/internal/scheme"
	"welfare/pkg/domain"
	"welfare/pkg/platform/sentinel"
	"welfare/pkg/platform/tx"
)

type WorkerSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	schemes  *mocks.MockSchemeStore
	citizens *mocks.MockCitizenStore
	ledger   *mocks.MockLedger
	notifier *mocks.MockNotifier
	worker   *Worker
	scheme   *scheme.Scheme
}

func TestWorkerSuite(t *testing.T) {
	suite.Run(t, new(WorkerSuite))
}

func (s *WorkerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.schemes = mocks.NewMockSchemeStore(s.ctrl)
	s.citizens = mocks.NewMockCitizenStore(s.ctrl)
	s.ledger = mocks.NewMockLedger(s.ctrl)
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	s.worker = New(s.schemes, s.citizens, s.ledger, s.notifier, tx.NewLocalRunner(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithBatchSize(2),
	)
	s.scheme = &scheme.Scheme{
		ID:       domain.NewSchemeID(),
		Title:    "Kisan Support",
		State:    "Uttar Pradesh",
		District: scheme.All,
		Criteria: []byte(`{"incomeLimit": 50000}`),
	}
}

func (s *WorkerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func resident(income int64) citizen.Citizen {
	return citizen.Citizen{
		ID:      domain.NewCitizenID(),
		Phone:   "9" + domain.NewCitizenID().String()[:9],
		Role:    citizen.RoleBeneficiary,
		Profile: citizen.Profile{State: "Uttar Pradesh", Income: &income},
	}
}

func (s *WorkerSuite) TestMissingSchemeIsNoop() {
	s.schemes.EXPECT().FindByID(gomock.Any(), s.scheme.ID).Return(nil, sentinel.ErrNotFound)

	summary, err := s.worker.ScanScheme(context.Background(), s.scheme.ID)
	s.NoError(err)
	s.Zero(summary.Scanned)
}

func (s *WorkerSuite) TestSchemeLoadFailureIsReturned() {
	s.schemes.EXPECT().FindByID(gomock.Any(), s.scheme.ID).Return(nil, sentinel.ErrUnavailable)

	_, err := s.worker.ScanScheme(context.Background(), s.scheme.ID)
	s.ErrorIs(err, sentinel.ErrUnavailable)
}

func (s *WorkerSuite) TestPagesThroughCandidates() {
	first := []citizen.Citizen{resident(10000), resident(90000)}
	last := []citizen.Citizen{resident(20000)}

	s.schemes.EXPECT().FindByID(gomock.Any(), s.scheme.ID).Return(s.scheme, nil)
	gomock.InOrder(
		s.citizens.EXPECT().
			ListCandidates(gomock.Any(), citizen.CandidateQuery{State: "Uttar Pradesh", Limit: 2}).
			Return(first, nil),
		s.citizens.EXPECT().
			ListCandidates(gomock.Any(), citizen.CandidateQuery{State: "Uttar Pradesh", After: first[1].ID, Limit: 2}).
			Return(last, nil),
	)
	s.ledger.EXPECT().CreateIfAbsent(gomock.Any(), gomock.Any()).Return(true, nil).Times(2)
	s.notifier.EXPECT().
		Notify(gomock.Any(), gomock.Any(), notification.KindSchemeMatch, "New Scheme Alert: You are eligible for Kisan Support").
		Return(true, nil).
		Times(2)

	summary, err := s.worker.ScanScheme(context.Background(), s.scheme.ID)
	s.Require().NoError(err)
	s.Equal(3, summary.Scanned)
	s.Equal(2, summary.Matched)
	s.Equal(2, summary.Created)
}

func (s *WorkerSuite) TestExistingMatchIsNotNotifiedAgain() {
	c := resident(10000)
	s.schemes.EXPECT().FindByID(gomock.Any(), s.scheme.ID).Return(s.scheme, nil)
	s.citizens.EXPECT().ListCandidates(gomock.Any(), gomock.Any()).Return([]citizen.Citizen{c}, nil)
	s.ledger.EXPECT().CreateIfAbsent(gomock.Any(), gomock.Any()).Return(false, nil)

	summary, err := s.worker.ScanScheme(context.Background(), s.scheme.ID)
	s.Require().NoError(err)
	s.Equal(1, summary.Matched)
	s.Zero(summary.Created)
	s.Equal(1, summary.AlreadyMatched)
}

func (s *WorkerSuite) TestNewMatchStartsEligible() {
	c := resident(10000)
	s.schemes.EXPECT().FindByID(gomock.Any(), s.scheme.ID).Return(s.scheme, nil)
	s.citizens.EXPECT().ListCandidates(gomock.Any(), gomock.Any()).Return([]citizen.Citizen{c}, nil)
	s.ledger.EXPECT().
		CreateIfAbsent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rec *ledger.MatchRecord) (bool, error) {
			s.Equal(c.ID, rec.CitizenID)
			s.Equal(s.scheme.ID, rec.SchemeID)
			s.Equal(ledger.StatusEligible, rec.Status)
			s.Empty(rec.TransactionID)
			return true, nil
		})
	s.notifier.EXPECT().
		Notify(gomock.Any(), notification.Recipient{ID: c.ID, Phone: c.Phone}, notification.KindSchemeMatch, gomock.Any()).
		Return(true, nil)

	_, err := s.worker.ScanScheme(context.Background(), s.scheme.ID)
	s.NoError(err)
}

func (s *WorkerSuite) TestWriteErrorsDoNotStopTheScan() {
	failing, ok := resident(10000), resident(20000)
	s.schemes.EXPECT().FindByID(gomock.Any(), s.scheme.ID).Return(s.scheme, nil)
	s.citizens.EXPECT().ListCandidates(gomock.Any(), gomock.Any()).Return([]citizen.Citizen{failing, ok}, nil)
	s.citizens.EXPECT().ListCandidates(gomock.Any(), gomock.Any()).Return(nil, nil)
	s.ledger.EXPECT().
		CreateIfAbsent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rec *ledger.MatchRecord) (bool, error) {
			if rec.CitizenID == failing.ID {
				return false, errors.New("connection reset")
			}
			return true, nil
		}).
		Times(2)
	s.notifier.EXPECT().Notify(gomock.Any(), notification.Recipient{ID: ok.ID, Phone: ok.Phone}, gomock.Any(), gomock.Any()).Return(true, nil)

	summary, err := s.worker.ScanScheme(context.Background(), s.scheme.ID)
	s.ErrorIs(err, ErrPartialScan)
	s.Equal(2, summary.Matched)
	s.Equal(1, summary.Created)
	s.Equal(1, summary.WriteErrors)
}

func (s *WorkerSuite) TestMalformedProfileIsCountedAndSkipped() {
	bad, good := resident(-5), resident(10000)
	s.schemes.EXPECT().FindByID(gomock.Any(), s.scheme.ID).Return(s.scheme, nil)
	s.citizens.EXPECT().ListCandidates(gomock.Any(), gomock.Any()).Return([]citizen.Citizen{bad, good}, nil)
	s.citizens.EXPECT().ListCandidates(gomock.Any(), gomock.Any()).Return(nil, nil)
	s.ledger.EXPECT().CreateIfAbsent(gomock.Any(), gomock.Any()).Return(true, nil)
	s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)

	summary, err := s.worker.ScanScheme(context.Background(), s.scheme.ID)
	s.Require().NoError(err)
	s.Equal(2, summary.Scanned)
	s.Equal(1, summary.EvaluationErrors)
	s.Equal(1, summary.Created)
}

func (s *WorkerSuite) TestMalformedRulesMatchNobody() {
	var logs bytes.Buffer
	s.worker = New(s.schemes, s.citizens, s.ledger, s.notifier, tx.NewLocalRunner(),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
		WithBatchSize(5),
	)
	s.scheme.Criteria = []byte(`{"incomeLimit": "lots"}`)
	s.schemes.EXPECT().FindByID(gomock.Any(), s.scheme.ID).Return(s.scheme, nil)
	s.citizens.EXPECT().ListCandidates(gomock.Any(), gomock.Any()).
		Return([]citizen.Citizen{resident(1), resident(2), resident(3)}, nil)

	summary, err := s.worker.ScanScheme(context.Background(), s.scheme.ID)
	s.Require().NoError(err)
	s.Zero(summary.Matched)
	s.Equal(3, summary.EvaluationErrors)
	s.Equal(1, strings.Count(logs.String(), "level=WARN"), "malformed rules are reported once per scan")
}

func (s *WorkerSuite) TestListFailureAbortsScan() {
	s.schemes.EXPECT().FindByID(gomock.Any(), s.scheme.ID).Return(s.scheme, nil)
	s.citizens.EXPECT().ListCandidates(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrUnavailable)

	_, err := s.worker.ScanScheme(context.Background(), s.scheme.ID)
	s.ErrorIs(err, sentinel.ErrUnavailable)
}

func (s *WorkerSuite) TestHandleJobAcksInvalidPayloads() {
	job, err := queue.NewJob(queue.KindScanScheme, queue.ScanSchemePayload{SchemeID: "not-a-uuid"}, time.Now())
	s.Require().NoError(err)
	s.NoError(s.worker.HandleJob(context.Background(), job))

	job.Payload = []byte(`[1,2]`)
	s.NoError(s.worker.HandleJob(context.Background(), job))
}

func (s *WorkerSuite) TestHandleJobRunsScan() {
	job, err := queue.NewJob(queue.KindScanScheme, queue.ScanSchemePayload{SchemeID: s.scheme.ID.String()}, time.Now())
	s.Require().NoError(err)
	s.schemes.EXPECT().FindByID(gomock.Any(), s.scheme.ID).Return(nil, sentinel.ErrNotFound)

	s.NoError(s.worker.HandleJob(context.Background(), job))
}
