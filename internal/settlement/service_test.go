package settlement_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"welfare/internal/citizen"
	citizenstore "welfare/internal/citizen/store"
	"welfare/internal/ledger"
	ledgerstore "welfare/internal/ledger/store"
	"welfare/internal/notification"
	notificationstore "welfare/internal/notification/store"
	outboxstore "welfare/internal/outbox/store"
	"welfare/internal/queue"
	"welfare/internal/scheme"
	schemestore "welfare/internal/scheme/store"
	"welfare/internal/settlement"
	"welfare/pkg/domain"
	dErrors "welfare/pkg/domain-errors"
	"welfare/pkg/platform/tx"
)

// scriptedDisburser returns the queued outcomes in order, then succeeds.
type scriptedDisburser struct {
	outcomes []error
	calls    []settlement.Disbursement
}

func (d *scriptedDisburser) Disburse(_ context.Context, req settlement.Disbursement) error {
	d.calls = append(d.calls, req)
	if len(d.outcomes) == 0 {
		return nil
	}
	next := d.outcomes[0]
	d.outcomes = d.outcomes[1:]
	return next
}

type SettlementSuite struct {
	suite.Suite
	ledger        *ledgerstore.InMemory
	notifications *notificationstore.InMemory
	outbox        *outboxstore.InMemory
	disburser     *scriptedDisburser
	service       *settlement.Service
	official      citizen.Actor
	beneficiary   citizen.Citizen
	scheme        *scheme.Scheme
	record        *ledger.MatchRecord
	now           time.Time
}

func TestSettlementSuite(t *testing.T) {
	suite.Run(t, new(SettlementSuite))
}

func (s *SettlementSuite) SetupTest() {
	ctx := context.Background()
	s.now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	citizens := citizenstore.NewInMemory()
	schemes := schemestore.NewInMemory()
	s.ledger = ledgerstore.NewInMemory(citizens)
	s.notifications = notificationstore.NewInMemory()
	s.outbox = outboxstore.NewInMemory()
	s.disburser = &scriptedDisburser{}

	s.official = citizen.Actor{ID: domain.NewCitizenID(), Role: citizen.RoleOfficial}
	s.beneficiary = citizen.Citizen{
		ID:          domain.NewCitizenID(),
		Name:        "Rohan Kumar",
		Phone:       "9000000001",
		Role:        citizen.RoleBeneficiary,
		BankAccount: "00112233",
		IFSC:        "SBIN0000001",
	}
	s.Require().NoError(citizens.Create(ctx, &s.beneficiary, "hash"))

	s.scheme = &scheme.Scheme{ID: domain.NewSchemeID(), Title: "UP Student Scholarship", Amount: 12000, State: scheme.All, District: scheme.All}
	s.Require().NoError(schemes.Create(ctx, s.scheme))

	s.record = ledger.NewMatch(s.beneficiary.ID, s.scheme.ID, s.now)
	created, err := s.ledger.CreateIfAbsent(ctx, s.record)
	s.Require().NoError(err)
	s.Require().True(created)

	notifier := notification.NewNotifier(s.notifications, s.outbox, func() time.Time { return s.now })
	s.service = settlement.New(s.ledger, schemes, citizens, notifier, s.disburser, tx.NewLocalRunner(),
		settlement.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		settlement.WithClock(func() time.Time { return s.now }),
		settlement.WithTxIDGenerator(settlement.NewTxIDGenerator()),
	)
}

func (s *SettlementSuite) TestSuccessMarksPaidAndNotifies() {
	ctx := context.Background()
	res, err := s.service.Settle(ctx, s.official, s.record.ID)
	s.Require().NoError(err)
	s.Equal(ledger.StatusPaid, res.Status)
	s.Regexp(`^TXN_\d+_[0-9a-f]{32}$`, res.TransactionID)
	s.Require().NotNil(res.PaymentDate)
	s.True(res.PaymentDate.Equal(s.now))

	s.Require().Len(s.disburser.calls, 1)
	s.Equal(int64(12000), s.disburser.calls[0].Amount)
	s.Equal("00112233", s.disburser.calls[0].BankAccount)

	stored, err := s.ledger.FindByID(ctx, s.record.ID)
	s.Require().NoError(err)
	s.Equal(ledger.StatusPaid, stored.Status)
	s.Equal(res.TransactionID, stored.TransactionID)

	notes, err := s.notifications.ListByCitizen(ctx, s.beneficiary.ID)
	s.Require().NoError(err)
	s.Require().Len(notes, 1)
	s.Equal(notification.KindPayment, notes[0].Kind)
	s.Equal("Payment Received: Rs.12000 has been credited for UP Student Scholarship. Ref: "+res.TransactionID, notes[0].Message)
	s.Len(s.outbox.Pending(queue.KindSendNotification), 1)
}

func (s *SettlementSuite) TestFailureThenRetrySucceeds() {
	ctx := context.Background()
	s.disburser.outcomes = []error{settlement.ErrDeclined}

	res, err := s.service.Settle(ctx, s.official, s.record.ID)
	s.Require().NoError(err)
	s.Equal(ledger.StatusPaymentFailed, res.Status)
	s.Empty(res.TransactionID)
	s.Zero(s.notifications.Count(), "failed payments do not notify")

	stored, err := s.ledger.FindByID(ctx, s.record.ID)
	s.Require().NoError(err)
	s.Equal(ledger.StatusPaymentFailed, stored.Status)
	s.Equal(1, stored.Attempts)
	s.NotEmpty(stored.FailureReason)

	res, err = s.service.Settle(ctx, s.official, s.record.ID)
	s.Require().NoError(err)
	s.Equal(ledger.StatusPaid, res.Status)
	s.NotEmpty(res.TransactionID)
	s.Equal(1, s.notifications.Count())
}

func (s *SettlementSuite) TestPaidIsTerminal() {
	ctx := context.Background()
	first, err := s.service.Settle(ctx, s.official, s.record.ID)
	s.Require().NoError(err)

	_, err = s.service.Settle(ctx, s.official, s.record.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	s.Len(s.disburser.calls, 1, "a paid record is never disbursed again")

	stored, err := s.ledger.FindByID(ctx, s.record.ID)
	s.Require().NoError(err)
	s.Equal(first.TransactionID, stored.TransactionID)
	s.Equal(1, s.notifications.Count())
}

func (s *SettlementSuite) TestOnlyOfficialsSettle() {
	_, err := s.service.Settle(context.Background(), s.beneficiary.Actor(), s.record.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Empty(s.disburser.calls)
}

func (s *SettlementSuite) TestUnknownApplication() {
	_, err := s.service.Settle(context.Background(), s.official, domain.NewMatchID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.service.Settle(context.Background(), s.official, domain.MatchID{})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *SettlementSuite) TestGatewayErrorsAreRecordedAsFailures() {
	s.disburser.outcomes = []error{errors.New("gateway timeout")}

	res, err := s.service.Settle(context.Background(), s.official, s.record.ID)
	s.Require().NoError(err)
	s.Equal(ledger.StatusPaymentFailed, res.Status)
}
