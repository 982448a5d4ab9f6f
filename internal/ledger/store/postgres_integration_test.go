//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"welfare/internal/citizen"
	citizenstore "welfare/internal/citizen/store"
	"welfare/internal/ledger"
	"welfare/internal/ledger/store"
	"welfare/internal/platform/postgres"
	"welfare/internal/scheme"
	schemestore "welfare/internal/scheme/store"
	"welfare/pkg/domain"
	"welfare/pkg/platform/sentinel"
	"welfare/pkg/testutil/containers"
)

type PostgresLedgerSuite struct {
	suite.Suite
	pg      *containers.PostgresContainer
	store   *store.PostgresStore
	tx      *postgres.Transactor
	citizen citizen.Citizen
	scheme  *scheme.Scheme
}

func TestPostgresLedgerSuite(t *testing.T) {
	suite.Run(t, new(PostgresLedgerSuite))
}

func (s *PostgresLedgerSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.pg.DB)
	s.tx = postgres.NewTransactor(s.pg.DB)
}

func (s *PostgresLedgerSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.pg.TruncateTables(ctx))

	s.citizen = citizen.Citizen{
		ID:          domain.NewCitizenID(),
		Name:        "Rohan Kumar",
		Phone:       "9000000001",
		Role:        citizen.RoleBeneficiary,
		BankAccount: "00112233",
		IFSC:        "SBIN0000001",
	}
	s.Require().NoError(citizenstore.NewPostgres(s.pg.DB).Create(ctx, &s.citizen, "hash"))

	s.scheme = &scheme.Scheme{ID: domain.NewSchemeID(), Title: "Scholarship", Amount: 1000, State: scheme.All, District: scheme.All}
	s.Require().NoError(schemestore.NewPostgres(s.pg.DB).Create(ctx, s.scheme))
}

func (s *PostgresLedgerSuite) TestConcurrentCreateIfAbsentCreatesOne() {
	ctx := context.Background()
	var created atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.store.CreateIfAbsent(ctx, ledger.NewMatch(s.citizen.ID, s.scheme.ID, time.Now()))
			s.NoError(err)
			if ok {
				created.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), created.Load())
	n, err := s.store.CountByScheme(ctx, s.scheme.ID)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *PostgresLedgerSuite) TestCreateIfAbsentNeverTouchesExisting() {
	ctx := context.Background()
	rec := ledger.NewMatch(s.citizen.ID, s.scheme.ID, time.Now())
	_, err := s.store.CreateIfAbsent(ctx, rec)
	s.Require().NoError(err)
	s.Require().NoError(rec.MarkPaid("TXN_1_1_001", time.Now()))
	s.Require().NoError(s.store.UpdateSettlement(ctx, rec))

	ok, err := s.store.CreateIfAbsent(ctx, ledger.NewMatch(s.citizen.ID, s.scheme.ID, time.Now()))
	s.Require().NoError(err)
	s.False(ok)

	stored, err := s.store.FindByPair(ctx, s.citizen.ID, s.scheme.ID)
	s.Require().NoError(err)
	s.Equal(ledger.StatusPaid, stored.Status)
	s.Equal("TXN_1_1_001", stored.TransactionID)
}

func (s *PostgresLedgerSuite) TestUpdateSettlementRejectsPaid() {
	ctx := context.Background()
	rec := ledger.NewMatch(s.citizen.ID, s.scheme.ID, time.Now())
	_, err := s.store.CreateIfAbsent(ctx, rec)
	s.Require().NoError(err)

	paid := *rec
	s.Require().NoError(paid.MarkPaid("TXN_1_1_001", time.Now()))
	s.Require().NoError(s.store.UpdateSettlement(ctx, &paid))

	failed := *rec
	s.Require().NoError(failed.MarkFailed("late failure", time.Now()))
	s.ErrorIs(s.store.UpdateSettlement(ctx, &failed), sentinel.ErrInvalidState)

	missing := ledger.NewMatch(s.citizen.ID, s.scheme.ID, time.Now())
	s.ErrorIs(s.store.UpdateSettlement(ctx, missing), sentinel.ErrNotFound)
}

func (s *PostgresLedgerSuite) TestUpdateSettlementRejectsReusedTransactionID() {
	ctx := context.Background()
	other := &scheme.Scheme{ID: domain.NewSchemeID(), Title: "Pension", Amount: 500, State: scheme.All, District: scheme.All}
	s.Require().NoError(schemestore.NewPostgres(s.pg.DB).Create(ctx, other))

	first := ledger.NewMatch(s.citizen.ID, s.scheme.ID, time.Now())
	second := ledger.NewMatch(s.citizen.ID, other.ID, time.Now())
	for _, rec := range []*ledger.MatchRecord{first, second} {
		_, err := s.store.CreateIfAbsent(ctx, rec)
		s.Require().NoError(err)
	}

	s.Require().NoError(first.MarkPaid("TXN_1760000000000_shared", time.Now()))
	s.Require().NoError(s.store.UpdateSettlement(ctx, first))

	s.Require().NoError(second.MarkPaid("TXN_1760000000000_shared", time.Now()))
	s.ErrorIs(s.store.UpdateSettlement(ctx, second), sentinel.ErrConflict)

	stored, err := s.store.FindByID(ctx, second.ID)
	s.Require().NoError(err)
	s.Equal(ledger.StatusEligible, stored.Status)

	// A failed attempt stores no transaction ID, so it never collides.
	s.Require().NoError(stored.MarkFailed("declined", time.Now()))
	s.NoError(s.store.UpdateSettlement(ctx, stored))
}

func (s *PostgresLedgerSuite) TestFindForUpdateNeedsTransaction() {
	ctx := context.Background()
	rec := ledger.NewMatch(s.citizen.ID, s.scheme.ID, time.Now())
	_, err := s.store.CreateIfAbsent(ctx, rec)
	s.Require().NoError(err)

	_, err = s.store.FindForUpdate(ctx, rec.ID)
	s.Error(err)

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.store.FindForUpdate(txCtx, rec.ID)
		if err != nil {
			return err
		}
		s.Equal(ledger.StatusEligible, locked.Status)
		return nil
	})
	s.NoError(err)
}

func (s *PostgresLedgerSuite) TestListApplicationsJoinsCitizen() {
	ctx := context.Background()
	_, err := s.store.CreateIfAbsent(ctx, ledger.NewMatch(s.citizen.ID, s.scheme.ID, time.Now()))
	s.Require().NoError(err)

	apps, err := s.store.ListApplications(ctx, s.scheme.ID)
	s.Require().NoError(err)
	s.Require().Len(apps, 1)
	s.Equal("Rohan Kumar", apps[0].CitizenName)
	s.Equal("9000000001", apps[0].Phone)
	s.Equal("00112233", apps[0].BankAccount)
	s.Equal("SBIN0000001", apps[0].IFSC)
}
