//go:build integration

package matching_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"welfare/internal/citizen"
	citizenstore "welfare/internal/citizen/store"
	"welfare/internal/ledger"
	ledgerstore "welfare/internal/ledger/store"
	"welfare/internal/matching"
	"welfare/internal/notification"
	"welfare/internal/notification/dispatcher"
	notificationstore "welfare/internal/notification/store"
	"welfare/internal/outbox"
	outboxstore "welfare/internal/outbox/store"
	"welfare/internal/platform/postgres"
	"welfare/internal/queue"
	"welfare/internal/queue/redisqueue"
	schemeservice "welfare/internal/scheme/service"
	schemestore "welfare/internal/scheme/store"
	"welfare/internal/settlement"
	"welfare/pkg/domain"
	"welfare/pkg/testutil/containers"
)

type syncChannel struct {
	mu   sync.Mutex
	sent map[string][]string
}

func (c *syncChannel) Send(_ context.Context, contact, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent[contact] = append(c.sent[contact], message)
	return nil
}

func (c *syncChannel) messages(contact string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent[contact]...)
}

type PipelineSuite struct {
	suite.Suite
	pg       *containers.PostgresContainer
	redis    *containers.RedisContainer
	logger   *slog.Logger
	citizens *citizenstore.PostgresStore
	ledger   *ledgerstore.PostgresStore
	schemes  *schemeservice.Service
	settle   *settlement.Service
	channel  *syncChannel
	official citizen.Actor
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.redis = containers.GetManager().GetRedis(s.T())
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *PipelineSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.pg.TruncateTables(ctx))

	db := s.pg.DB
	tx := postgres.NewTransactor(db)
	s.citizens = citizenstore.NewPostgres(db)
	s.ledger = ledgerstore.NewPostgres(db)
	outboxStore := outboxstore.NewPostgres(db)
	notifier := notification.NewNotifier(notificationstore.NewPostgres(db), outboxStore, time.Now)
	schemes := schemestore.NewPostgres(db)

	s.schemes = schemeservice.New(schemes, s.ledger, outboxStore, tx, schemeservice.WithLogger(s.logger))
	s.settle = settlement.New(s.ledger, schemes, s.citizens, notifier, settlement.NewSimulatedGateway(1, 1), tx,
		settlement.WithLogger(s.logger))

	q := redisqueue.New(s.redis.Client, "pipeline:"+uuid.NewString(), redisqueue.WithLogger(s.logger))
	s.channel = &syncChannel{sent: make(map[string][]string)}
	router := queue.NewRouter(s.logger)
	router.Register(queue.KindScanScheme, matching.New(schemes, s.citizens, s.ledger, notifier, tx,
		matching.WithLogger(s.logger), matching.WithBatchSize(2)))
	router.Register(queue.KindSendNotification, dispatcher.New(s.channel, dispatcher.WithLogger(s.logger)))
	relay := outbox.NewRelay(outboxStore, q, tx,
		outbox.WithLogger(s.logger),
		outbox.WithPollInterval(20*time.Millisecond))

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = queue.RunConsumers(runCtx, q.Group("it"), router, 2)
	}()
	go func() {
		defer wg.Done()
		_ = relay.Run(runCtx)
	}()
	s.T().Cleanup(func() {
		cancel()
		wg.Wait()
	})

	officer := citizen.Citizen{ID: domain.NewCitizenID(), Name: "Rajesh Officer", Phone: "9999999999", Role: citizen.RoleOfficial}
	s.Require().NoError(s.citizens.Create(ctx, &officer, "hash"))
	s.official = officer.Actor()
}

func (s *PipelineSuite) beneficiary(name, phone, state string, income int64) citizen.Citizen {
	c := citizen.Citizen{
		ID:          domain.NewCitizenID(),
		Name:        name,
		Phone:       phone,
		Role:        citizen.RoleBeneficiary,
		Profile:     citizen.Profile{State: state, Income: &income},
		BankAccount: "acct-" + phone,
		IFSC:        "SBIN0000001",
	}
	s.Require().NoError(s.citizens.Create(context.Background(), &c, "hash"))
	return c
}

func (s *PipelineSuite) TestSchemeCreationMatchesNotifiesAndSettles() {
	ctx := context.Background()
	a := s.beneficiary("Rohan Kumar", "9000000001", "Uttar Pradesh", 45000)
	b := s.beneficiary("Amit Singh", "9000000002", "Uttar Pradesh", 150000)
	c := s.beneficiary("Sneha Sharma", "9000000003", "Delhi", 30000)

	sc, err := s.schemes.Create(ctx, s.official, schemeservice.CreateRequest{
		Title:    "UP Student Scholarship",
		Amount:   12000,
		State:    "Uttar Pradesh",
		Criteria: json.RawMessage(`{"incomeLimit": 50000}`),
	})
	s.Require().NoError(err)

	s.Eventually(func() bool {
		return len(s.channel.messages(a.Phone)) == 1
	}, 15*time.Second, 50*time.Millisecond, "match alert for A")
	s.Equal("New Scheme Alert: You are eligible for UP Student Scholarship", s.channel.messages(a.Phone)[0])
	s.Empty(s.channel.messages(b.Phone))
	s.Empty(s.channel.messages(c.Phone))

	apps, err := s.schemes.Applications(ctx, s.official, sc.ID)
	s.Require().NoError(err)
	s.Require().Len(apps, 1)
	s.Equal(a.ID, apps[0].Record.CitizenID)
	s.Equal(ledger.StatusEligible, apps[0].Record.Status)

	// A rescan finds nothing new and sends nothing new.
	s.Require().NoError(s.schemes.Rescan(ctx, s.official, sc.ID))
	time.Sleep(500 * time.Millisecond)
	n, err := s.ledger.CountByScheme(ctx, sc.ID)
	s.Require().NoError(err)
	s.Equal(1, n)
	s.Len(s.channel.messages(a.Phone), 1)

	res, err := s.settle.Settle(ctx, s.official, apps[0].Record.ID)
	s.Require().NoError(err)
	s.Equal(ledger.StatusPaid, res.Status)

	s.Eventually(func() bool {
		return len(s.channel.messages(a.Phone)) == 2
	}, 15*time.Second, 50*time.Millisecond, "payment alert for A")
	s.Equal(notification.PaymentMessage(12000, "UP Student Scholarship", res.TransactionID), s.channel.messages(a.Phone)[1])
}
