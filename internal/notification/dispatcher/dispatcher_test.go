package dispatcher

//go:generate mockgen -source=dispatcher.go -destination=mocks/mocks.go -package=mocks Channel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"welfare/internal/notification/dispatcher/mocks"
	"welfare/internal/queue"
)

type DispatcherSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	channel    *mocks.MockChannel
	dispatcher *Dispatcher
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.channel = mocks.NewMockChannel(s.ctrl)
	s.dispatcher = New(s.channel, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func (s *DispatcherSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *DispatcherSuite) job(payload any) queue.Job {
	job, err := queue.NewJob(queue.KindSendNotification, payload, time.Now())
	s.Require().NoError(err)
	return job
}

func (s *DispatcherSuite) TestDelivers() {
	s.channel.EXPECT().
		Send(gomock.Any(), "9000000001", "New Scheme Alert: You are eligible for X").
		Return(nil)

	err := s.dispatcher.HandleJob(context.Background(), s.job(queue.SendNotificationPayload{
		Phone:   "9000000001",
		Message: "New Scheme Alert: You are eligible for X",
	}))
	s.NoError(err)
}

func (s *DispatcherSuite) TestChannelFailureIsReturnedForRetry() {
	boom := errors.New("gateway timeout")
	s.channel.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any()).Return(boom)

	err := s.dispatcher.HandleJob(context.Background(), s.job(queue.SendNotificationPayload{Phone: "1", Message: "m"}))
	s.ErrorIs(err, boom)
}

func (s *DispatcherSuite) TestMalformedPayloadsAreAcked() {
	s.Run("missing phone", func() {
		err := s.dispatcher.HandleJob(context.Background(), s.job(queue.SendNotificationPayload{Message: "m"}))
		s.NoError(err)
	})

	s.Run("not json", func() {
		err := s.dispatcher.HandleJob(context.Background(), queue.Job{
			ID:      "j",
			Kind:    queue.KindSendNotification,
			Payload: []byte(`"oops`),
		})
		s.NoError(err)
	})
}
