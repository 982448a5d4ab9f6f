package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"welfare/internal/notification"
	notificationstore "welfare/internal/notification/store"
	outboxstore "welfare/internal/outbox/store"
	"welfare/internal/queue"
	"welfare/pkg/domain"
)

func TestMessageTemplates(t *testing.T) {
	assert.Equal(t, "New Scheme Alert: You are eligible for UP Student Scholarship",
		notification.MatchMessage("UP Student Scholarship"))
	assert.Equal(t, "Payment Received: Rs.5000 has been credited for UP Student Scholarship. Ref: TXN_1_1_ab",
		notification.PaymentMessage(5000, "UP Student Scholarship", "TXN_1_1_ab"))
}

func TestNotifier_Notify(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	store := notificationstore.NewInMemory()
	out := outboxstore.NewInMemory()
	n := notification.NewNotifier(store, out, func() time.Time { return now })
	citizenID := domain.NewCitizenID()

	t.Run("records and queues delivery", func(t *testing.T) {
		queued, err := n.Notify(context.Background(),
			notification.Recipient{ID: citizenID, Phone: "9000000001"},
			notification.KindSchemeMatch, "hello")
		require.NoError(t, err)
		assert.True(t, queued)

		list, err := store.ListByCitizen(context.Background(), citizenID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.False(t, list[0].Read)
		assert.Equal(t, now, list[0].CreatedAt)

		jobs := out.Pending(queue.KindSendNotification)
		require.Len(t, jobs, 1)
		var payload queue.SendNotificationPayload
		require.NoError(t, jobs[0].Decode(&payload))
		assert.Equal(t, "9000000001", payload.Phone)
		assert.Equal(t, "hello", payload.Message)
	})

	t.Run("records without delivery when phone missing", func(t *testing.T) {
		queued, err := n.Notify(context.Background(),
			notification.Recipient{ID: citizenID}, notification.KindPayment, "paid")
		require.NoError(t, err)
		assert.False(t, queued)
		assert.Equal(t, 2, store.Count())
		assert.Len(t, out.Pending(queue.KindSendNotification), 1)
	})
}
