// Package notification persists citizen notifications and queues their
// outbound delivery.
package notification

import (
	"context"
	"fmt"
	"time"

	"welfare/internal/outbox"
	"welfare/internal/queue"
	"welfare/pkg/domain"
)

type Store interface {
	Create(ctx context.Context, n *Notification) error
	ListByCitizen(ctx context.Context, citizenID domain.CitizenID) ([]Notification, error)
}

// Recipient is the minimum a notifier needs about a citizen.
type Recipient struct {
	ID    domain.CitizenID
	Phone string
}

// Notifier writes the notification record and its send-notification job.
// Call Notify inside the transaction of the change being announced.
type Notifier struct {
	store  Store
	outbox outbox.Writer
	now    func() time.Time
}

func NewNotifier(store Store, out outbox.Writer, now func() time.Time) *Notifier {
	if now == nil {
		now = time.Now
	}
	return &Notifier{store: store, outbox: out, now: now}
}

// Notify records the message and, when the recipient has a phone, queues it
// for delivery. It reports whether a delivery job was queued.
func (n *Notifier) Notify(ctx context.Context, to Recipient, kind Kind, message string) (bool, error) {
	now := n.now()
	record := &Notification{
		ID:        domain.NewNotificationID(),
		CitizenID: to.ID,
		Message:   message,
		Kind:      kind,
		CreatedAt: now,
	}
	if err := n.store.Create(ctx, record); err != nil {
		return false, fmt.Errorf("create notification: %w", err)
	}
	if to.Phone == "" {
		return false, nil
	}

	job, err := queue.NewJob(queue.KindSendNotification, queue.SendNotificationPayload{
		Phone:   to.Phone,
		Message: message,
	}, now)
	if err != nil {
		return false, err
	}
	if err := n.outbox.Add(ctx, job); err != nil {
		return false, fmt.Errorf("queue notification delivery: %w", err)
	}
	return true, nil
}
