package notification

import (
	"fmt"
	"time"

	"welfare/pkg/domain"
)

type Kind string

const (
	KindSchemeMatch Kind = "scheme_match"
	KindPayment     Kind = "payment"
)

// Notification records that a message was due to a citizen. It is written
// alongside the state change and is never rolled back by delivery failures.
type Notification struct {
	ID        domain.NotificationID
	CitizenID domain.CitizenID
	Message   string
	Kind      Kind
	Read      bool
	CreatedAt time.Time
}

func MatchMessage(schemeTitle string) string {
	return fmt.Sprintf("New Scheme Alert: You are eligible for %s", schemeTitle)
}

func PaymentMessage(amount int64, schemeTitle, txnID string) string {
	return fmt.Sprintf("Payment Received: Rs.%d has been credited for %s. Ref: %s", amount, schemeTitle, txnID)
}
