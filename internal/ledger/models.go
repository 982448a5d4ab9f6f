// Package ledger records which citizens matched which schemes and where each
// match stands in the payment lifecycle.
package ledger

import (
	"fmt"
	"time"

	"welfare/pkg/domain"
	"welfare/pkg/platform/sentinel"
)

type Status string

const (
	StatusEligible      Status = "ELIGIBLE"
	StatusPaid          Status = "PAID"
	StatusPaymentFailed Status = "PAYMENT_FAILED"
)

// MatchRecord is unique per (CitizenID, SchemeID).
type MatchRecord struct {
	ID            domain.MatchID
	CitizenID     domain.CitizenID
	SchemeID      domain.SchemeID
	Status        Status
	TransactionID string
	PaymentDate   *time.Time
	FailureReason string
	Attempts      int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewMatch builds an ELIGIBLE record for a citizen and scheme.
func NewMatch(citizenID domain.CitizenID, schemeID domain.SchemeID, now time.Time) *MatchRecord {
	return &MatchRecord{
		ID:        domain.NewMatchID(),
		CitizenID: citizenID,
		SchemeID:  schemeID,
		Status:    StatusEligible,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CanTransitionTo encodes the payment state machine. PAID is terminal.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusEligible, StatusPaymentFailed:
		return next == StatusPaid || next == StatusPaymentFailed
	default:
		return false
	}
}

// MarkPaid records a successful disbursement.
func (r *MatchRecord) MarkPaid(txnID string, at time.Time) error {
	if !r.Status.CanTransitionTo(StatusPaid) {
		return fmt.Errorf("%w: %s -> %s", sentinel.ErrInvalidState, r.Status, StatusPaid)
	}
	r.Status = StatusPaid
	r.TransactionID = txnID
	r.PaymentDate = &at
	r.FailureReason = ""
	r.Attempts++
	r.UpdatedAt = at
	return nil
}

// MarkFailed records a rejected disbursement attempt.
func (r *MatchRecord) MarkFailed(reason string, at time.Time) error {
	if !r.Status.CanTransitionTo(StatusPaymentFailed) {
		return fmt.Errorf("%w: %s -> %s", sentinel.ErrInvalidState, r.Status, StatusPaymentFailed)
	}
	r.Status = StatusPaymentFailed
	r.FailureReason = reason
	r.Attempts++
	r.UpdatedAt = at
	return nil
}

// Application is a match record joined with the citizen fields an official
// needs to initiate settlement.
type Application struct {
	Record      MatchRecord
	CitizenName string
	Phone       string
	BankAccount string
	IFSC        string
}
