package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"welfare/pkg/domain"
	"welfare/pkg/platform/sentinel"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusEligible, StatusPaid, true},
		{StatusEligible, StatusPaymentFailed, true},
		{StatusPaymentFailed, StatusPaid, true},
		{StatusPaymentFailed, StatusPaymentFailed, true},
		{StatusPaid, StatusPaid, false},
		{StatusPaid, StatusPaymentFailed, false},
		{StatusPaid, StatusEligible, false},
		{StatusEligible, StatusEligible, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestMatchRecord_FailThenPay(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := NewMatch(domain.NewCitizenID(), domain.NewSchemeID(), now)

	require.NoError(t, r.MarkFailed("gateway declined", now.Add(time.Minute)))
	assert.Equal(t, StatusPaymentFailed, r.Status)
	assert.Equal(t, 1, r.Attempts)

	require.NoError(t, r.MarkPaid("TXN_1", now.Add(2*time.Minute)))
	assert.Equal(t, StatusPaid, r.Status)
	assert.Empty(t, r.FailureReason)
	require.NotNil(t, r.PaymentDate)
	assert.Equal(t, 2, r.Attempts)

	err := r.MarkPaid("TXN_2", now.Add(3*time.Minute))
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)
	assert.Equal(t, "TXN_1", r.TransactionID)
}
