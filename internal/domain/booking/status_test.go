package booking

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to BookingStatus
		want     bool
	}{
		{StatusDraft, StatusPendingPayment, true},
		{StatusPendingPayment, StatusPaymentConfirmed, true},
		{StatusPaymentConfirmed, StatusHostApproved, true},
		{StatusHostApproved, StatusCompleted, true},
		{StatusPendingPayment, StatusExpired, true},
		{StatusHostApproved, StatusExpired, true},
		{StatusPendingPayment, StatusHostApproved, false},
		{StatusCancelled, StatusPendingPayment, false},
		{StatusCompleted, StatusCancelled, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestBookingStatus_Terminal(t *testing.T) {
	for _, s := range []BookingStatus{StatusCancelled, StatusCompleted, StatusExpired} {
		assert.True(t, s.IsTerminal(), s)
		assert.False(t, s.CanBeCancelled(), s)
	}
	for _, s := range []BookingStatus{StatusDraft, StatusPendingPayment, StatusPaymentConfirmed, StatusHostApproved} {
		assert.False(t, s.IsTerminal(), s)
		assert.True(t, s.CanBeCancelled(), s)
	}
}

func TestParseStatuses(t *testing.T) {
	s, err := ParseBookingStatus("host_approved")
	require.NoError(t, err)
	assert.Equal(t, StatusHostApproved, s)

	_, err = ParseBookingStatus("confirmed")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	c, err := ParseCheckoutStatus("checked_out")
	require.NoError(t, err)
	assert.Equal(t, CheckoutCheckedOut, c)

	_, err = ParseCheckoutStatus("gone")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestCheckoutStatus_Transitions(t *testing.T) {
	assert.True(t, CheckoutNotCheckedIn.CanTransitionTo(CheckoutCheckedIn))
	assert.True(t, CheckoutCheckedIn.CanTransitionTo(CheckoutCheckedOut))
	assert.True(t, CheckoutCheckedOut.CanTransitionTo(CheckoutCompleted))
	assert.False(t, CheckoutCheckedIn.CanTransitionTo(CheckoutCheckedIn))
	assert.False(t, CheckoutNotCheckedIn.CanTransitionTo(CheckoutCheckedOut))
	assert.True(t, CheckoutExpired.IsTerminal())
	assert.Contains(t, UpcomingCheckoutStatuses(), CheckoutCheckedIn)
	assert.NotContains(t, UpcomingCheckoutStatuses(), CheckoutCheckedOut)
}

func TestValidateAmounts(t *testing.T) {
	assert.NoError(t, ValidateAmounts(30000, 2500, 1500, 34000))
	assert.NoError(t, ValidateAmounts(0, 0, 0, 0))
	assert.ErrorIs(t, ValidateAmounts(30000, 2500, 1500, 34001), ErrAmountMismatch)
	assert.ErrorIs(t, ValidateAmounts(-1, 0, 0, -1), ErrInvalidAmount)
}

func TestValidateDateOrder(t *testing.T) {
	in := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, ValidateDateOrder(in, in.Add(time.Nanosecond)))
	assert.ErrorIs(t, ValidateDateOrder(in, in), ErrInvalidDateRange)
	assert.ErrorIs(t, ValidateDateOrder(in, in.Add(-time.Hour)), ErrInvalidDateRange)
	assert.ErrorIs(t, ValidateDateOrder(time.Time{}, in), ErrMissingField)
}

func TestNormalizeCurrency(t *testing.T) {
	c, err := NormalizeCurrency(" eur ")
	require.NoError(t, err)
	assert.Equal(t, "EUR", c)

	for _, bad := range []string{"", "EU", "EURO", "E1R", "éur"} {
		_, err := NormalizeCurrency(bad)
		assert.ErrorIs(t, err, ErrInvalidCurrency, bad)
	}
}

func TestRandomTokenGenerator(t *testing.T) {
	gen := NewRandomTokenGenerator()
	seen := make(map[string]struct{}, 200)
	for range 200 {
		tok, err := gen.Generate()
		require.NoError(t, err)
		assert.Len(t, tok, 32)
		assert.False(t, strings.ContainsAny(tok, "+/="), tok)
		_, dup := seen[tok]
		require.False(t, dup)
		seen[tok] = struct{}{}
	}
}
