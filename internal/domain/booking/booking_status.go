package booking

import (
	"fmt"
	"slices"

	"github.com/eygar/service-booking/pkg/domain"
)

// BookingStatus is the owner-visible lifecycle of a booking: payment, host approval, closure.
type BookingStatus string

const (
	StatusDraft            BookingStatus = "draft"
	StatusPendingPayment   BookingStatus = "pending_payment"
	StatusPaymentConfirmed BookingStatus = "payment_confirmed"
	StatusHostApproved     BookingStatus = "host_approved"
	StatusCancelled        BookingStatus = "cancelled"
	StatusCompleted        BookingStatus = "completed"
	StatusExpired          BookingStatus = "expired"
)

// validTransitions defines the state machine for booking_status.
var validTransitions = map[BookingStatus][]BookingStatus{
	StatusDraft:            {StatusPendingPayment, StatusPaymentConfirmed, StatusCancelled, StatusExpired},
	StatusPendingPayment:   {StatusPaymentConfirmed, StatusCancelled, StatusExpired},
	StatusPaymentConfirmed: {StatusHostApproved, StatusCancelled, StatusExpired},
	StatusHostApproved:     {StatusCompleted, StatusCancelled, StatusExpired},
	StatusCancelled:        {},
	StatusCompleted:        {},
	StatusExpired:          {},
}

// ownerSettableStatuses are the only targets an owner may pick through a generic update.
var ownerSettableStatuses = []BookingStatus{StatusDraft, StatusPendingPayment, StatusPaymentConfirmed}

// IsValid returns true if the status is a recognized booking status.
func (s BookingStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	return slices.Contains(validTransitions[s], target)
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s BookingStatus) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// CanBeCancelled returns true if the booking can be cancelled from this status.
func (s BookingStatus) CanBeCancelled() bool {
	return s.CanTransitionTo(StatusCancelled)
}

// IsOwnerSettable reports whether an owner may request this status directly.
func (s BookingStatus) IsOwnerSettable() bool {
	return slices.Contains(ownerSettableStatuses, s)
}

// IsOwnerConfirmed reports whether the booking has reached a state that can no
// longer be hard-deleted by its owner.
func (s BookingStatus) IsOwnerConfirmed() bool {
	switch s {
	case StatusPaymentConfirmed, StatusHostApproved, StatusCompleted:
		return true
	}
	return false
}

// String returns the string representation of the status.
func (s BookingStatus) String() string {
	return string(s)
}

// ParseBookingStatus converts a string to a BookingStatus, returning an error if invalid.
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.IsValid() {
		return "", ErrInvalidStatus.WithMessage(fmt.Sprintf("invalid booking_status: %s", s))
	}
	return status, nil
}

func bookingTransitionError(from, to BookingStatus) *domain.Error {
	return ErrInvalidBookingTransition.
		WithMessage(fmt.Sprintf("cannot move booking from booking_status '%s' to '%s'", from, to)).
		WithDetails(map[string]any{"current": string(from), "target": string(to)})
}
