package booking

import (
	"fmt"
	"slices"

	"github.com/eygar/service-booking/pkg/domain"
)

// CheckoutStatus is the physical-presence lifecycle of a stay, independent of BookingStatus.
type CheckoutStatus string

const (
	CheckoutNotCheckedIn CheckoutStatus = "not_checked_in"
	CheckoutCheckedIn    CheckoutStatus = "checked_in"
	CheckoutCheckedOut   CheckoutStatus = "checked_out"
	CheckoutCompleted    CheckoutStatus = "completed"
	CheckoutExpired      CheckoutStatus = "expired"
)

var checkoutTransitions = map[CheckoutStatus][]CheckoutStatus{
	CheckoutNotCheckedIn: {CheckoutCheckedIn, CheckoutExpired},
	CheckoutCheckedIn:    {CheckoutCheckedOut},
	CheckoutCheckedOut:   {CheckoutCompleted},
	CheckoutCompleted:    {},
	CheckoutExpired:      {},
}

// IsValid returns true if the status is a recognized checkout status.
func (s CheckoutStatus) IsValid() bool {
	_, ok := checkoutTransitions[s]
	return ok
}

// CanTransitionTo returns true if the checkout axis may move from s to target.
func (s CheckoutStatus) CanTransitionTo(target CheckoutStatus) bool {
	return slices.Contains(checkoutTransitions[s], target)
}

// IsTerminal returns true if no further checkout transitions are possible.
func (s CheckoutStatus) IsTerminal() bool {
	return len(checkoutTransitions[s]) == 0
}

// UpcomingCheckoutStatuses are the checkout states in which the guest has not yet left
// the property.
func UpcomingCheckoutStatuses() []CheckoutStatus {
	return []CheckoutStatus{CheckoutNotCheckedIn, CheckoutCheckedIn}
}

func (s CheckoutStatus) String() string { return string(s) }

// ParseCheckoutStatus converts a string to a CheckoutStatus.
func ParseCheckoutStatus(s string) (CheckoutStatus, error) {
	status := CheckoutStatus(s)
	if !status.IsValid() {
		return "", ErrInvalidStatus.WithMessage(fmt.Sprintf("invalid checkout_status: %s", s))
	}
	return status, nil
}

func checkoutTransitionError(from, to CheckoutStatus) *domain.Error {
	verb := "move"
	if to == CheckoutCheckedIn {
		verb = "check in"
	}
	return ErrInvalidCheckoutTransition.
		WithMessage(fmt.Sprintf("cannot %s from checkout_status '%s'", verb, from)).
		WithDetails(map[string]any{"current": string(from), "target": string(to)})
}
