package booking

import "github.com/eygar/service-booking/pkg/domain"

// Sentinel errors. Match with errors.Is; the HTTP layer maps them by kind.
var (
	ErrInvalidDateRange = domain.New(domain.KindInvalidInput, "INVALID_DATE_RANGE",
		"check_out_date must be after check_in_date")
	ErrAmountMismatch = domain.New(domain.KindInvalidInput, "AMOUNT_MISMATCH",
		"total_amount must equal subtotal_amount + service_fee + cleaning_fee")
	ErrInvalidAmount   = domain.New(domain.KindInvalidInput, "INVALID_AMOUNT", "amounts must be non-negative")
	ErrInvalidGuests   = domain.New(domain.KindInvalidInput, "INVALID_GUESTS_COUNT", "guests_count must be at least 1")
	ErrInvalidCurrency = domain.New(domain.KindInvalidInput, "INVALID_CURRENCY", "currency must be a 3-letter code")
	ErrInvalidStatus   = domain.New(domain.KindInvalidInput, "INVALID_STATUS", "unknown status value")
	ErrMissingField    = domain.New(domain.KindInvalidInput, "MISSING_FIELD", "required field is missing")

	ErrInvalidBookingTransition = domain.New(domain.KindInvalidState, "INVALID_BOOKING_TRANSITION",
		"booking_status transition not allowed")
	ErrInvalidCheckoutTransition = domain.New(domain.KindInvalidState, "INVALID_CHECKOUT_TRANSITION",
		"checkout_status transition not allowed")
	ErrTooEarlyForCheckIn = domain.New(domain.KindInvalidState, "TOO_EARLY_FOR_CHECK_IN",
		"cannot check in before check_in_date")
	ErrBookingClosed = domain.New(domain.KindInvalidState, "BOOKING_CLOSED",
		"booking can no longer be modified")
	ErrOwnerStatusNotAllowed = domain.New(domain.KindInvalidState, "OWNER_STATUS_NOT_ALLOWED",
		"invalid status transition for booking owner")
	ErrNotDeletable = domain.New(domain.KindInvalidState, "BOOKING_NOT_DELETABLE",
		"booking can no longer be deleted; cancel it instead")

	ErrNotOwner = domain.New(domain.KindForbidden, "NOT_BOOKING_OWNER", "you do not own this booking")
	ErrNotHost  = domain.New(domain.KindForbidden, "NOT_BOOKING_HOST", "you are not the host of this booking")

	ErrBookingNotFound = domain.New(domain.KindNotFound, "BOOKING_NOT_FOUND", "booking not found")

	ErrDuplicateIdempotencyKey = domain.New(domain.KindConflict, "DUPLICATE_IDEMPOTENCY_KEY",
		"idempotency_key already used for this user")
	ErrDuplicateToken = domain.New(domain.KindConflict, "DUPLICATE_QRCODE_TOKEN",
		"qrcode_token already issued")
	ErrTokenExhausted = domain.New(domain.KindConflict, "TOKEN_EXHAUSTED",
		"could not issue a unique qrcode_token")
	ErrConcurrentModification = domain.New(domain.KindConflict, "CONCURRENT_MODIFICATION",
		"booking was modified by another request")
)
