package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// QRCode is the check-in credential issued once at creation.
type QRCode struct {
	Token     string
	ImageURL  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Booking is the aggregate root for a lodging reservation.
type Booking struct {
	id               uuid.UUID
	userID           string
	userSnapshot     UserSnapshot
	propertyID       string
	propertySnapshot PropertySnapshot

	checkInDate  time.Time
	checkOutDate time.Time
	guestsCount  int

	currency       string
	nightsStay     int64
	pricePerNight  int64
	subtotalAmount int64
	serviceFee     int64
	cleaningFee    int64
	totalAmount    int64
	paymentDetails PaymentDetails

	bookingStatus  BookingStatus
	checkoutStatus CheckoutStatus

	qrcode         QRCode
	idempotencyKey *string

	cancelledAt        *time.Time
	cancellationReason string

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewBookingParams carries everything needed to open a booking.
type NewBookingParams struct {
	ID               uuid.UUID
	User             UserSnapshot
	PropertyID       string
	PropertySnapshot PropertySnapshot
	CheckInDate      time.Time
	CheckOutDate     time.Time
	GuestsCount      int
	Currency         string
	NightsStay       int64
	PricePerNight    int64
	SubtotalAmount   int64
	ServiceFee       int64
	CleaningFee      int64
	TotalAmount      int64
	PaymentDetails   PaymentDetails
	IdempotencyKey   string
	QRCode           QRCode
	Now              time.Time
}

// NewBooking validates params and creates a booking in pending_payment / not_checked_in.
func NewBooking(p NewBookingParams) (*Booking, error) {
	if p.ID == uuid.Nil {
		return nil, ErrMissingField.WithMessage("booking id is required")
	}
	if p.User.ID == "" {
		return nil, ErrMissingField.WithMessage("user id is required")
	}
	if p.PropertyID == "" {
		return nil, ErrMissingField.WithMessage("property_id is required")
	}
	if p.PropertySnapshot == nil {
		return nil, ErrMissingField.WithMessage("property_snapshot is required")
	}
	if p.QRCode.Token == "" {
		return nil, ErrMissingField.WithMessage("qrcode token is required")
	}
	if err := ValidateDateOrder(p.CheckInDate, p.CheckOutDate); err != nil {
		return nil, err
	}
	if err := ValidateGuests(p.GuestsCount); err != nil {
		return nil, err
	}
	if p.NightsStay < 0 || p.PricePerNight < 0 {
		return nil, ErrInvalidAmount
	}
	if err := ValidateAmounts(p.SubtotalAmount, p.ServiceFee, p.CleaningFee, p.TotalAmount); err != nil {
		return nil, err
	}
	currency, err := NormalizeCurrency(p.Currency)
	if err != nil {
		return nil, err
	}

	now := p.Now.UTC()
	if p.Now.IsZero() {
		now = time.Now().UTC()
	}
	details := p.PaymentDetails
	if details == nil {
		details = PaymentDetails{}
	}
	var idemKey *string
	if p.IdempotencyKey != "" {
		k := p.IdempotencyKey
		idemKey = &k
	}

	return &Booking{
		id:               p.ID,
		userID:           p.User.ID,
		userSnapshot:     p.User,
		propertyID:       p.PropertyID,
		propertySnapshot: p.PropertySnapshot,
		checkInDate:      p.CheckInDate.UTC(),
		checkOutDate:     p.CheckOutDate.UTC(),
		guestsCount:      p.GuestsCount,
		currency:         currency,
		nightsStay:       p.NightsStay,
		pricePerNight:    p.PricePerNight,
		subtotalAmount:   p.SubtotalAmount,
		serviceFee:       p.ServiceFee,
		cleaningFee:      p.CleaningFee,
		totalAmount:      p.TotalAmount,
		paymentDetails:   details,
		bookingStatus:    StatusPendingPayment,
		checkoutStatus:   CheckoutNotCheckedIn,
		qrcode:           p.QRCode,
		idempotencyKey:   idemKey,
		version:          1,
		createdAt:        now,
		updatedAt:        now,
	}, nil
}

// State is the full persisted state of a booking, used to rehydrate it.
type State struct {
	ID                 uuid.UUID
	UserID             string
	UserSnapshot       UserSnapshot
	PropertyID         string
	PropertySnapshot   PropertySnapshot
	CheckInDate        time.Time
	CheckOutDate       time.Time
	GuestsCount        int
	Currency           string
	NightsStay         int64
	PricePerNight      int64
	SubtotalAmount     int64
	ServiceFee         int64
	CleaningFee        int64
	TotalAmount        int64
	PaymentDetails     PaymentDetails
	BookingStatus      BookingStatus
	CheckoutStatus     CheckoutStatus
	QRCode             QRCode
	IdempotencyKey     *string
	CancelledAt        *time.Time
	CancellationReason string
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(s State) *Booking {
	return &Booking{
		id:                 s.ID,
		userID:             s.UserID,
		userSnapshot:       s.UserSnapshot,
		propertyID:         s.PropertyID,
		propertySnapshot:   s.PropertySnapshot,
		checkInDate:        s.CheckInDate,
		checkOutDate:       s.CheckOutDate,
		guestsCount:        s.GuestsCount,
		currency:           s.Currency,
		nightsStay:         s.NightsStay,
		pricePerNight:      s.PricePerNight,
		subtotalAmount:     s.SubtotalAmount,
		serviceFee:         s.ServiceFee,
		cleaningFee:        s.CleaningFee,
		totalAmount:        s.TotalAmount,
		paymentDetails:     s.PaymentDetails,
		bookingStatus:      s.BookingStatus,
		checkoutStatus:     s.CheckoutStatus,
		qrcode:             s.QRCode,
		idempotencyKey:     s.IdempotencyKey,
		cancelledAt:        s.CancelledAt,
		cancellationReason: s.CancellationReason,
		version:            s.Version,
		createdAt:          s.CreatedAt,
		updatedAt:          s.UpdatedAt,
	}
}

// --- Getters ---

func (b *Booking) ID() uuid.UUID                      { return b.id }
func (b *Booking) UserID() string                     { return b.userID }
func (b *Booking) UserSnapshot() UserSnapshot         { return b.userSnapshot }
func (b *Booking) PropertyID() string                 { return b.propertyID }
func (b *Booking) PropertySnapshot() PropertySnapshot { return b.propertySnapshot }
func (b *Booking) HostID() string                     { return b.propertySnapshot.HostID() }
func (b *Booking) CheckInDate() time.Time             { return b.checkInDate }
func (b *Booking) CheckOutDate() time.Time            { return b.checkOutDate }
func (b *Booking) GuestsCount() int                   { return b.guestsCount }
func (b *Booking) Currency() string                   { return b.currency }
func (b *Booking) NightsStay() int64                  { return b.nightsStay }
func (b *Booking) PricePerNight() int64               { return b.pricePerNight }
func (b *Booking) SubtotalAmount() int64              { return b.subtotalAmount }
func (b *Booking) ServiceFee() int64                  { return b.serviceFee }
func (b *Booking) CleaningFee() int64                 { return b.cleaningFee }
func (b *Booking) TotalAmount() int64                 { return b.totalAmount }
func (b *Booking) PaymentDetails() PaymentDetails     { return b.paymentDetails }
func (b *Booking) BookingStatus() BookingStatus       { return b.bookingStatus }
func (b *Booking) CheckoutStatus() CheckoutStatus     { return b.checkoutStatus }
func (b *Booking) QRCode() QRCode                     { return b.qrcode }
func (b *Booking) IdempotencyKey() *string            { return b.idempotencyKey }
func (b *Booking) CancelledAt() *time.Time            { return b.cancelledAt }
func (b *Booking) CancellationReason() string         { return b.cancellationReason }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64       { return b.version }
func (b *Booking) CreatedAt() time.Time { return b.createdAt }
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// --- Authorization helpers ---

// IsOwnedBy reports whether userID created this booking.
func (b *Booking) IsOwnedBy(userID string) bool {
	return userID != "" && b.userID == userID
}

// IsHostedBy reports whether hostID operates the booked property.
func (b *Booking) IsHostedBy(hostID string) bool {
	return hostID != "" && b.HostID() == hostID
}

// --- Behavior ---

// ConfirmPayment records a successful payment. It reports false without error when the
// booking is terminal or already past payment, so repeated callbacks are harmless.
func (b *Booking) ConfirmPayment(details PaymentDetails, now time.Time) bool {
	if !b.bookingStatus.CanTransitionTo(StatusPaymentConfirmed) {
		return false
	}
	b.bookingStatus = StatusPaymentConfirmed
	if details != nil {
		b.paymentDetails = details
	}
	b.touch(now)
	return true
}

// ApproveByHost moves a payment_confirmed booking to host_approved.
func (b *Booking) ApproveByHost(hostID string, now time.Time) error {
	if !b.IsHostedBy(hostID) {
		return ErrNotHost
	}
	if b.bookingStatus != StatusPaymentConfirmed {
		return ErrInvalidBookingTransition.
			WithMessage(fmt.Sprintf("booking must be payment_confirmed before host approval (current: %s)", b.bookingStatus)).
			WithDetails(map[string]any{"current": string(b.bookingStatus), "target": string(StatusHostApproved)})
	}
	b.bookingStatus = StatusHostApproved
	b.touch(now)
	return nil
}

// Cancel moves the booking to cancelled. Cancelling a cancelled booking reports false
// without error.
func (b *Booking) Cancel(reason string, now time.Time) (bool, error) {
	if b.bookingStatus == StatusCancelled {
		return false, nil
	}
	if !b.bookingStatus.CanBeCancelled() {
		return false, bookingTransitionError(b.bookingStatus, StatusCancelled)
	}
	at := now.UTC()
	b.bookingStatus = StatusCancelled
	b.cancelledAt = &at
	b.cancellationReason = reason
	b.touch(now)
	return true, nil
}

// Expire moves the booking to expired; a guest who never arrived is expired on the
// checkout axis too. Expiring an expired booking reports false without error.
func (b *Booking) Expire(now time.Time) (bool, error) {
	if b.bookingStatus == StatusExpired {
		return false, nil
	}
	if !b.bookingStatus.CanTransitionTo(StatusExpired) {
		return false, bookingTransitionError(b.bookingStatus, StatusExpired)
	}
	b.bookingStatus = StatusExpired
	if b.checkoutStatus.CanTransitionTo(CheckoutExpired) {
		b.checkoutStatus = CheckoutExpired
	}
	b.touch(now)
	return true, nil
}

// CheckIn marks the guest as arrived. The checkout axis must be exactly not_checked_in,
// the booking must not be closed, and now must not precede the check-in date.
func (b *Booking) CheckIn(now time.Time) error {
	if b.checkoutStatus != CheckoutNotCheckedIn {
		return checkoutTransitionError(b.checkoutStatus, CheckoutCheckedIn)
	}
	if b.bookingStatus.IsTerminal() {
		return ErrInvalidCheckoutTransition.
			WithMessage(fmt.Sprintf("cannot check in a booking in booking_status '%s'", b.bookingStatus)).
			WithDetails(map[string]any{"current": string(b.bookingStatus), "target": string(CheckoutCheckedIn)})
	}
	if err := ValidateCheckInEligibility(b.checkInDate, now); err != nil {
		return err
	}
	b.checkoutStatus = CheckoutCheckedIn
	b.touch(now)
	return nil
}

// CheckOut marks the guest as departed.
func (b *Booking) CheckOut(now time.Time) error {
	if !b.checkoutStatus.CanTransitionTo(CheckoutCheckedOut) {
		return checkoutTransitionError(b.checkoutStatus, CheckoutCheckedOut)
	}
	b.checkoutStatus = CheckoutCheckedOut
	b.touch(now)
	return nil
}

// Complete closes a checked-out stay; a host_approved booking is completed with it.
func (b *Booking) Complete(now time.Time) error {
	if !b.checkoutStatus.CanTransitionTo(CheckoutCompleted) {
		return checkoutTransitionError(b.checkoutStatus, CheckoutCompleted)
	}
	b.checkoutStatus = CheckoutCompleted
	if b.bookingStatus.CanTransitionTo(StatusCompleted) {
		b.bookingStatus = StatusCompleted
	}
	b.touch(now)
	return nil
}

// OwnerPatch is a partial owner-initiated update. Nil fields are left untouched.
type OwnerPatch struct {
	CheckInDate    *time.Time
	CheckOutDate   *time.Time
	GuestsCount    *int
	PaymentDetails PaymentDetails
	BookingStatus  *BookingStatus
}

// IsEmpty reports whether the patch changes nothing.
func (p OwnerPatch) IsEmpty() bool {
	return p.CheckInDate == nil && p.CheckOutDate == nil && p.GuestsCount == nil &&
		p.PaymentDetails == nil && p.BookingStatus == nil
}

// ApplyOwnerUpdate validates the whole patch against the current state and applies it
// only if every check passes.
func (b *Booking) ApplyOwnerUpdate(p OwnerPatch, now time.Time) error {
	if b.bookingStatus.IsTerminal() {
		return ErrBookingClosed.
			WithMessage(fmt.Sprintf("cannot update booking in booking_status '%s'", b.bookingStatus)).
			WithDetails(map[string]any{"current": string(b.bookingStatus)})
	}

	if p.BookingStatus != nil {
		target := *p.BookingStatus
		if !target.IsValid() {
			return ErrInvalidStatus.WithMessage(fmt.Sprintf("invalid booking_status: %s", target))
		}
		if !target.IsOwnerSettable() || !b.bookingStatus.IsOwnerSettable() {
			return ErrOwnerStatusNotAllowed.WithDetails(map[string]any{
				"current": string(b.bookingStatus),
				"target":  string(target),
			})
		}
		if target != b.bookingStatus && !b.bookingStatus.CanTransitionTo(target) {
			return bookingTransitionError(b.bookingStatus, target)
		}
	}

	checkIn, checkOut := b.checkInDate, b.checkOutDate
	if p.CheckInDate != nil || p.CheckOutDate != nil {
		if b.checkoutStatus != CheckoutNotCheckedIn {
			return ErrInvalidCheckoutTransition.
				WithMessage(fmt.Sprintf("cannot change stay dates in checkout_status '%s'", b.checkoutStatus)).
				WithDetails(map[string]any{"current": string(b.checkoutStatus)})
		}
		if p.CheckInDate != nil {
			checkIn = p.CheckInDate.UTC()
		}
		if p.CheckOutDate != nil {
			checkOut = p.CheckOutDate.UTC()
		}
		if err := ValidateDateOrder(checkIn, checkOut); err != nil {
			return err
		}
	}

	if p.GuestsCount != nil {
		if err := ValidateGuests(*p.GuestsCount); err != nil {
			return err
		}
	}

	b.checkInDate, b.checkOutDate = checkIn, checkOut
	b.qrcode.ExpiresAt = checkOut
	if p.GuestsCount != nil {
		b.guestsCount = *p.GuestsCount
	}
	if p.PaymentDetails != nil {
		b.paymentDetails = p.PaymentDetails
	}
	if p.BookingStatus != nil {
		b.bookingStatus = *p.BookingStatus
	}
	b.touch(now)
	return nil
}

// AttachQRCodeImage records where the rendered QR image for the token is served.
func (b *Booking) AttachQRCodeImage(url string) {
	b.qrcode.ImageURL = url
}

// EnsureDeletable rejects hard deletion once the booking is owner-confirmed.
func (b *Booking) EnsureDeletable() error {
	if b.bookingStatus.IsOwnerConfirmed() {
		return ErrNotDeletable.
			WithMessage(fmt.Sprintf("cannot delete booking in booking_status '%s'; cancel instead", b.bookingStatus)).
			WithDetails(map[string]any{"current": string(b.bookingStatus)})
	}
	return nil
}

// Validate checks the entity-level invariants that must hold before any write.
func (b *Booking) Validate() error {
	if !b.bookingStatus.IsValid() {
		return ErrInvalidStatus.WithMessage(fmt.Sprintf("invalid booking_status: %s", b.bookingStatus))
	}
	if !b.checkoutStatus.IsValid() {
		return ErrInvalidStatus.WithMessage(fmt.Sprintf("invalid checkout_status: %s", b.checkoutStatus))
	}
	if err := ValidateDateOrder(b.checkInDate, b.checkOutDate); err != nil {
		return err
	}
	if err := ValidateGuests(b.guestsCount); err != nil {
		return err
	}
	if b.nightsStay < 0 || b.pricePerNight < 0 || b.subtotalAmount < 0 || b.serviceFee < 0 ||
		b.cleaningFee < 0 || b.totalAmount < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
}

func (b *Booking) touch(now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	b.updatedAt = now.UTC()
}
