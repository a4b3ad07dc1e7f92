// Package events holds the Kafka topics, CloudEvent types and payloads exchanged
// between the booking service and its neighbours.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Topics.
const (
	TopicBookingEvents = "booking.events"
	TopicPaymentEvents = "payment.events"
)

// Booking event types published on TopicBookingEvents.
const (
	BookingCreated          = "booking.created"
	BookingUpdated          = "booking.updated"
	BookingCancelled        = "booking.cancelled"
	BookingDeleted          = "booking.deleted"
	BookingPaymentConfirmed = "booking.payment_confirmed"
	BookingHostApproved     = "booking.host_approved"
	BookingCheckedIn        = "booking.checked_in"
	BookingCheckedOut       = "booking.checked_out"
	BookingCompleted        = "booking.completed"
	BookingExpired          = "booking.expired"
)

// Payment event types consumed from TopicPaymentEvents.
const (
	PaymentSucceeded = "payment.succeeded"
)

// BookingLifecycleEvent is the payload of every booking.* event.
type BookingLifecycleEvent struct {
	BookingID      uuid.UUID `json:"booking_id"`
	UserID         string    `json:"user_id"`
	PropertyID     string    `json:"property_id"`
	HostID         string    `json:"host_id,omitempty"`
	BookingStatus  string    `json:"booking_status"`
	CheckoutStatus string    `json:"checkout_status"`
	CheckInDate    time.Time `json:"check_in_date"`
	CheckOutDate   time.Time `json:"check_out_date"`
	TotalAmount    int64     `json:"total_amount"`
	Currency       string    `json:"currency"`
	Reason         string    `json:"reason,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// PaymentSucceededEvent is published by the payment service once a charge settles.
type PaymentSucceededEvent struct {
	BookingID      uuid.UUID      `json:"booking_id"`
	PaymentID      string         `json:"payment_id"`
	AmountCents    int64          `json:"amount_cents"`
	Currency       string         `json:"currency"`
	PaymentDetails map[string]any `json:"payment_details,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
}
