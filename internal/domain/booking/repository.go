package booking

import (
	"context"

	"github.com/google/uuid"
)

// BookingRepository defines the persistence contract for booking aggregates.
type BookingRepository interface {
	// Create inserts a new booking. It returns ErrDuplicateIdempotencyKey or
	// ErrDuplicateToken when the matching unique index rejects the row.
	Create(ctx context.Context, booking *Booking) error

	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByToken retrieves a booking by its QR check-in token.
	FindByToken(ctx context.Context, token string) (*Booking, error)

	// ListByOwner retrieves a user's bookings, newest first.
	ListByOwner(ctx context.Context, userID string, limit, offset int) ([]*Booking, int64, error)

	// ListByHostUpcoming retrieves open bookings for a host's properties ordered by check-in date.
	ListByHostUpcoming(ctx context.Context, hostID string, limit, offset int) ([]*Booking, int64, error)

	// Update persists changes with optimistic locking on version.
	Update(ctx context.Context, booking *Booking) error

	// Delete hard-deletes a booking.
	Delete(ctx context.Context, id uuid.UUID) error
}
