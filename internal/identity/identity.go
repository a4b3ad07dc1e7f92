// Package identity resolves bearer tokens into caller identities using the remote
// auth service, with a short-lived cache in front of it.
package identity

import (
	"context"

	bookingDomain "github.com/eygar/service-booking/internal/domain/booking"
	"github.com/eygar/service-booking/pkg/domain"
)

// Identity is the authenticated caller.
type Identity struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	AvatarURL        string `json:"avatar_url,omitempty"`
	StripeCustomerID string `json:"stripe_customer_id,omitempty"`
	IsEmailVerified  bool   `json:"is_email_verified"`
	HostID           string `json:"host_id,omitempty"`
	VendorID         string `json:"vendor_id,omitempty"`
}

// Snapshot returns the identity as it is denormalized onto a booking.
func (i Identity) Snapshot() bookingDomain.UserSnapshot {
	return bookingDomain.UserSnapshot{
		ID:               i.ID,
		Email:            i.Email,
		FirstName:        i.FirstName,
		LastName:         i.LastName,
		AvatarURL:        i.AvatarURL,
		StripeCustomerID: i.StripeCustomerID,
		IsEmailVerified:  i.IsEmailVerified,
		HostID:           i.HostID,
		VendorID:         i.VendorID,
	}
}

// IsHost reports whether the caller operates a host account.
func (i Identity) IsHost() bool { return i.HostID != "" }

// Verifier resolves a bearer token into an identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

var (
	ErrMissingToken       = domain.NewUnauthorizedError("Unauthorized")
	ErrInvalidToken       = domain.NewUnauthorizedError("Invalid or expired token")
	ErrProfileUnavailable = domain.NewUnauthorizedError("Unable to load user profile")
)
