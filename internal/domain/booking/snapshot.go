package booking

import (
	"fmt"
	"strconv"
)

// UserSnapshot is the verified identity of the owner, denormalized at creation.
type UserSnapshot struct {
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

// PropertySnapshot is the caller-supplied listing object captured at creation.
type PropertySnapshot map[string]any

// HostID returns property_snapshot.host_id as a string, or "" when absent.
func (p PropertySnapshot) HostID() string {
	raw, ok := p["host_id"]
	if !ok || raw == nil {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprint(v)
	}
}

// PaymentDetails is an opaque gateway payload recorded on the booking.
type PaymentDetails map[string]any
