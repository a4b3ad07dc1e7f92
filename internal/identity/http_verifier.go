package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/eygar/service-booking/internal/config"
)

const maxProfileBytes = 1 << 20

// HTTPVerifier checks a token against the auth service and then loads the profile.
type HTTPVerifier struct {
	client    *http.Client
	verifyURL string
	meURL     string
	logger    *zap.Logger
}

// NewHTTPVerifier builds a verifier from the auth section of the service config.
func NewHTTPVerifier(cfg config.AuthConfig, logger *zap.Logger) (*HTTPVerifier, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid auth base url: %w", err)
	}
	verifyURL, err := base.Parse(cfg.VerifyPath)
	if err != nil {
		return nil, fmt.Errorf("invalid auth verify path: %w", err)
	}
	meURL, err := base.Parse(cfg.MePath)
	if err != nil {
		return nil, fmt.Errorf("invalid auth me path: %w", err)
	}
	return &HTTPVerifier{
		client:    &http.Client{Timeout: cfg.Timeout},
		verifyURL: verifyURL.String(),
		meURL:     meURL.String(),
		logger:    logger,
	}, nil
}

// Verify posts the token to the verify endpoint, then fetches /me with it.
func (v *HTTPVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return nil, fmt.Errorf("failed to encode verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth verify request failed: %w", err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxProfileBytes))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		v.logger.Debug("token rejected by auth service", zap.Int("status", resp.StatusCode))
		return nil, ErrInvalidToken
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, v.meURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err = v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth profile request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, ErrProfileUnavailable
	}

	var me profile
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProfileBytes)).Decode(&me); err != nil {
		return nil, ErrProfileUnavailable.Wrap(err)
	}
	if me.ID == "" {
		return nil, ErrProfileUnavailable
	}

	id := &Identity{
		ID:               string(me.ID),
		Email:            me.Email,
		FirstName:        me.FirstName,
		LastName:         me.LastName,
		AvatarURL:        me.AvatarURL,
		StripeCustomerID: me.StripeCustomerID,
		IsEmailVerified:  me.IsEmailVerified,
	}
	if me.Host != nil {
		id.HostID = string(me.Host.ID)
	}
	if me.Vendor != nil {
		id.VendorID = string(me.Vendor.ID)
	}
	return id, nil
}

type profile struct {
	ID               flexID   `json:"id"`
	Email            string   `json:"email"`
	FirstName        string   `json:"first_name"`
	LastName         string   `json:"last_name"`
	AvatarURL        string   `json:"avatar_url"`
	StripeCustomerID string   `json:"stripe_customer_id"`
	IsEmailVerified  bool     `json:"is_email_verified"`
	Host             *account `json:"eygar_host"`
	Vendor           *account `json:"eygar_vendor"`
}

type account struct {
	ID flexID `json:"id"`
}

// flexID accepts identifiers encoded either as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*f = flexID(str)
		return nil
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return fmt.Errorf("identifier must be a string or number: %s", s)
	}
	*f = flexID(s)
	return nil
}
