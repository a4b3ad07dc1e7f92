package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a service token fails verification.
var ErrInvalidToken = errors.New("invalid service token")

// ServiceClaims identifies a trusted internal caller such as the payment service.
type ServiceClaims struct {
	Service string `json:"svc"`
	jwt.RegisteredClaims
}

// ServiceTokenManager issues and verifies HS256 tokens for service-to-service calls.
type ServiceTokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewServiceTokenManager creates a manager. An empty secret disables verification entirely.
func NewServiceTokenManager(secret string, ttl time.Duration) *ServiceTokenManager {
	return &ServiceTokenManager{secret: []byte(secret), ttl: ttl}
}

// Enabled reports whether a signing secret is configured.
func (m *ServiceTokenManager) Enabled() bool {
	return len(m.secret) > 0
}

// Issue signs a token for the named service.
func (m *ServiceTokenManager) Issue(service string) (string, error) {
	if !m.Enabled() {
		return "", fmt.Errorf("service token secret is not configured")
	}
	now := time.Now()
	claims := ServiceClaims{
		Service: service,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   service,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify parses and validates a token, returning its claims.
func (m *ServiceTokenManager) Verify(raw string) (*ServiceClaims, error) {
	if !m.Enabled() {
		return nil, fmt.Errorf("%w: verification disabled", ErrInvalidToken)
	}
	claims := &ServiceClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Service == "" {
		return nil, fmt.Errorf("%w: missing svc claim", ErrInvalidToken)
	}
	return claims, nil
}
