package booking

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// MaxTokenAttempts caps QR token regeneration after store collisions within one create call.
const MaxTokenAttempts = 5

// tokenBytes gives 192 bits of entropy, 32 URL-safe characters.
const tokenBytes = 24

// TokenGenerator produces opaque check-in tokens.
type TokenGenerator interface {
	Generate() (string, error)
}

// RandomTokenGenerator draws tokens from crypto/rand.
type RandomTokenGenerator struct{}

// NewRandomTokenGenerator creates a RandomTokenGenerator.
func NewRandomTokenGenerator() RandomTokenGenerator {
	return RandomTokenGenerator{}
}

// Generate returns a base64url (unpadded) encoding of 24 random bytes.
func (RandomTokenGenerator) Generate() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate qrcode token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
