package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceTokenManager_RoundTrip(t *testing.T) {
	m := NewServiceTokenManager("s3cret", time.Minute)

	raw, err := m.Issue("service-payment")
	require.NoError(t, err)

	claims, err := m.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "service-payment", claims.Service)
}

func TestServiceTokenManager_RejectsForeignSecret(t *testing.T) {
	raw, err := NewServiceTokenManager("other", time.Minute).Issue("service-payment")
	require.NoError(t, err)

	_, err = NewServiceTokenManager("s3cret", time.Minute).Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestServiceTokenManager_RejectsExpired(t *testing.T) {
	m := NewServiceTokenManager("s3cret", -time.Minute)
	raw, err := m.Issue("service-payment")
	require.NoError(t, err)

	_, err = m.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestServiceTokenManager_Disabled(t *testing.T) {
	m := NewServiceTokenManager("", time.Minute)
	assert.False(t, m.Enabled())

	_, err := m.Issue("x")
	assert.Error(t, err)
	_, err = m.Verify("anything")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
