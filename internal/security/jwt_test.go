package security

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	manager, err := NewJWTManager("test-secret", time.Hour, "reseller-platform")
	require.NoError(t, err)

	token, err := manager.Generate("user-1", "ops", []string{"admin"})
	require.NoError(t, err)

	principal, err := manager.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", principal.UserID)
	assert.Equal(t, "ops", principal.Username)
	assert.True(t, principal.HasAnyRole("admin"))
}

func TestJWTManager_Rejects(t *testing.T) {
	manager, err := NewJWTManager("test-secret", time.Hour, "reseller-platform")
	require.NoError(t, err)

	other, err := NewJWTManager("other-secret", time.Hour, "reseller-platform")
	require.NoError(t, err)
	foreign, err := other.Generate("user-1", "ops", nil)
	require.NoError(t, err)

	_, err = manager.Validate(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer, err := NewJWTManager("test-secret", time.Hour, "someone-else")
	require.NoError(t, err)
	token, err := wrongIssuer.Generate("user-1", "ops", nil)
	require.NoError(t, err)
	_, err = manager.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	manager.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := manager.Generate("user-1", "ops", nil)
	require.NoError(t, err)
	manager.now = time.Now
	_, err = manager.Validate(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-1", "iss": "reseller-platform"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = manager.Validate(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewJWTManager("", time.Hour, "x")
	assert.ErrorIs(t, err, ErrEmptySecret)
}
