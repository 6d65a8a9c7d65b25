package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)

	token, err := m.GenerateToken(42, "alice")
	require.NoError(t, err)

	userID, err := m.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, 42, userID)
}

func TestAccessTokenRejections(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)
	token, err := m.GenerateToken(7, "bob")
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewTokenManager("other-secret", time.Hour).ParseToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		expired := NewTokenManager("test-secret", time.Minute)
		expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		old, err := expired.GenerateToken(7, "bob")
		require.NoError(t, err)

		_, err = m.ParseToken(old)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("placeholder token", func(t *testing.T) {
		_, err := m.ParseToken("mock_token_7")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("reset token used as access token", func(t *testing.T) {
		reset, err := m.GenerateResetToken("bob@example.com", "hash")
		require.NoError(t, err)
		_, err = m.ParseToken(reset)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("alg none", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, AccessClaims{
			UserID:  7,
			Purpose: purposeAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    tokenIssuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = m.ParseToken(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestResetTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("reset-secret", 30*time.Minute)

	token, err := m.GenerateResetToken("carol@example.com", "$argon2id$stored")
	require.NoError(t, err)

	email, fingerprint, err := m.ParseResetToken(token)
	require.NoError(t, err)
	assert.Equal(t, "carol@example.com", email)
	assert.Equal(t, PasswordFingerprint("$argon2id$stored"), fingerprint)
	assert.NotEqual(t, PasswordFingerprint("$argon2id$other"), fingerprint)

	access, err := m.GenerateToken(1, "carol")
	require.NoError(t, err)
	_, _, err = m.ParseResetToken(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResetTokenExpiresAfterTTL(t *testing.T) {
	m := NewTokenManager("reset-secret", 30*time.Minute)
	issued := time.Now()
	m.now = func() time.Time { return issued }

	token, err := m.GenerateResetToken("dave@example.com", "hash")
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(29 * time.Minute) }
	_, _, err = m.ParseResetToken(token)
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(31 * time.Minute) }
	_, _, err = m.ParseResetToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
