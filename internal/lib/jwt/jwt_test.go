package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "test-secret"
	testIssuer   = "iss"
	testAudience = "aud"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	signed, expiresAt, err := NewAccessToken(42, "user", testSecret, testIssuer, testAudience, 15*time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := ParseAccessToken(signed, testSecret, testIssuer, testAudience)
	require.NoError(t, err)

	userID, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, testIssuer, claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestAccessTokenIDsAreUnique(t *testing.T) {
	first, _, err := NewAccessToken(1, "user", testSecret, testIssuer, testAudience, time.Minute)
	require.NoError(t, err)

	second, _, err := NewAccessToken(1, "user", testSecret, testIssuer, testAudience, time.Minute)
	require.NoError(t, err)

	firstClaims, err := ParseAccessToken(first, testSecret, testIssuer, testAudience)
	require.NoError(t, err)
	secondClaims, err := ParseAccessToken(second, testSecret, testIssuer, testAudience)
	require.NoError(t, err)

	assert.NotEqual(t, firstClaims.ID, secondClaims.ID)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	signed, _, err := NewAccessToken(1, "user", testSecret, testIssuer, testAudience, time.Minute)
	require.NoError(t, err)

	_, err = ParseAccessToken(signed, "another-secret", testIssuer, testAudience)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	signed, _, err := NewAccessToken(1, "user", testSecret, testIssuer, testAudience, -time.Minute)
	require.NoError(t, err)

	_, err = ParseAccessToken(signed, testSecret, testIssuer, testAudience)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsForeignIssuerOrAudience(t *testing.T) {
	signed, _, err := NewAccessToken(1, "user", testSecret, testIssuer, testAudience, time.Minute)
	require.NoError(t, err)

	_, err = ParseAccessToken(signed, testSecret, "someone-else", testAudience)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseAccessToken(signed, testSecret, testIssuer, "another-app")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := ParseAccessToken("not.a.token", testSecret, testIssuer, testAudience)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshTokensAreOpaqueAndUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		token, err := NewRefreshToken()
		require.NoError(t, err)

		// 32 random bytes in standard base64.
		assert.Len(t, token, 44)

		_, dup := seen[token]
		assert.False(t, dup)
		seen[token] = struct{}{}
	}
}
