package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-at-least-16-chars!!"

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)
	return ts
}

func TestNewTokenService(t *testing.T) {
	_, err := NewTokenService("short", time.Hour)
	assert.Error(t, err, "secrets under 16 chars are rejected")

	ts, err := NewTokenService("this-is-16-chars", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenTTL, ts.TTL(), "zero ttl falls back to the default")
}

func TestGenerate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("user-123")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."), "header.payload.signature")

	userID, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)
}

func TestValidate_Expired(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.sign("user-123", -time.Minute)
	require.NoError(t, err)

	_, err = ts.Validate(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidate_ClockAdvance(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.Generate("user-123")
	require.NoError(t, err)

	ts.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = ts.Validate(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidate_WrongSecret(t *testing.T) {
	ts := newTestTokenService(t)
	other, err := NewTokenService("a-completely-different-secret", time.Hour)
	require.NoError(t, err)

	token, err := other.Generate("user-123")
	require.NoError(t, err)

	_, err = ts.Validate(token)
	assert.Error(t, err)
}

func TestValidate_Tampered(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.Generate("user-123")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	parts[1] = parts[1] + "x"
	_, err = ts.Validate(strings.Join(parts, "."))
	assert.Error(t, err)
}

func TestValidate_RejectsOtherIssuerAndAlgorithms(t *testing.T) {
	ts := newTestTokenService(t)
	now := time.Now()

	t.Run("issuer", func(t *testing.T) {
		c := jwt.RegisteredClaims{
			Subject:   "user-123",
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = ts.Validate(token)
		assert.Error(t, err)
	})

	t.Run("none algorithm", func(t *testing.T) {
		c := jwt.RegisteredClaims{
			Subject:   "user-123",
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, c).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = ts.Validate(token)
		assert.Error(t, err)
	})

	t.Run("no subject", func(t *testing.T) {
		token, err := ts.sign("", time.Hour)
		require.NoError(t, err)
		_, err = ts.Validate(token)
		assert.Error(t, err)
	})
}

func TestValidate_Garbage(t *testing.T) {
	ts := newTestTokenService(t)
	for _, in := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := ts.Validate(in)
		assert.Error(t, err, in)
	}
}
