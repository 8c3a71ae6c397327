package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := NewAccessToken("frontend", testSecret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseAccessToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "frontend", claims.ClientID)
	assert.Equal(t, Issuer, claims.Issuer)
}

func TestParseAccessTokenRejects(t *testing.T) {
	expired, err := NewAccessToken("frontend", testSecret, -time.Minute)
	require.NoError(t, err)
	_, err = ParseAccessToken(expired, testSecret)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	good, err := NewAccessToken("frontend", testSecret, time.Hour)
	require.NoError(t, err)
	_, err = ParseAccessToken(good, "other-secret")
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	_, err = ParseAccessToken("not-a-token", testSecret)
	assert.ErrorIs(t, err, jwt.ErrTokenMalformed)

	anonymous, err := NewAccessToken("", testSecret, time.Hour)
	require.NoError(t, err)
	_, err = ParseAccessToken(anonymous, testSecret)
	assert.ErrorIs(t, err, ErrMissingClientID)
}

func TestNewAccessTokenRequiresSecret(t *testing.T) {
	_, err := NewAccessToken("frontend", "", time.Hour)
	assert.Error(t, err)
}

func TestClientIDContext(t *testing.T) {
	_, ok := GetClientIDFromContext(context.Background())
	assert.False(t, ok)

	id, ok := GetClientIDFromContext(WithClientID(context.Background(), "cli"))
	assert.True(t, ok)
	assert.Equal(t, "cli", id)
}
