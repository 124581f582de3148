package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("secret", "user-42", RoleCustomer, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.Exp, 5*time.Second)

	claims, err := ParseAccessToken("secret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.Subject)
	assert.Equal(t, RoleCustomer, claims.Role)
}

func TestParseAccessTokenRejects(t *testing.T) {
	good, err := NewAccessToken("secret", "u", RoleOperator, time.Hour)
	require.NoError(t, err)
	_, err = ParseAccessToken("other", good.Token)
	assert.Error(t, err, "wrong secret")

	expired, err := NewAccessToken("secret", "u", RoleOperator, -time.Minute)
	require.NoError(t, err)
	_, err = ParseAccessToken("secret", expired.Token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	anon, err := NewAccessToken("secret", "", RoleCustomer, time.Hour)
	require.NoError(t, err)
	_, err = ParseAccessToken("secret", anon.Token)
	assert.ErrorIs(t, err, ErrNoSubject)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u", "exp": time.Now().Add(time.Hour).Unix()})
	raw, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseAccessToken("secret", raw)
	assert.Error(t, err)
}
