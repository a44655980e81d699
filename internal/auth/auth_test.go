package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T, key string) *Service {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	require.NoError(t, err)
	return NewService("secret", time.Hour, string(hash))
}

func TestVerifyKey(t *testing.T) {
	svc := newTestService(t, "operator-key")

	assert.NoError(t, svc.VerifyKey("operator-key"))
	assert.ErrorIs(t, svc.VerifyKey("wrong"), ErrInvalidCredentials)

	assert.ErrorIs(t, NewService("secret", time.Hour, "").VerifyKey("x"), ErrDisabled)
	assert.ErrorIs(t, NewService("", time.Hour, "hash").VerifyKey("x"), ErrDisabled)
}

func TestHashKeyRoundTrip(t *testing.T) {
	hash, err := HashKey("k")
	require.NoError(t, err)
	assert.NoError(t, NewService("s", time.Hour, hash).VerifyKey("k"))
}

func TestTokenLifecycle(t *testing.T) {
	svc := newTestService(t, "k")

	token, expires, err := svc.GenerateToken("ops")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Operator)
	assert.NotEmpty(t, claims.ID)

	_, err = NewService("other", time.Hour, "").ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsExpiredAndForeign(t *testing.T) {
	expired := NewService("secret", -time.Minute, "")
	token, _, err := expired.GenerateToken("ops")
	require.NoError(t, err)

	_, err = expired.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Issuer: "someone-else"})
	signed, err := foreign.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = expired.ValidateToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGenerateTokenDisabled(t *testing.T) {
	_, _, err := NewService("", time.Hour, "").GenerateToken("ops")
	assert.ErrorIs(t, err, ErrDisabled)
}
