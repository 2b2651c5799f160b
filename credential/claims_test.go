package credential

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return token
}

func TestTokenExpiry(t *testing.T) {
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signedToken(t, jwt.MapClaims{"sub": "u-1", "exp": expiry.Unix()})

	got, err := TokenExpiry(token)
	require.NoError(t, err)
	assert.WithinDuration(t, expiry, got, time.Second)
}

func TestTokenExpiry_MissingClaim(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "u-1"})

	_, err := TokenExpiry(token)
	assert.ErrorContains(t, err, "no expiry claim")
}

func TestTokenExpiry_NotAJWT(t *testing.T) {
	_, err := TokenExpiry("opaque-token")
	assert.Error(t, err)
}

func TestTokenSubject(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "ops@example.com", "exp": time.Now().Add(time.Hour).Unix()})

	subject, err := TokenSubject(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", subject)
}

func TestTokenSubject_MissingClaim(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})

	_, err := TokenSubject(token)
	assert.ErrorContains(t, err, "no subject claim")
}
