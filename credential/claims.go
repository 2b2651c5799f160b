package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// The backend issues JWT access tokens. The client never verifies signatures
// (that is the server's job); it only inspects claims to schedule proactive
// refreshes and to report the logged-in identity.

// TokenExpiry extracts the expiry claim from an access token without
// verifying its signature.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parsing access token: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("reading expiry claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, errors.New("access token has no expiry claim")
	}

	return exp.Time, nil
}

// TokenSubject extracts the subject claim from an access token without
// verifying its signature.
func TokenSubject(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("parsing access token: %w", err)
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("reading subject claim: %w", err)
	}
	if sub == "" {
		return "", errors.New("access token has no subject claim")
	}

	return sub, nil
}
