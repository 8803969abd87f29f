// FILE: synctrack/src/internal/auth/token.go
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoExpiry = errors.New("token has no expiration claim")

// Only reads claims, the backend remains the authority on token validity
var unverifiedParser = jwt.NewParser()

// TokenExpiry decodes the exp claim of a bearer token without verifying its signature
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := unverifiedParser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("failed to decode token: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid expiration claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, ErrNoExpiry
	}
	return exp.Time, nil
}

// TokenExpired reports whether a cached token should be discarded instead of reused.
// Tokens that cannot be decoded or carry no expiry count as expired.
func TokenExpired(token string, now time.Time) bool {
	exp, err := TokenExpiry(token)
	if err != nil {
		return true
	}
	return !now.Before(exp)
}
