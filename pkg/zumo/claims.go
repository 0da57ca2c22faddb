package zumo

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the readable claims of a Mobile Services session token.
type TokenClaims struct {
	jwt.RegisteredClaims

	// UID is the "<Provider>:<id>" user identifier.
	UID string `json:"uid"`
	// Version is the token format version ("ver").
	Version any `json:"ver,omitempty"`
}

// Expiry returns the expiration time, or the zero time when the token
// carries no exp claim.
func (c *TokenClaims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}

	return c.ExpiresAt.Time
}

// Expired reports whether the token's exp claim lies before now.
func (c *TokenClaims) Expired(now time.Time) bool {
	exp := c.Expiry()
	return !exp.IsZero() && exp.Before(now)
}

// ParseTokenClaims decodes the claims of a session token WITHOUT verifying
// its signature. Only the service can verify it; the client reads the
// claims for display and expiry checks.
func ParseTokenClaims(token string) (*TokenClaims, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	claims := &TokenClaims{}

	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("zumo: parsing session token: %w", err)
	}

	return claims, nil
}
