package vespa

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the claims the backend puts in its access and refresh
// tokens.
type TokenClaims struct {
	UserID    int    `json:"user_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	FullName  string `json:"full_name"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// ParseTokenClaims decodes the claims of a backend token without verifying
// its signature. The client never holds the signing key; the backend remains
// the authority on validity. Use it for display and expiry hints only.
func ParseTokenClaims(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse token claims: %w", err)
	}
	return claims, nil
}

// ExpiresWithin reports whether the token expires within d of now. Tokens
// without an exp claim never expire by this measure.
func (c *TokenClaims) ExpiresWithin(d time.Duration, now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return c.ExpiresAt.Time.Before(now.Add(d))
}

// tokenExpiresWithin is false for tokens that cannot be parsed; those are
// left for the backend to reject.
func tokenExpiresWithin(token string, d time.Duration) bool {
	claims, err := ParseTokenClaims(token)
	if err != nil {
		return false
	}
	return claims.ExpiresWithin(d, time.Now())
}
