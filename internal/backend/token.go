package backend

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the student session JWT claims the agent cares about. The
// agent has no signing secret; the backend validates the token on every call.
// Parsing here is only for identity display and early expiry detection.
type TokenClaims struct {
	UserID    int    `json:"user_id"`
	Name      string `json:"name"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

var ErrNotStudentToken = errors.New("token is not a student session token")

// ParseSessionToken decodes the claims without signature verification.
func ParseSessionToken(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}
	if claims.TokenType != "student" {
		return nil, ErrNotStudentToken
	}
	return claims, nil
}

// ExpiresWithin reports whether the token expires inside the given window.
// Tokens without an exp claim never report true.
func (c *TokenClaims) ExpiresWithin(window time.Duration) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return time.Until(c.ExpiresAt.Time) < window
}
