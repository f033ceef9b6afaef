package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the client's view of an access token. The client cannot verify the
// signature; these values are hints for logging and pre-emptive expiry checks only.
type Claims struct {
	Subject   string
	Type      string // "access" or "refresh"
	IssuedAt  *time.Time
	ExpiresAt *time.Time
}

type serverClaims struct {
	jwt.RegisteredClaims
	Type string `json:"type,omitempty"`
}

// Inspect decodes a JWT without verifying it
func Inspect(raw string) (Claims, error) {
	if strings.TrimSpace(raw) == "" {
		return Claims{}, errors.New("empty token")
	}

	var sc serverClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &sc); err != nil {
		return Claims{}, fmt.Errorf("token.Inspect ParseUnverified: %w", err)
	}

	c := Claims{Subject: sc.Subject, Type: sc.Type}
	if sc.IssuedAt != nil {
		iat := sc.IssuedAt.Time
		c.IssuedAt = &iat
	}
	if sc.ExpiresAt != nil {
		exp := sc.ExpiresAt.Time
		c.ExpiresAt = &exp
	}
	return c, nil
}

// ExpiredAt reports whether the claims are past their expiry at now, allowing for skew.
// Tokens without an expiry never expire client side.
func (c Claims) ExpiredAt(now time.Time, skew time.Duration) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !now.Add(skew).Before(*c.ExpiresAt)
}
