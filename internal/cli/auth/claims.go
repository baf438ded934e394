package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrOpaqueToken is returned by Inspect when the token is not a JWT
var ErrOpaqueToken = errors.New("token is not a JWT")

// TokenInfo is what the client can read from a bearer token without the
// signing key. It is informational only: the backend stays the authority on
// whether a token is valid.
type TokenInfo struct {
	UserID    string
	UserType  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token's exp claim is in the past relative to now
func (i *TokenInfo) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

// accessClaims mirrors the claims the backend puts in its access tokens
type accessClaims struct {
	UserID   any    `json:"user_id"`
	UserType string `json:"user_type"`
	jwt.RegisteredClaims
}

// Inspect decodes the token claims without verifying the signature
func Inspect(token string) (*TokenInfo, error) {
	var claims accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpaqueToken, err)
	}

	info := &TokenInfo{
		UserType: claims.UserType,
	}
	if claims.UserID != nil {
		switch v := claims.UserID.(type) {
		case float64:
			info.UserID = fmt.Sprintf("%d", int64(v))
		default:
			info.UserID = fmt.Sprintf("%v", v)
		}
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}
