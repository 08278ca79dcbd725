package auth

import (
	"github.com/golang-jwt/jwt/v5"
	clierrors "github.com/zfogg/circle/cli/pkg/errors"
)

// Claims are the fields the client reads from an access token
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// ParseClaims decodes an access token without verifying its signature.
// The signing key lives with the auth service; the client only needs the
// subject and expiry to decide when to refresh.
func ParseClaims(token string) (*Claims, error) {
	if token == "" {
		return nil, clierrors.ValidationError("token", "is empty")
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, clierrors.InvalidFormatError("access token", err)
	}
	return claims, nil
}
