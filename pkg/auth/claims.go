package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokenUseAccess tags access tokens so other HS256 tokens signed with the same secret are refused.
const tokenUseAccess = "access"

var errClaimsMismatch = errors.New("token claims are inconsistent")

// AccessTokenPayload is what the auth service knows when it mints a token.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Email  string
	// JTI names the refresh session bound to this token.
	JTI string
}

type AccessTokenClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email,omitempty"`
	Use    string    `json:"use"`
	jwt.RegisteredClaims
}

// Validate runs after the registered-claim checks in jwt.Parse.
func (c AccessTokenClaims) Validate() error {
	if c.Use != tokenUseAccess {
		return errClaimsMismatch
	}
	if c.UserID == uuid.Nil || c.Subject != c.UserID.String() {
		return errClaimsMismatch
	}
	if c.ID == "" {
		return errClaimsMismatch
	}
	return nil
}
