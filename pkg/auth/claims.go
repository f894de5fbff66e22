package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionRoleOwner is the only role carried by session tokens.
const SessionRoleOwner = "owner"

// SessionClaims represents the JWT stored in the owner session cookie. The
// registered ID (jti) doubles as the session key in Redis.
type SessionClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// SessionID returns the jti identifying the server-side session.
func (c *SessionClaims) SessionID() string {
	if c == nil {
		return ""
	}
	return c.ID
}

// IdentityClaims are the fields read from an identity provider ID token.
type IdentityClaims struct {
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	jwt.RegisteredClaims
}
