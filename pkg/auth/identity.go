package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

var (
	ErrIdentityTokenMissing = errors.New("identity token is required")
	ErrIdentityEmailMissing = errors.New("identity token has no email")
)

// IdentityVerifier checks ID tokens issued by the configured identity
// provider. Tokens are accepted when signed with the shared HS256 secret or
// the RS256 public key, and when issuer and audience match.
type IdentityVerifier struct {
	issuer    string
	audience  string
	secret    []byte
	publicKey *rsa.PublicKey
}

// NewIdentityVerifier builds a verifier from the owner configuration.
func NewIdentityVerifier(cfg config.OwnerConfig) (*IdentityVerifier, error) {
	if strings.TrimSpace(cfg.IdentityIssuer) == "" {
		return nil, fmt.Errorf("identity issuer is required")
	}
	if strings.TrimSpace(cfg.IdentityAudience) == "" {
		return nil, fmt.Errorf("identity audience is required")
	}
	v := &IdentityVerifier{
		issuer:   cfg.IdentityIssuer,
		audience: cfg.IdentityAudience,
	}
	if cfg.IdentitySecret != "" {
		v.secret = []byte(cfg.IdentitySecret)
	}
	if pemData := strings.TrimSpace(cfg.IdentityPEM); pemData != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemData))
		if err != nil {
			return nil, fmt.Errorf("parse identity public key: %w", err)
		}
		v.publicKey = key
	}
	if v.secret == nil && v.publicKey == nil {
		return nil, fmt.Errorf("identity secret or public key is required")
	}
	return v, nil
}

// Verify validates the token and returns its claims. The email is lowercased.
func (v *IdentityVerifier) Verify(tokenString string) (*IdentityClaims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrIdentityTokenMissing
	}

	claims := &IdentityClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		v.keyFunc,
		jwt.WithValidMethods(v.methods()),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return nil, fmt.Errorf("identity email not verified")
	}
	claims.Email = strings.ToLower(strings.TrimSpace(claims.Email))
	if claims.Email == "" {
		return nil, ErrIdentityEmailMissing
	}
	return claims, nil
}

func (v *IdentityVerifier) keyFunc(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if v.secret == nil {
			return nil, fmt.Errorf("hmac identity tokens not accepted")
		}
		return v.secret, nil
	case *jwt.SigningMethodRSA:
		if v.publicKey == nil {
			return nil, fmt.Errorf("rsa identity tokens not accepted")
		}
		return v.publicKey, nil
	default:
		return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
	}
}

func (v *IdentityVerifier) methods() []string {
	var methods []string
	if v.secret != nil {
		methods = append(methods, jwt.SigningMethodHS256.Alg())
	}
	if v.publicKey != nil {
		methods = append(methods, jwt.SigningMethodRS256.Alg())
	}
	return methods
}
