package ownerauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Session is the result of a successful token exchange.
type Session struct {
	Token     string    `json:"-"`
	SessionID string    `json:"-"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service exchanges identity provider tokens for owner sessions.
type Service interface {
	CreateSession(ctx context.Context, idToken string) (*Session, error)
	Logout(ctx context.Context, token string) error
}

type identityVerifier interface {
	Verify(token string) (*pkgAuth.IdentityClaims, error)
}

type sessionManager interface {
	Create(ctx context.Context, email string) (string, error)
	Revoke(ctx context.Context, sessionID string) error
}

// ServiceParams bundles the dependencies required to build the service.
type ServiceParams struct {
	Verifier   identityVerifier
	Sessions   sessionManager
	JWTConfig  config.JWTConfig
	OwnerEmail string
	Logger     *logger.Logger
}

type service struct {
	verifier   identityVerifier
	sessions   sessionManager
	jwtCfg     config.JWTConfig
	ownerEmail string
	logg       *logger.Logger
	now        func() time.Time
}

// NewService constructs the owner auth service.
func NewService(params ServiceParams) (Service, error) {
	if params.Verifier == nil {
		return nil, fmt.Errorf("identity verifier required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session manager required")
	}
	owner := strings.ToLower(strings.TrimSpace(params.OwnerEmail))
	if owner == "" {
		return nil, fmt.Errorf("owner email required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		verifier:   params.Verifier,
		sessions:   params.Sessions,
		jwtCfg:     params.JWTConfig,
		ownerEmail: owner,
		logg:       params.Logger,
		now:        time.Now,
	}, nil
}

func (s *service) CreateSession(ctx context.Context, idToken string) (*Session, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, pkgerrors.Validation([]pkgerrors.FieldError{{Path: "id_token", Message: "is required"}})
	}
	claims, err := s.verifier.Verify(idToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid identity token")
	}
	if claims.Email != s.ownerEmail {
		s.logg.Warn(s.logg.WithField(ctx, "email", claims.Email), "session refused for non-owner account")
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account is not allowed to manage this store")
	}

	sessionID, err := s.sessions.Create(ctx, claims.Email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store session")
	}
	token, sessionClaims, err := pkgAuth.MintSessionToken(s.jwtCfg, s.now(), claims.Email, sessionID)
	if err != nil {
		_ = s.sessions.Revoke(ctx, sessionID)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint session token")
	}

	s.logg.Info(s.logg.WithOwner(ctx, claims.Email, sessionID), "owner.session_created")
	return &Session{
		Token:     token,
		SessionID: sessionID,
		Email:     claims.Email,
		ExpiresAt: sessionClaims.ExpiresAt.Time,
	}, nil
}

// Logout revokes the session behind token. Malformed or expired tokens
// have nothing left to revoke and are ignored.
func (s *service) Logout(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	claims, err := pkgAuth.ParseSessionToken(s.jwtCfg, token)
	if err != nil {
		s.logg.Info(ctx, "logout with unusable session token")
		return nil
	}
	if err := s.sessions.Revoke(ctx, claims.SessionID()); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	s.logg.Info(s.logg.WithOwner(ctx, claims.Email, claims.SessionID()), "owner.logged_out")
	return nil
}
