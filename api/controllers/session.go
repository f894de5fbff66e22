package controllers

import (
	"net/http"
	"time"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/ownerauth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type sessionRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// SessionCookie describes how the owner session cookie is written.
type SessionCookie struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// NewSessionCookie derives cookie settings from config. The cookie is Secure
// in production unless explicitly disabled.
func NewSessionCookie(cfg *config.Config) SessionCookie {
	return SessionCookie{
		Name:   cfg.JWT.CookieName,
		TTL:    cfg.JWT.SessionTTL,
		Secure: cfg.App.IsProd() && !cfg.JWT.CookieSecureOff,
	}
}

func (c SessionCookie) set(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(c.TTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c SessionCookie) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionCreate exchanges an identity provider ID token for the owner
// session cookie.
func SessionCreate(svc ownerauth.Service, cookie SessionCookie, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var body sessionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.CreateSession(r.Context(), body.IDToken)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cookie.set(w, session.Token, session.ExpiresAt)
		responses.WriteSuccess(w, session)
	}
}

// SessionLogout revokes the server-side session and clears the cookie.
// It succeeds even when the cookie is missing or already invalid.
func SessionLogout(svc ownerauth.Service, cookie SessionCookie, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		if err := svc.Logout(r.Context(), validators.SessionToken(r, cookie.Name)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cookie.clear(w)
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}

// SessionCurrent reports the owner bound to the presented session.
func SessionCurrent(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := middleware.OwnerEmailFromContext(r.Context())
		if email == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "owner context missing"))
			return
		}
		responses.WriteSuccess(w, map[string]string{"email": email})
	}
}
