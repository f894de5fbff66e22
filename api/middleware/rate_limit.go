package middleware

import (
	"bytes"
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// RateLimiter counts a hit against scope and reports whether the window is
// still under limit.
type RateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimitPolicy throttles one auth surface per client address and, when
// PerEmail is set, per email submitted in the JSON body.
type RateLimitPolicy struct {
	Name     string
	Window   time.Duration
	PerIP    int
	PerEmail int
}

func (p RateLimitPolicy) active() bool {
	return p.Window > 0 && (p.PerIP > 0 || p.PerEmail > 0)
}

type limitCheck struct {
	dimension string
	value     string
	limit     int
}

// RateLimit rejects requests over the policy with 429. It is a no-op when the
// policy is inactive or no limiter is configured.
func RateLimit(policy RateLimitPolicy, limiter RateLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	if !policy.active() || limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	name := cmp.Or(strings.ToLower(strings.TrimSpace(policy.Name)), "auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			checks, err := policy.checks(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			for _, c := range checks {
				scope := name + ":" + c.dimension + ":" + c.value
				ok, count, err := limiter.FixedWindowAllow(ctx, scope, int64(c.limit), policy.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if ok {
					continue
				}
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, logger.Fields{
						"policy":         name,
						"dimension":      c.dimension,
						"attempts":       count,
						"limit":          c.limit,
						"window_seconds": int(policy.Window.Seconds()),
					}), "auth rate limit exceeded")
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (p RateLimitPolicy) checks(r *http.Request) ([]limitCheck, error) {
	var out []limitCheck
	if p.PerIP > 0 {
		if ip := remoteHost(r.RemoteAddr); ip != "" {
			out = append(out, limitCheck{dimension: "ip", value: ip, limit: p.PerIP})
		}
	}
	if p.PerEmail > 0 {
		email, err := peekEmail(r)
		if err != nil {
			return nil, err
		}
		if email != "" {
			out = append(out, limitCheck{dimension: "email", value: digest(email), limit: p.PerEmail})
		}
	}
	return out, nil
}

// remoteHost strips the port. chi's RealIP runs first, so RemoteAddr already
// reflects X-Forwarded-For when the api sits behind a proxy.
func remoteHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.TrimSpace(addr)
}

// peekEmail reads the email field and puts the body back for the handler.
func peekEmail(r *http.Request) (string, error) {
	if r.Body == nil {
		return "", nil
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return "", err
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	var body struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(raw, &body) != nil {
		return "", nil
	}
	return strings.ToLower(strings.TrimSpace(body.Email)), nil
}

func digest(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:16])
}
