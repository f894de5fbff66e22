package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type windowCounter struct {
	mu     sync.Mutex
	hits   map[string]int64
	scopes []string
	err    error
}

func newWindowCounter() *windowCounter {
	return &windowCounter{hits: map[string]int64{}}
}

func (c *windowCounter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, 0, c.err
	}
	c.scopes = append(c.scopes, scope)
	c.hits[scope]++
	return c.hits[scope] <= limit, c.hits[scope], nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func registerRequest(email, addr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader(`{"email":"`+email+`"}`))
	req.RemoteAddr = addr
	return req
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestRateLimitKeepsBodyForHandler(t *testing.T) {
	policy := RateLimitPolicy{Name: "register", Window: time.Minute, PerIP: 2, PerEmail: 2}
	var seen string
	handler := RateLimit(policy, newWindowCounter(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen = string(body)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, registerRequest("Tester@Example.com", "1.2.3.4:5678"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"email":"Tester@Example.com"}`, seen)
}

func TestRateLimitPerEmail(t *testing.T) {
	counter := newWindowCounter()
	handler := RateLimit(RateLimitPolicy{Name: "register", Window: time.Minute, PerEmail: 2}, counter, nil)(okHandler())

	codes := make([]int, 0, 3)
	for i, addr := range []string{"1.1.1.1:1", "2.2.2.2:2", "3.3.3.3:3"} {
		rec := httptest.NewRecorder()
		email := "blocked@example.com"
		if i == 1 {
			email = " BLOCKED@example.com "
		}
		handler.ServeHTTP(rec, registerRequest(email, addr))
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, string(pkgerrors.CodeRateLimit), errorCode(t, rec))
		}
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	for _, scope := range counter.scopes {
		assert.True(t, strings.HasPrefix(scope, "register:email:"), scope)
		assert.NotContains(t, scope, "example.com")
	}
}

func TestRateLimitPerIP(t *testing.T) {
	handler := RateLimit(RateLimitPolicy{Name: "session", Window: time.Minute, PerIP: 1}, newWindowCounter(), nil)(okHandler())

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, registerRequest("a@example.com", "5.6.7.8:1234"))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, registerRequest("b@example.com", "5.6.7.8:9999"))
	other := httptest.NewRecorder()
	handler.ServeHTTP(other, registerRequest("c@example.com", "9.9.9.9:1234"))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestRateLimitStoreFailure(t *testing.T) {
	counter := newWindowCounter()
	counter.err = errors.New("redis down")
	handler := RateLimit(RateLimitPolicy{Window: time.Minute, PerIP: 5}, counter, nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, registerRequest("a@example.com", "1.2.3.4:1"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeDependency), errorCode(t, rec))
}

func TestRateLimitInactivePolicyPassesThrough(t *testing.T) {
	counter := newWindowCounter()
	for _, policy := range []RateLimitPolicy{
		{Window: 0, PerIP: 1},
		{Window: time.Minute},
	} {
		handler := RateLimit(policy, counter, nil)(okHandler())
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, registerRequest("a@example.com", "1.2.3.4:1"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Empty(t, counter.scopes)

	rec := httptest.NewRecorder()
	RateLimit(RateLimitPolicy{Window: time.Minute, PerIP: 1}, nil, nil)(okHandler()).ServeHTTP(rec, registerRequest("a@example.com", "1.2.3.4:1"))
	assert.Equal(t, http.StatusOK, rec.Code)
}
