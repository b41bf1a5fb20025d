package ratelimit_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduflow/eduflow-backend/internal/ratelimit"
	"github.com/eduflow/eduflow-backend/pkg/logger"
	"github.com/eduflow/eduflow-backend/pkg/tenant"
)

func statusHandler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
}

func limitedHandler(rule ratelimit.Rule, next http.Handler) http.Handler {
	limiter := ratelimit.NewLimiter(rule, ratelimit.NewMemoryStore())
	return ratelimit.Middleware(limiter, ratelimit.ByIP, logger.NewNop())(next)
}

func TestMiddleware_SetsRateHeaders(t *testing.T) {
	h := limitedHandler(ratelimit.Rule{Name: "api", Window: time.Minute, Limit: 5},
		statusHandler(http.StatusOK))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "5", rr.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", rr.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rr.Header().Get("X-RateLimit-Reset"))
}

func TestMiddleware_RejectsOverLimit(t *testing.T) {
	h := limitedHandler(ratelimit.Rule{Name: "api", Window: time.Minute, Limit: 1},
		statusHandler(http.StatusOK))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Contains(t, rr.Body.String(), "RATE_LIMITED")
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestMiddleware_EscalationBlock(t *testing.T) {
	h := limitedHandler(ratelimit.Rule{
		Name:       "auth",
		Window:     time.Minute,
		Limit:      1,
		BlockAfter: 1,
		BlockFor:   30 * time.Minute,
	}, statusHandler(http.StatusOK))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	// The first breach trips the escalation block.
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Contains(t, rr.Body.String(), "BLOCKED")
}

func TestMiddleware_RefundsSuccessesWhenCountingFailures(t *testing.T) {
	rule := ratelimit.Rule{
		Name:              "auth",
		Window:            time.Minute,
		Limit:             1,
		CountFailuresOnly: true,
	}

	t.Run("successes never exhaust the budget", func(t *testing.T) {
		h := limitedHandler(rule, statusHandler(http.StatusOK))
		for i := 0; i < 5; i++ {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
			require.Equal(t, http.StatusOK, rr.Code, "attempt %d", i)
		}
	})

	t.Run("failures consume it", func(t *testing.T) {
		h := limitedHandler(rule, statusHandler(http.StatusUnauthorized))

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusUnauthorized, rr.Code)

		rr = httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	})
}

func TestMiddleware_RefundsFailuresWhenCountingSuccesses(t *testing.T) {
	rule := ratelimit.Rule{
		Name:               "export",
		Window:             time.Minute,
		Limit:              1,
		CountSuccessesOnly: true,
	}

	t.Run("failures never exhaust the budget", func(t *testing.T) {
		h := limitedHandler(rule, statusHandler(http.StatusUnprocessableEntity))
		for i := 0; i < 5; i++ {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
			require.Equal(t, http.StatusUnprocessableEntity, rr.Code, "attempt %d", i)
		}
	})

	t.Run("successes consume it", func(t *testing.T) {
		h := limitedHandler(rule, statusHandler(http.StatusOK))

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rr.Code)

		rr = httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	})
}

func TestMiddleware_RetryAfterAtLeastOneSecond(t *testing.T) {
	// A window this short leaves a sub-second remainder when the deny lands.
	h := limitedHandler(ratelimit.Rule{Name: "api", Window: 500 * time.Millisecond, Limit: 1},
		statusHandler(http.StatusOK))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)

	secs, err := strconv.Atoi(rr.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, secs, 1)
}

func TestByIPAndEmail(t *testing.T) {
	t.Run("keys on address plus lowercased email", func(t *testing.T) {
		body := `{"email":"Alice@North-High.test","password":"secret"}`
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
		req.RemoteAddr = "1.2.3.4:5678"

		assert.Equal(t, "1.2.3.4:alice@north-high.test", ratelimit.ByIPAndEmail(req))

		// The body must still be readable by the login handler.
		restored, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		assert.Equal(t, body, string(restored))
	})

	t.Run("unparseable body falls back to address", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("not json"))
		req.RemoteAddr = "1.2.3.4:5678"

		assert.Equal(t, "1.2.3.4", ratelimit.ByIPAndEmail(req))
	})
}

func TestTenantKeys(t *testing.T) {
	base := httptest.NewRequest(http.MethodGet, "/", nil)
	base.RemoteAddr = "1.2.3.4:5678"

	t.Run("tenant and user bound", func(t *testing.T) {
		ctx := tenant.WithTenant(context.Background(), "tenant-1", "north-high")
		ctx = tenant.WithUser(ctx, "user-1", "u@test")
		req := base.WithContext(ctx)

		assert.Equal(t, "tenant-1", ratelimit.ByTenant(req))
		assert.Equal(t, "tenant-1:user-1", ratelimit.ByTenantAndUser(req))
	})

	t.Run("no tenant falls back to address", func(t *testing.T) {
		assert.Equal(t, "1.2.3.4", ratelimit.ByTenant(base))
		assert.Equal(t, "1.2.3.4", ratelimit.ByTenantAndUser(base))
	})
}
