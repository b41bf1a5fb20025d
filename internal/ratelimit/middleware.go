package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/eduflow/eduflow-backend/pkg/errors"
	"github.com/eduflow/eduflow-backend/pkg/httputil"
	"github.com/eduflow/eduflow-backend/pkg/logger"
	"github.com/eduflow/eduflow-backend/pkg/tenant"
)

// KeyFunc derives the limiter key from a request.
type KeyFunc func(r *http.Request) string

// ByIP keys on the client address.
func ByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ByTenant keys on the bound tenant, falling back to IP for requests without
// one.
func ByTenant(r *http.Request) string {
	if tenantID, err := tenant.TenantID(r.Context()); err == nil {
		return tenantID
	}
	return ByIP(r)
}

// Middleware applies a limiter to every request it wraps. Responses carry
// X-RateLimit headers; exceeding the limit yields 429 with Retry-After, an
// escalation block yields 429 with the BLOCKED code.
func Middleware(limiter *Limiter, keyFn KeyFunc, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)

			decision, err := limiter.Check(r.Context(), key)
			if err != nil {
				// A broken limiter store must not take the API down.
				log.Error().Err(err).Str("limiter", limiter.Rule().Name).Msg("rate limiter check failed")
				next.ServeHTTP(w, r)
				return
			}

			setHeaders(w, decision)

			if decision.Blocked {
				httputil.Error(w, errors.Blocked(retryAfterSeconds(decision.RetryAfter)))
				return
			}
			if !decision.Allowed {
				httputil.Error(w, errors.RateLimited(retryAfterSeconds(decision.RetryAfter)))
				return
			}

			rule := limiter.Rule()
			if !rule.CountFailuresOnly && !rule.CountSuccessesOnly {
				next.ServeHTTP(w, r)
				return
			}

			// Conditional counting: refund the slot when the response lands
			// on the side the rule does not count.
			sw := httputil.WrapWriter(w)
			next.ServeHTTP(sw, r)
			succeeded := sw.Status() < http.StatusBadRequest
			if (rule.CountFailuresOnly && succeeded) || (rule.CountSuccessesOnly && !succeeded) {
				if err := limiter.Refund(r.Context(), key); err != nil {
					log.Warn().Err(err).Str("limiter", limiter.Rule().Name).Msg("rate limiter refund failed")
				}
			}
		})
	}
}

// retryAfterSeconds rounds up so a sub-second remainder still tells clients
// to wait at least one second.
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func setHeaders(w http.ResponseWriter, d *Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(int64(d.Reset/time.Second), 10))
}
