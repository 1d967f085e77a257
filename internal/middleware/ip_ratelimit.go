package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/reportlens/securelink-server-go/internal/audit"
	"github.com/reportlens/securelink-server-go/internal/service"
)

// IPRateLimitMiddleware throttles anonymous endpoints by client IP.
// Redemption is the sensitive one: secure-link ids are bearer secrets
// and unlimited guessing must not be possible.
type IPRateLimitMiddleware struct {
	limiter *service.RateLimiter
	surface service.LimitSurface
	limit   int
	window  time.Duration
}

func NewIPRateLimitMiddleware(limiter *service.RateLimiter, surface service.LimitSurface, limit int, window time.Duration) *IPRateLimitMiddleware {
	return &IPRateLimitMiddleware{
		limiter: limiter,
		surface: surface,
		limit:   limit,
		window:  window,
	}
}

func (m *IPRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, resetAt := m.limiter.Allow(r.Context(), m.surface, r.RemoteAddr, m.limit, m.window)

		if !allowed {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventRateLimitExceed})
			secondsLeft := int(time.Until(resetAt).Seconds()) + 1
			w.Header().Set("Retry-After", fmt.Sprintf("%d", secondsLeft))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "Too many requests. Please try again later.",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
