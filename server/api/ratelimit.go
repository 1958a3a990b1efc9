package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/zentity/zk-attest/logger"
	"github.com/zentity/zk-attest/ratelimit"
)

// RateLimit counts requests per client address for one route. A nil limiter
// or a limit of zero disables it. Limiter errors let the request through.
func RateLimit(limiter ratelimit.Limiter, route string, limit int, window time.Duration, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + clientIP(r) + ":route:" + route
			d, err := limiter.Allow(r.Context(), key, limit, window)
			if err != nil {
				log.Warn("Rate limiter unavailable", "route", route, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			reset := int(math.Ceil(time.Until(d.ResetAt).Seconds()))
			if reset < 0 {
				reset = 0
			}
			w.Header().Set("RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("RateLimit-Remaining", strconv.Itoa(d.Remaining))
			w.Header().Set("RateLimit-Reset", strconv.Itoa(reset))

			if !d.Allowed {
				log.Warn("Rate limit exceeded", "route", route)
				w.Header().Set("Retry-After", strconv.Itoa(reset))
				respondError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP expects middleware.RealIP to have rewritten RemoteAddr already.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
