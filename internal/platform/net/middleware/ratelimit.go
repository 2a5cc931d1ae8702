package middleware

import (
	"net"
	"net/http"
	"time"

	perr "ruleexplain/internal/platform/errors"
	pnet "ruleexplain/internal/platform/net"
)

// Limiter is the keyed allow check RateLimit needs
type Limiter interface {
	Allow(key string, now time.Time) bool
}

// RateLimit rejects requests over the per client budget with 429
// The key is the remote host, so mount it after RealIP
func RateLimit(l Limiter, write func(w http.ResponseWriter, status int, body any)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(clientKey(r), time.Now()) {
				w.Header().Set("Retry-After", "1")
				status, body := pnet.Failure(perr.New(perr.ErrorCodeTooManyRequests, "rate limit exceeded"), pnet.RequestID(r.Context()))
				write(w, status, body)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
