package middleware

import (
	"net/http"

	pnet "ruleexplain/internal/platform/net"
)

// AuthPort resolves the caller of a request
type AuthPort interface {
	// Parse returns the operator behind the request or an error
	Parse(r *http.Request) (operator string, err error)
}

// Auth rejects requests the port cannot resolve; a nil port lets everything through
// the operator lands on the context for handlers and request logs
func Auth(p AuthPort, write func(w http.ResponseWriter, status int, body any)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p == nil {
				next.ServeHTTP(w, r)
				return
			}
			op, err := p.Parse(r)
			if err != nil {
				status, body := pnet.Failure(err, pnet.RequestID(r.Context()))
				write(w, status, body)
				return
			}
			next.ServeHTTP(w, r.WithContext(pnet.WithOperator(r.Context(), op)))
		})
	}
}
