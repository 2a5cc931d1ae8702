package httpkit

import (
	"compress/flate"
	"net/http"
	"time"

	phttp "ruleexplain/internal/platform/net/http"
	"ruleexplain/internal/platform/net/middleware"
)

const (
	// SlowRequest is where access log lines turn to warn
	SlowRequest = 500 * time.Millisecond

	// RequestTimeout bounds request/response handlers; streams are mounted outside of it
	RequestTimeout = 30 * time.Second
)

// CommonStack is the middleware every API route runs behind
// origins restricts CORS; empty allows any
func CommonStack(origins []string) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recover(phttp.JSON),
		middleware.NoCache,
		middleware.AccessLog(middleware.AccessLogOptions{Slow: SlowRequest}),
		middleware.CORS(middleware.CORSOptions{AllowedOrigins: origins}),
		middleware.Compress(flate.BestSpeed),
		middleware.StripSlashes,
	}
}

// Timeout bounds short lived handlers by RequestTimeout
func Timeout() func(http.Handler) http.Handler {
	return middleware.Timeout(RequestTimeout)
}

// JSONOnly rejects request bodies that are not JSON; bodiless requests pass
func JSONOnly() func(http.Handler) http.Handler {
	return middleware.AllowContentType("application/json")
}

// Protected groups routes under bearer auth; a nil port leaves them open
func Protected(r Router, p middleware.AuthPort, fn func(Router)) {
	r.Group(func(g Router) {
		if p != nil {
			g.Use(middleware.Auth(p, phttp.JSON))
		}
		fn(g)
	})
}
