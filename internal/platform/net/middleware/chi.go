// Package middleware holds the request pipeline: chi stock middlewares plus auth, limits, recovery and access logs
package middleware

import (
	"net/http"
	"time"

	pstrings "ruleexplain/internal/platform/strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	chicors "github.com/go-chi/cors"
)

// chi stock middlewares under one import
var (
	// RequestID honours an incoming X-Request-Id or mints one
	RequestID = chimw.RequestID
	// RealIP trusts X-Forwarded-For and X-Real-IP; mount behind a proxy only
	RealIP = chimw.RealIP
	// NoCache stops clients and proxies caching replies
	NoCache = chimw.NoCache
	// StripSlashes routes /explanations/ like /explanations
	StripSlashes = chimw.StripSlashes
)

// Timeout cancels the request context after d and replies 504 if nothing was written
func Timeout(d time.Duration) func(http.Handler) http.Handler { return chimw.Timeout(d) }

// Compress compresses the content types chi knows; event streams pass through untouched
func Compress(level int) func(http.Handler) http.Handler { return chimw.Compress(level) }

// AllowContentType answers 415 to bodies of any other type
func AllowContentType(ct ...string) func(http.Handler) http.Handler {
	return chimw.AllowContentType(ct...)
}

// CORSOptions are the knobs exposed over go-chi/cors
type CORSOptions struct {
	// AllowedOrigins defaults to any origin
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// CORS applies o over the API's defaults
func CORS(o CORSOptions) func(http.Handler) http.Handler {
	return chicors.Handler(chicors.Options{
		AllowedOrigins: pstrings.Or(o.AllowedOrigins, []string{"*"}),
		AllowedMethods: pstrings.Or(o.AllowedMethods, []string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		AllowedHeaders: pstrings.Or(o.AllowedHeaders, []string{"Accept", "Authorization", "Content-Type", "Last-Event-ID", "X-Request-Id"}),
		ExposedHeaders: []string{"X-Request-Id", "Retry-After"},
		MaxAge:         o.MaxAge,
	})
}
