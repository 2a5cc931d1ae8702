package httpkit

import (
	"crypto/subtle"
	"net/http"
	"strings"

	perrs "ruleexplain/internal/platform/errors"
)

// TokenFunc resolves a bearer token to an operator name
type TokenFunc func(token string) (operator string, err error)

// Port implements middleware.AuthPort by reading Authorization and delegating to a TokenFunc
type Port struct {
	parse TokenFunc
}

// NewPortFunc builds a Port from a simple parser function
func NewPortFunc(fn TokenFunc) *Port {
	return &Port{parse: fn}
}

// Parse resolves the operator from the Authorization Bearer token
// returns unauthorized when the header is missing, malformed, or the parser returns an error
func (p *Port) Parse(r *http.Request) (string, error) {
	authz := r.Header.Get("Authorization")
	// normalize whitespace around the whole header
	s := strings.TrimSpace(authz)
	if s == "" {
		return "", perrs.Unauthorizedf("missing bearer token")
	}
	ls := strings.ToLower(s)
	const prefix = "bearer"
	if !strings.HasPrefix(ls, prefix) {
		return "", perrs.Unauthorizedf("missing bearer token")
	}
	// slice after "Bearer" (no trailing space required), then trim any spaces before token
	raw := strings.TrimSpace(s[len(prefix):])
	if raw == "" {
		return "", perrs.Unauthorizedf("missing bearer token")
	}

	if p.parse == nil {
		return "", perrs.Unauthorizedf("invalid bearer token")
	}

	op, err := p.parse(raw)
	if err != nil {
		return "", perrs.Unauthorizedf("invalid bearer token")
	}
	return op, nil
}

// StaticTokens builds a Port from "operator:token" entries
func StaticTokens(entries []string) (*Port, error) {
	type cred struct{ name, token string }
	creds := make([]cred, 0, len(entries))
	for _, e := range entries {
		name, tok, ok := strings.Cut(strings.TrimSpace(e), ":")
		name, tok = strings.TrimSpace(name), strings.TrimSpace(tok)
		if !ok || name == "" || tok == "" {
			return nil, perrs.InvalidArgf("api token entry must be operator:token")
		}
		creds = append(creds, cred{name: name, token: tok})
	}
	if len(creds) == 0 {
		return nil, nil
	}
	return NewPortFunc(func(token string) (string, error) {
		for _, c := range creds {
			if subtle.ConstantTimeCompare([]byte(c.token), []byte(token)) == 1 {
				return c.name, nil
			}
		}
		return "", perrs.Unauthorizedf("unknown token")
	}), nil
}
