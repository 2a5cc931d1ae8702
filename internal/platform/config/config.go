// Package config reads service settings from prefixed environment variables
// May* getters fall back to a default and warn on unparsable values; Must* getters panic
package config

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"ruleexplain/internal/platform/config/raw"
	"ruleexplain/internal/platform/logger"
)

// Conf is a prefixed view such as New().Prefix("EXPLAIN_")
type Conf struct{ env raw.Conf }

// New returns the unprefixed view
func New() Conf { return Conf{env: raw.New()} }

// Prefix nests p under the current prefix
func (c Conf) Prefix(p string) Conf { return Conf{env: c.env.Prefix(p)} }

func (c Conf) key(k string) string { return c.env.Key(k) }

// may parses key with parse, warning and returning def when the value does not parse
func may[T any](c Conf, key string, def T, kind string, parse func(string) (T, error)) T {
	s, ok := c.env.Lookup(key)
	if !ok {
		return def
	}
	v, err := parse(s)
	if err != nil {
		logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Interface("default", def).Msgf("invalid %s; using default", kind)
		return def
	}
	return v
}

// MustString panics when key is unset
func (c Conf) MustString(key string) string {
	v, ok := c.env.Lookup(key)
	if !ok {
		logger.Get().Panic().Str("key", c.key(key)).Msg("missing required env")
	}
	return v
}

// MayString returns the value or def
func (c Conf) MayString(key, def string) string { return c.env.Get(key, def) }

// MayInt returns the value or def
func (c Conf) MayInt(key string, def int) int {
	return may(c, key, def, "int", strconv.Atoi)
}

// MayFloat64 returns the value or def
func (c Conf) MayFloat64(key string, def float64) float64 {
	return may(c, key, def, "float64", func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

// MayBool returns the value or def
func (c Conf) MayBool(key string, def bool) bool {
	return may(c, key, def, "bool", strconv.ParseBool)
}

// MayDuration returns the value or def; values look like 250ms or 2s
func (c Conf) MayDuration(key string, def time.Duration) time.Duration {
	return may(c, key, def, "duration", time.ParseDuration)
}

// MayURL returns an absolute http(s) or ws(s) URL or def
func (c Conf) MayURL(key, def string) string {
	return may(c, key, def, "url", func(s string) (string, error) {
		u, err := url.Parse(s)
		if err != nil {
			return "", err
		}
		switch u.Scheme {
		case "http", "https", "ws", "wss":
		default:
			return "", strconv.ErrSyntax
		}
		if u.Host == "" {
			return "", strconv.ErrSyntax
		}
		return s, nil
	})
}

// MayPort returns a listen address like ":4000"; the port must be 1..65535
func (c Conf) MayPort(key string, def int) string {
	p := may(c, key, def, "port", func(s string) (int, error) {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 65535 {
			return 0, strconv.ErrRange
		}
		return n, nil
	})
	return ":" + strconv.Itoa(p)
}

// MayCSV splits a comma list, dropping blanks; def when nothing remains
func (c Conf) MayCSV(key string, def []string) []string {
	s, ok := c.env.Lookup(key)
	if !ok {
		return def
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
