package orchestrator

import (
	"time"

	"ruleexplain/internal/platform/config"
)

const (
	defaultInterval          = 2 * time.Second
	defaultMaxAttempts       = 30
	defaultAcceptanceTimeout = 5 * time.Minute
)

// Config holds the timing policy of a session
// Zero values fall back to the defaults; AcceptanceTimeout < 0 means wait forever
type Config struct {
	Interval          time.Duration
	MaxAttempts       int
	AcceptanceTimeout time.Duration
	Sentinel          string
}

// FromConfig reads EXPLAIN_ scoped knobs
func FromConfig(cfg config.Conf) Config {
	c := cfg.Prefix("EXPLAIN_")
	return Config{
		Interval:          c.MayDuration("POLL_INTERVAL", defaultInterval),
		MaxAttempts:       c.MayInt("MAX_ATTEMPTS", defaultMaxAttempts),
		AcceptanceTimeout: c.MayDuration("ACCEPT_TIMEOUT", defaultAcceptanceTimeout),
		Sentinel:          c.MayString("SENTINEL", DefaultSentinel),
	}
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.AcceptanceTimeout == 0 {
		c.AcceptanceTimeout = defaultAcceptanceTimeout
	}
	if c.Sentinel == "" {
		c.Sentinel = DefaultSentinel
	}
	return c
}

// Budget is the longest the polling phase can take after acceptance
func (c Config) Budget() time.Duration {
	c = c.withDefaults()
	return time.Duration(c.MaxAttempts) * c.Interval
}
