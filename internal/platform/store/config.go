package store

import "time"

// Config selects and configures backends
type Config struct {
	// AppName is reported to postgres as application_name
	AppName string

	PG PGConfig
}

// PGConfig configures the ledger database
type PGConfig struct {
	Enabled  bool
	URL      string
	MaxConns int32

	// LogSQL traces every statement; SlowQueryMs marks slow ones, 0 disables the mark
	LogSQL      bool
	SlowQueryMs int

	// ConnectRetries bounds boot pings, PingTimeout bounds each one
	ConnectRetries int
	PingTimeout    time.Duration
}

const (
	defaultConnectRetries = 20
	defaultPingTimeout    = 3 * time.Second
)

func (c PGConfig) withDefaults() PGConfig {
	if c.ConnectRetries <= 0 {
		c.ConnectRetries = defaultConnectRetries
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = defaultPingTimeout
	}
	return c
}
