// Package pg opens the pgx pool behind the ledger and traces statements run through it
package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config is the subset of pool settings the service exposes
type Config struct {
	URL      string
	MaxConns int32

	// AppName shows up in pg_stat_activity; empty keeps whatever the URL says
	AppName string

	// Slow marks traced statements at or above it; 0 never marks
	Slow time.Duration
}

// PG owns the pool
type PG struct {
	Pool *pgxpool.Pool
	Slow time.Duration
}

var newPool = pgxpool.NewWithConfig

// Open parses cfg and creates the pool without dialing
func Open(ctx context.Context, cfg Config) (*PG, error) {
	pcfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := newPool(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	return &PG{Pool: pool, Slow: cfg.Slow}, nil
}

func poolConfig(cfg Config) (*pgxpool.Config, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.AppName != "" {
		if pcfg.ConnConfig.RuntimeParams == nil {
			pcfg.ConnConfig.RuntimeParams = map[string]string{}
		}
		pcfg.ConnConfig.RuntimeParams["application_name"] = cfg.AppName
	}
	return pcfg, nil
}

// Close closes the pool; nil receivers and repeat calls are fine
func (p *PG) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}

// IsSlow reports whether d crosses the slow mark
func (p *PG) IsSlow(d time.Duration) bool {
	return p != nil && p.Slow > 0 && d >= p.Slow
}
