package store

import (
	"context"
	"fmt"
	"time"

	"ruleexplain/internal/platform/store/pg"
)

// ping backoff doubles from start up to ceiling
const (
	backoffStart   = 150 * time.Millisecond
	backoffCeiling = 2 * time.Second
)

var pingPool = func(ctx context.Context, p *pg.PG) error { return p.Pool.Ping(ctx) }

// openPG opens the pool and waits for the server to answer before handing it out
// The ledger sidecar often starts alongside the API, so boot tolerates a slow database
func openPG(ctx context.Context, cfg Config) (*pgAdapter, error) {
	pc := cfg.PG.withDefaults()
	p, err := pg.Open(ctx, pg.Config{
		URL:      pc.URL,
		MaxConns: pc.MaxConns,
		AppName:  cfg.AppName,
		Slow:     time.Duration(pc.SlowQueryMs) * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}

	var lastErr error
	backoff := backoffStart
	for i := 0; i < pc.ConnectRetries; i++ {
		pctx, cancel := context.WithTimeout(ctx, pc.PingTimeout)
		lastErr = pingPool(pctx, p)
		cancel()
		if lastErr == nil {
			return newPGAdapter(p), nil
		}

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			p.Close()
			return nil, ctx.Err()
		case <-t.C:
		}
		backoff = min(backoff*2, backoffCeiling)
	}

	p.Close()
	return nil, fmt.Errorf("postgres ping failed after %d attempts: %w", pc.ConnectRetries, lastErr)
}
