// Package store opens the ledger database and hands repositories a small query surface
// that works the same on the pool and inside a transaction
package store

import (
	"context"
	"errors"
	"fmt"

	"ruleexplain/internal/platform/logger"
)

// Store holds the opened backends; a zero Store has none and is safe to Close
type Store struct {
	// Log receives query traces when SQL logging is on
	Log logger.Logger

	// PG is nil when postgres is disabled
	PG TxRunner
}

// Row is a single result row
type Row interface {
	Scan(dest ...any) error
}

// Rows is a result set; callers must Close it
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// CommandTag reports what a write did
type CommandTag interface {
	String() string
	RowsAffected() int64
}

// RowQuerier is what repositories query through
type RowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// TxRunner is a RowQuerier that can also open transactions
type TxRunner interface {
	RowQuerier
	Tx(ctx context.Context, fn func(q RowQuerier) error) error
}

// Pinger reports readiness
type Pinger interface{ Ping(context.Context) error }

// Option mutates the Store before backends open
type Option func(*Store) error

// WithLogger sets the logger query traces go to
func WithLogger(log logger.Logger) Option {
	return func(s *Store) error {
		s.Log = log
		return nil
	}
}

// Open applies opts and opens every enabled backend
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}
	if cfg.PG.Enabled {
		pg, err := openPG(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if cfg.PG.LogSQL {
			pg.traceTo(s.Log)
		}
		s.PG = pg
	}
	return s, nil
}

// Guard pings every backend that can be pinged
func (s *Store) Guard(ctx context.Context) error {
	if s == nil {
		return errors.New("nil store")
	}
	if p, ok := s.PG.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("pg: %w", err)
		}
	}
	return nil
}

// Close releases every opened backend
func (s *Store) Close(context.Context) error {
	if c, ok := s.PG.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
