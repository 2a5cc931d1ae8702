package store

import (
	"context"
	"errors"
	"time"

	"ruleexplain/internal/platform/logger"
	"ruleexplain/internal/platform/store/pg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgxQuerier is what the pool and pgx.Tx have in common
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// querier runs statements on db and reports each one to tracer
type querier struct {
	db     pgxQuerier
	p      *pg.PG
	tracer pg.QueryTracer
}

func (q querier) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	start := time.Now()
	ct, err := q.db.Exec(ctx, sql, args...)
	q.trace(ctx, sql, args, start, err)
	return ct, err
}

func (q querier) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	start := time.Now()
	rs, err := q.db.Query(ctx, sql, args...)
	q.trace(ctx, sql, args, start, err)
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// QueryRow traces once Scan returns, since pgx defers the round trip until then
func (q querier) QueryRow(ctx context.Context, sql string, args ...any) Row {
	start := time.Now()
	return tracedRow{
		r: q.db.QueryRow(ctx, sql, args...),
		done: func(err error) {
			if errors.Is(err, pgx.ErrNoRows) {
				err = nil
			}
			q.trace(ctx, sql, args, start, err)
		},
	}
}

func (q querier) trace(ctx context.Context, sql string, args []any, start time.Time, err error) {
	if q.tracer == nil {
		return
	}
	d := time.Since(start)
	q.tracer.OnQuery(ctx, pg.QueryEvent{SQL: sql, Args: args, Elapsed: d, Err: err, Slow: q.p.IsSlow(d)})
}

type tracedRow struct {
	r    pgx.Row
	done func(error)
}

func (x tracedRow) Scan(dst ...any) error {
	err := x.r.Scan(dst...)
	x.done(err)
	return err
}

// pgAdapter is the pool side of the store; Tx hands fn a querier bound to the transaction
type pgAdapter struct {
	querier
}

func newPGAdapter(p *pg.PG) *pgAdapter {
	return &pgAdapter{querier{db: p.Pool, p: p}}
}

func (a *pgAdapter) traceTo(log logger.Logger) { a.tracer = pg.Tracer(log) }

func (a *pgAdapter) Ping(ctx context.Context) error { return a.p.Pool.Ping(ctx) }

func (a *pgAdapter) Close() error {
	a.p.Close()
	return nil
}

func (a *pgAdapter) Tx(ctx context.Context, fn func(q RowQuerier) error) error {
	return pgx.BeginFunc(ctx, a.p.Pool, func(tx pgx.Tx) error {
		return fn(querier{db: tx, p: a.p, tracer: a.tracer})
	})
}
