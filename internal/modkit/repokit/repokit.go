// Package repokit holds the seams repositories are written against and the transaction helper
// services use to run several repository calls atomically
package repokit

import (
	"context"
	"time"

	perr "ruleexplain/internal/platform/errors"
	"ruleexplain/internal/platform/store"
)

// Queryer is the read and write surface a bound repo uses
type Queryer = store.RowQuerier

// TxRunner runs a function inside a transaction
type TxRunner = store.TxRunner

// Binder binds a repo to a Queryer: the pool for plain calls, a transaction inside WithTx
type Binder[T any] interface {
	Bind(Queryer) T
}

// BindFunc adapts a function to a Binder
type BindFunc[T any] func(Queryer) T

// Bind calls f
func (f BindFunc[T]) Bind(q Queryer) T { return f(q) }

// Retry bounds how often WithTx re-runs an aborted transaction
type Retry struct {
	Attempts int
	// Backoff grows linearly: Backoff, 2*Backoff, ...
	Backoff time.Duration
}

// DefaultRetry is what WithTx uses
var DefaultRetry = Retry{Attempts: 3, Backoff: 25 * time.Millisecond}

// WithTx runs fn in a transaction, re-running it when postgres aborted it for a transient reason
func WithTx(ctx context.Context, tx TxRunner, fn func(q Queryer) error) error {
	return WithTxRetry(ctx, tx, DefaultRetry, fn)
}

// WithTxRetry is WithTx with an explicit policy
// fn must be safe to run again: the aborted attempt rolled back everything it wrote
func WithTxRetry(ctx context.Context, tx TxRunner, rp Retry, fn func(q Queryer) error) error {
	attempts := rp.Attempts
	if attempts < 1 {
		attempts = 1
	}
	for i := 1; ; i++ {
		err := tx.Tx(ctx, fn)
		if err == nil || i >= attempts || !perr.IsRetryable(err) {
			return err
		}
		t := time.NewTimer(rp.Backoff * time.Duration(i))
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
}
