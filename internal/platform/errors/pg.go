package errors

import (
	"context"
	stderrs "errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the ledger maps or retries
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
	pgStringTruncation    = "22001"
	pgInvalidText         = "22P02"
	pgSerialization       = "40001"
	pgDeadlock            = "40P01"
	pgLockNotAvailable    = "55P03"
	pgReadOnlyTx          = "25006"
	pgCannotConnectNow    = "57P03"
)

// pgError finds a *pgconn.PgError anywhere in the chain
func pgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if stderrs.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// DBErrorCode classifies a postgres error; ok is false when err is not one
func DBErrorCode(err error) (code ErrorCode, ok bool) {
	pgErr, ok := pgError(err)
	if !ok {
		return ErrorCodeUnknown, false
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return ErrorCodeDuplicateKey, true
	case pgForeignKeyViolation, pgStringTruncation, pgInvalidText:
		return ErrorCodeInvalidArgument, true
	case pgNotNullViolation, pgCheckViolation:
		return ErrorCodeValidation, true
	case pgReadOnlyTx, pgCannotConnectNow:
		return ErrorCodeUnavailable, true
	default:
		return ErrorCodeDB, true
	}
}

// FromPostgres wraps a driver error with its mapped code; nil stays nil
func FromPostgres(err error, msg string) error {
	if err == nil {
		return nil
	}
	code, ok := DBErrorCode(err)
	if !ok {
		code = ErrorCodeDB
	}
	return Wrap(err, code, msg)
}

// FromPostgresWithField is FromPostgres plus the column the server blamed, when it names one
func FromPostgresWithField(err error, msg string) error {
	out := FromPostgres(err, msg)
	pgErr, ok := pgError(err)
	if !ok {
		return out
	}
	if col := strings.TrimSpace(pgErr.ColumnName); col != "" {
		return WithField(out, col)
	}
	// explain_submissions_pkey -> pkey is useless; only take a trailing column token
	if c := strings.TrimSpace(pgErr.ConstraintName); c != "" {
		if i := strings.LastIndex(c, "_"); i >= 0 && i+1 < len(c) {
			if tok := c[i+1:]; tok != "key" && tok != "pkey" && tok != "fkey" {
				return WithField(out, tok)
			}
		}
	}
	return out
}

// IsRetryable reports whether a ledger write failed for a reason a fresh attempt may not hit:
// contention, lock waits or a server that is still starting
// Caller cancellation and deadlines are never retryable
func IsRetryable(err error) bool {
	if err == nil || stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return false
	}
	if pgErr, ok := pgError(err); ok {
		switch pgErr.Code {
		case pgSerialization, pgDeadlock, pgLockNotAvailable, pgCannotConnectNow:
			return true
		}
		return false
	}
	// pgx reports some aborts only as text, e.g. on commit
	s := strings.ToLower(Root(err).Error())
	for _, frag := range []string{
		"commit unexpectedly resulted in rollback",
		"deadlock detected",
		"could not serialize access",
		"canceling statement due to lock timeout",
	} {
		if strings.Contains(s, frag) {
			return true
		}
	}
	return false
}
