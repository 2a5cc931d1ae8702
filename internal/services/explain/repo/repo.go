// Package repo provides postgres access for the submission ledger
package repo

import (
	"context"
	"time"

	"ruleexplain/internal/modkit/repokit"
	perr "ruleexplain/internal/platform/errors"
	"ruleexplain/internal/platform/store"
	str "ruleexplain/internal/platform/strings"
)

// Repo defines the repository contract for submissions and their events
type Repo interface {
	EnsureSchema(ctx context.Context) error
	Insert(ctx context.Context, s RowSubmission) error
	Delete(ctx context.Context, id string) error
	AppendEvent(ctx context.Context, id string, ev RowEvent) error
	ApplyEvent(ctx context.Context, id string, ev RowEvent) error
	Get(ctx context.Context, id string) (RowSubmission, error)
	Events(ctx context.Context, id string) ([]RowEvent, error)
	Recent(ctx context.Context, limit int) ([]RowSubmission, error)
	SameKey(ctx context.Context, key, excludeID string, limit int) ([]string, error)
	FailDangling(ctx context.Context, reason string, at time.Time) (int64, error)
}

// RowSubmission is a submission row
type RowSubmission struct {
	ID          string
	Key         string
	Text        string
	State       string
	Attempt     int
	MaxAttempts int
	Result      string
	Reason      string
	Message     string
	TxHash      string
	Signer      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RowEvent is an event row; Receipt and Signer are folded into the submission
type RowEvent struct {
	Seq         int
	State       string
	Attempt     int
	MaxAttempts int
	Message     string
	Result      string
	Reason      string
	Receipt     string
	Signer      string
	At          time.Time
}

type (
	// PG implements the Repo interface using Postgres
	PG struct{}

	// queries holds the database query methods
	queries struct{ q repokit.Queryer }
)

// NewPG creates a new Postgres repository binder
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind binds a Postgres queryer to the Repo implementation
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

var schema = []string{
	`create table if not exists explain_submissions (
	id           uuid primary key,
	key          text not null,
	text         text not null,
	state        text not null,
	attempt      int not null default 0,
	max_attempts int not null default 0,
	result       text not null default '',
	reason       text not null default '',
	message      text not null default '',
	tx_hash      text not null default '',
	signer       text not null default '',
	created_at   timestamptz not null default now(),
	updated_at   timestamptz not null default now()
)`,
	`create index if not exists explain_submissions_key_idx on explain_submissions (key)`,
	`create index if not exists explain_submissions_created_idx on explain_submissions (created_at desc)`,
	`create table if not exists explain_events (
	submission_id uuid not null references explain_submissions (id) on delete cascade,
	seq           int not null,
	state         text not null,
	attempt       int not null default 0,
	max_attempts  int not null default 0,
	message       text not null default '',
	result        text not null default '',
	reason        text not null default '',
	at            timestamptz not null,
	primary key (submission_id, seq)
)`,
}

// EnsureSchema creates the ledger tables when missing
func (r *queries) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.q.Exec(ctx, stmt); err != nil {
			return perr.FromPostgres(err, "ensure explain schema")
		}
	}
	return nil
}

func (r *queries) Insert(ctx context.Context, s RowSubmission) error {
	const sql = `
insert into explain_submissions (id, key, text, state, max_attempts, message, created_at, updated_at)
values ($1, $2, $3, $4, $5, $6, $7, $7)
`
	if _, err := r.q.Exec(ctx, sql, s.ID, s.Key, s.Text, s.State, s.MaxAttempts, s.Message, s.CreatedAt); err != nil {
		return perr.FromPostgresWithField(err, "insert submission")
	}
	return nil
}

func (r *queries) Delete(ctx context.Context, id string) error {
	return oneRow(store.ExecOne(ctx, r.q, `delete from explain_submissions where id = $1`, id), id, "delete submission")
}

// oneRow names the submission when a single row write matched nothing
func oneRow(err error, id, op string) error {
	switch {
	case err == nil:
		return nil
	case perr.IsCode(err, perr.ErrorCodeNotFound):
		return perr.NotFoundf("submission %s not found", id)
	default:
		return perr.FromPostgres(err, op)
	}
}

func (r *queries) AppendEvent(ctx context.Context, id string, ev RowEvent) error {
	const sql = `
insert into explain_events (submission_id, seq, state, attempt, max_attempts, message, result, reason, at)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`
	if _, err := r.q.Exec(ctx, sql, id, ev.Seq, ev.State, ev.Attempt, ev.MaxAttempts, ev.Message, ev.Result, ev.Reason, ev.At); err != nil {
		return perr.FromPostgres(err, "append event")
	}
	return nil
}

// ApplyEvent moves the submission to the event's state
// Receipt and signer only overwrite when the event carries them
func (r *queries) ApplyEvent(ctx context.Context, id string, ev RowEvent) error {
	const sql = `
update explain_submissions set
	state        = $2,
	attempt      = $3,
	max_attempts = greatest(max_attempts, $4),
	message      = $5,
	result       = $6,
	reason       = $7,
	tx_hash      = coalesce($8::text, tx_hash),
	signer       = coalesce($9::text, signer),
	updated_at   = $10
where id = $1
`
	err := store.ExecOne(ctx, r.q, sql, id, ev.State, ev.Attempt, ev.MaxAttempts, ev.Message, ev.Result, ev.Reason, str.NullIfBlank(ev.Receipt), str.NullIfBlank(ev.Signer), ev.At)
	return oneRow(err, id, "apply event")
}

const selectSubmission = `
select id::text, key, text, state, attempt, max_attempts, result, reason, message, tx_hash, signer, created_at, updated_at
from explain_submissions
`

func scanSubmission(row store.Row) (RowSubmission, error) {
	var s RowSubmission
	err := row.Scan(
		&s.ID,
		&s.Key,
		&s.Text,
		&s.State,
		&s.Attempt,
		&s.MaxAttempts,
		&s.Result,
		&s.Reason,
		&s.Message,
		&s.TxHash,
		&s.Signer,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	return s, err
}

func (r *queries) Get(ctx context.Context, id string) (RowSubmission, error) {
	s, err := store.One(ctx, r.q, scanSubmission, selectSubmission+`where id = $1`, id)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return RowSubmission{}, perr.NotFoundf("submission %s not found", id)
		}
		return RowSubmission{}, perr.FromPostgres(err, "get submission")
	}
	return s, nil
}

func (r *queries) Events(ctx context.Context, id string) ([]RowEvent, error) {
	const sql = `
select seq, state, attempt, max_attempts, message, result, reason, at
from explain_events
where submission_id = $1
order by seq
`
	out, err := store.Many(ctx, r.q, func(row store.Row) (RowEvent, error) {
		var ev RowEvent
		err := row.Scan(&ev.Seq, &ev.State, &ev.Attempt, &ev.MaxAttempts, &ev.Message, &ev.Result, &ev.Reason, &ev.At)
		return ev, err
	}, sql, id)
	if err != nil {
		return nil, perr.FromPostgres(err, "list events")
	}
	return out, nil
}

func (r *queries) Recent(ctx context.Context, limit int) ([]RowSubmission, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	out, err := store.Many(ctx, r.q, scanSubmission, selectSubmission+`order by created_at desc limit $1`, limit)
	if err != nil {
		return nil, perr.FromPostgres(err, "list submissions")
	}
	return out, nil
}

// SameKey lists other submissions stored under key, newest first
func (r *queries) SameKey(ctx context.Context, key, excludeID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	const sql = `
select id::text from explain_submissions
where key = $1 and id::text <> $2
order by created_at desc
limit $3
`
	out, err := store.Many(ctx, r.q, func(row store.Row) (string, error) {
		var id string
		return id, row.Scan(&id)
	}, sql, key, excludeID, limit)
	if err != nil {
		return nil, perr.FromPostgres(err, "find by key")
	}
	return out, nil
}

// FailDangling closes submissions a previous process left in a non terminal state
func (r *queries) FailDangling(ctx context.Context, reason string, at time.Time) (int64, error) {
	const sql = `
update explain_submissions set
	state      = 'failed',
	reason     = $1,
	message    = 'Error: ' || $1::text,
	updated_at = $2
where state not in ('succeeded', 'timed_out', 'failed')
`
	tag, err := r.q.Exec(ctx, sql, reason, at)
	if err != nil {
		return 0, perr.FromPostgres(err, "fail dangling submissions")
	}
	return tag.RowsAffected(), nil
}
