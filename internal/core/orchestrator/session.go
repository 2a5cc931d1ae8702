package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ruleexplain/internal/core/keyderive"
	perr "ruleexplain/internal/platform/errors"
	"ruleexplain/internal/platform/logger"
)

var (
	// ErrEmptyInput is returned when there is nothing to submit
	ErrEmptyInput = perr.New(perr.ErrorCodeInvalidArgument, "clause text is empty")

	// ErrBusy is returned while another submission is in flight on the session
	ErrBusy = perr.New(perr.ErrorCodeConflict, "a submission is already in progress")

	errMissingPort = errors.New("orchestrator: authorizer, submitter and querier are required")
)

// ReasonAuthorizationDeclined is the failure reason when no signer could be resolved
const ReasonAuthorizationDeclined = "authorization declined"

// ReasonCanceled is the failure reason when the caller stops observing
const ReasonCanceled = "canceled"

// Session owns the signing identity and guards against overlapping submissions
// The identity is resolved at most once successfully and reused afterwards
type Session struct {
	auth   Authorizer
	submit Submitter
	query  Querier
	cfg    Config
	log    logger.Logger
	now    func() time.Time

	mu       sync.Mutex
	identity Identity

	busy atomic.Bool
}

// New constructs a Session over the three external capabilities
func New(auth Authorizer, submit Submitter, query Querier, cfg Config) (*Session, error) {
	if auth == nil || submit == nil || query == nil {
		return nil, errMissingPort
	}
	return &Session{
		auth:   auth,
		submit: submit,
		query:  query,
		cfg:    cfg.withDefaults(),
		log:    *logger.Named("orchestrator"),
		now:    time.Now,
	}, nil
}

// Config returns the effective timing policy
func (s *Session) Config() Config { return s.cfg }

// Busy reports whether a submission is in flight
func (s *Session) Busy() bool { return s.busy.Load() }

// Identity returns the memoized signer, empty until the first successful authorization
func (s *Session) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// SubmitAndAwait starts a submission and returns its status stream
// The stream carries exactly one terminal event and is then closed
// Cancelling ctx stops polling; it never retracts a write that was already sent
func (s *Session) SubmitAndAwait(ctx context.Context, input string) (<-chan Event, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput
	}
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	// sized so the run loop never blocks on a slow or absent reader
	out := make(chan Event, s.cfg.MaxAttempts+8)
	go s.run(ctx, input, out)
	return out, nil
}

// Await drains a stream, handing each event to each when non nil, and returns the terminal one
func Await(events <-chan Event, each func(Event)) Event {
	var last Event
	for ev := range events {
		if each != nil {
			each(ev)
		}
		last = ev
	}
	return last
}

type flight struct {
	s   *Session
	out chan<- Event
	key string
	id  Identity
	rec Receipt
}

func (r *flight) emit(ev Event) {
	ev.MaxAttempts = r.s.cfg.MaxAttempts
	ev.Key = r.key
	ev.Signer = r.id
	ev.Receipt = r.rec.Ref
	ev.At = r.s.now().UTC()
	if ev.Message == "" {
		ev.Message = messageFor(ev)
	}
	// a reader that sees the terminal event may resubmit at once
	if ev.Terminal() {
		r.s.busy.Store(false)
	}
	r.out <- ev
}

func (r *flight) fail(reason string) {
	r.emit(Event{State: StateFailed, Reason: reason})
}

func (s *Session) run(ctx context.Context, input string, out chan Event) {
	defer close(out)

	r := &flight{s: s, out: out}
	log := s.log.With().Logger()

	cached := s.Identity() != ""
	r.emit(Event{State: StateAwaitingAuthorization, Message: authMessage(cached)})

	id, err := s.authorize(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("authorization failed")
		if ctx.Err() != nil {
			r.fail(ReasonCanceled)
			return
		}
		r.emit(Event{
			State:   StateFailed,
			Reason:  ReasonAuthorizationDeclined,
			Message: "Error: " + ReasonAuthorizationDeclined + " (" + err.Error() + ")",
		})
		return
	}
	r.id = id

	r.key = keyderive.Derive(input)
	log = log.With().Str("key", r.key).Str("signer", id.Short()).Logger()

	r.emit(Event{State: StateSubmitting})
	rec, err := s.submit.Submit(ctx, id, input)
	if err != nil {
		log.Warn().Err(err).Msg("submission rejected")
		if ctx.Err() != nil {
			r.fail(ReasonCanceled)
			return
		}
		r.fail(reasonOf(err, "submission rejected"))
		return
	}
	r.rec = rec
	log = log.With().Str("receipt", rec.Ref).Logger()

	r.emit(Event{State: StateAwaitingAcceptance})
	if err := s.awaitAcceptance(ctx, rec); err != nil {
		log.Warn().Err(err).Msg("acceptance failed")
		if ctx.Err() != nil {
			r.fail(ReasonCanceled)
			return
		}
		r.fail(reasonOf(err, "submission was not accepted"))
		return
	}
	log.Info().Msg("submission accepted; polling for result")

	s.poll(ctx, r, log)
}

// authorize returns the memoized identity or resolves it once
// Failures are not memoized so a later submission can prompt again
func (s *Session) authorize(ctx context.Context) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity != "" {
		return s.identity, nil
	}
	id, err := s.auth.Authorize(ctx)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", perr.Unauthorizedf("signer returned an empty identity")
	}
	s.identity = id
	return id, nil
}

func (s *Session) awaitAcceptance(ctx context.Context, rec Receipt) error {
	if s.cfg.AcceptanceTimeout < 0 {
		return s.submit.AwaitAcceptance(ctx, rec)
	}
	actx, cancel := context.WithTimeout(ctx, s.cfg.AcceptanceTimeout)
	defer cancel()
	err := s.submit.AwaitAcceptance(actx, rec)
	if err != nil && ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
		return perr.Newf(perr.ErrorCodeUnavailable, "acceptance not confirmed within %s", s.cfg.AcceptanceTimeout)
	}
	return err
}

// poll issues at most MaxAttempts sequential queries, one Interval after the previous
// one completed
func (s *Session) poll(ctx context.Context, r *flight, log logger.Logger) {
	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		r.emit(Event{State: StatePolling, Attempt: attempt})

		select {
		case <-ctx.Done():
			r.fail(ReasonCanceled)
			return
		case <-timer.C:
		}

		text, err := s.query.Query(ctx, r.key)
		res := Classify(text, err, s.cfg.Sentinel)
		switch res.Kind {
		case PollFound:
			log.Info().Int("attempt", attempt).Msg("result found")
			r.emit(Event{State: StateSucceeded, Attempt: attempt, Result: res.Text})
			return
		case PollTransientError:
			if ctx.Err() != nil {
				r.fail(ReasonCanceled)
				return
			}
			log.Warn().Err(res.Cause).Int("attempt", attempt).Msg("query failed; will retry")
		default:
			log.Debug().Int("attempt", attempt).Msg("result not ready")
		}
		timer.Reset(s.cfg.Interval)
	}

	log.Warn().Int("attempts", s.cfg.MaxAttempts).Msg("attempt budget exhausted")
	r.emit(Event{State: StateTimedOut, Attempt: s.cfg.MaxAttempts})
}

// reasonOf prefers the project error message and falls back to a generic one
func reasonOf(err error, generic string) string {
	if err == nil {
		return generic
	}
	if e, ok := perr.As(err); ok && e.Error() != "" {
		return e.Error()
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return fmt.Sprintf("%s (%T)", generic, err)
}
