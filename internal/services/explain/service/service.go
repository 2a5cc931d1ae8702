// Package service runs clause submissions and records them in the ledger
package service

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"ruleexplain/internal/core/cleantext"
	"ruleexplain/internal/core/keyderive"
	"ruleexplain/internal/core/orchestrator"
	"ruleexplain/internal/modkit/repokit"
	perr "ruleexplain/internal/platform/errors"
	"ruleexplain/internal/platform/logger"
	pnet "ruleexplain/internal/platform/net"
	"ruleexplain/internal/services/explain/domain"
	"ruleexplain/internal/services/explain/repo"
)

// ledgerTimeout bounds each ledger write made on behalf of a running submission
const ledgerTimeout = 5 * time.Second

// Service defines the service contract for submissions
type Service interface {
	domain.ServicePort
	domain.StreamPort
}

// Svc implements the Service interface
type Svc struct {
	Repo    repo.Repo
	binder  repokit.Binder[repo.Repo]
	db      repokit.TxRunner
	session *orchestrator.Session
	metrics *Metrics
	hub     *hub
	log     logger.Logger

	newID func() string
	now   func() time.Time

	// base outlives requests; runs are detached from the request that started them
	base context.Context
	stop context.CancelFunc

	mu      sync.Mutex
	running map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new explain service
func New(db repokit.TxRunner, binder repokit.Binder[repo.Repo], session *orchestrator.Session, m *Metrics) *Svc {
	if db == nil {
		panic("explain.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("explain.Service requires a non nil Repo binder")
	}
	if session == nil {
		panic("explain.Service requires a session")
	}
	if m == nil {
		m = NewMetrics(nil)
	}
	base, stop := context.WithCancel(context.Background())
	return &Svc{
		Repo:    binder.Bind(db),
		binder:  binder,
		db:      db,
		session: session,
		metrics: m,
		hub:     newHub(runEvents(session.Config().MaxAttempts)),
		log:     *logger.Named("explain"),
		newID:   uuid.NewString,
		now:     time.Now,
		base:    base,
		stop:    stop,
		running: make(map[string]context.CancelFunc),
	}
}

// Start prepares the ledger and closes submissions a previous process left open
func (s *Svc) Start(ctx context.Context) error {
	if err := s.Repo.EnsureSchema(ctx); err != nil {
		return err
	}
	n, err := s.Repo.FailDangling(ctx, "interrupted by restart", s.now().UTC())
	if err != nil {
		return err
	}
	if n > 0 {
		s.log.Warn().Int64("count", n).Msg("closed submissions left open by a previous run")
	}
	return nil
}

// Shutdown cancels running submissions and waits for their final events to be recorded
func (s *Svc) Shutdown(ctx context.Context) error {
	s.stop()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit records a submission and starts it in the background
func (s *Svc) Submit(ctx context.Context, in domain.SubmitInput) (domain.Submission, error) {
	text, err := clean(in.Text)
	if err != nil {
		return domain.Submission{}, err
	}
	if s.session.Busy() {
		s.metrics.submissions.WithLabelValues("rejected").Inc()
		return domain.Submission{}, orchestrator.ErrBusy
	}

	now := s.now().UTC()
	row := repo.RowSubmission{
		ID:          s.newID(),
		Key:         keyderive.Derive(text),
		Text:        text,
		State:       string(orchestrator.StateIdle),
		MaxAttempts: s.session.Config().MaxAttempts,
		Message:     "Queued.",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Repo.Insert(ctx, row); err != nil {
		return domain.Submission{}, err
	}

	// the run outlives the request but keeps its id and operator for the logs
	runCtx, cancel := context.WithCancel(pnet.WithRequest(pnet.WithOperator(s.base, pnet.Operator(ctx)), pnet.RequestID(ctx)))
	events, err := s.session.SubmitAndAwait(runCtx, text)
	if err != nil {
		cancel()
		s.metrics.submissions.WithLabelValues("rejected").Inc()
		if derr := s.Repo.Delete(ctx, row.ID); derr != nil {
			s.log.Error().Err(derr).Str("id", row.ID).Msg("could not remove rejected submission")
		}
		return domain.Submission{}, err
	}

	s.mu.Lock()
	s.running[row.ID] = cancel
	s.mu.Unlock()
	s.metrics.inFlight.Inc()

	s.wg.Add(1)
	go s.drain(runCtx, row.ID, now, events, cancel)

	out := toSubmission(row)
	if others, err := s.Repo.SameKey(ctx, row.Key, row.ID, 10); err == nil {
		out.Collisions = others
	} else {
		s.log.Warn().Err(err).Str("id", row.ID).Msg("collision lookup failed")
	}
	return out, nil
}

// drain records every event of one run, fans it out and closes the run
func (s *Svc) drain(ctx context.Context, id string, started time.Time, events <-chan orchestrator.Event, cancel context.CancelFunc) {
	defer s.wg.Done()
	defer cancel()

	lc := s.log.With().Str("id", id)
	if rid := pnet.RequestID(ctx); rid != "" {
		lc = lc.Str("request_id", rid)
	}
	if op := pnet.Operator(ctx); op != "" {
		lc = lc.Str("operator", op)
	}
	log := lc.Logger()
	seq := 0
	var last orchestrator.Event
	for ev := range events {
		seq++
		last = ev
		rec := toEventRecord(seq, ev)
		s.metrics.transitions.WithLabelValues(string(ev.State)).Inc()

		if err := s.record(id, seq, ev); err != nil {
			log.Error().Err(err).Int("seq", seq).Str("state", string(ev.State)).Msg("ledger write failed")
		}
		if dropped := s.hub.publish(id, rec); dropped > 0 {
			log.Warn().Int("dropped", dropped).Msg("slow stream subscribers missed an event")
		}
	}

	outcome := string(last.State)
	if !last.State.Terminal() {
		outcome = "unknown"
	}
	s.metrics.inFlight.Dec()
	s.metrics.submissions.WithLabelValues(outcome).Inc()
	s.metrics.duration.WithLabelValues(outcome).Observe(s.now().Sub(started).Seconds())
	if last.Attempt > 0 {
		s.metrics.attempts.Observe(float64(last.Attempt))
	}
	log.Info().Str("outcome", outcome).Int("attempts", last.Attempt).Msg("submission finished")

	s.mu.Lock()
	delete(s.running, id)
	s.hub.finish(id)
	s.mu.Unlock()
}

// record appends the event and moves the submission in one transaction
func (s *Svc) record(id string, seq int, ev orchestrator.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
	defer cancel()
	row := repo.RowEvent{
		Seq:         seq,
		State:       string(ev.State),
		Attempt:     ev.Attempt,
		MaxAttempts: ev.MaxAttempts,
		Message:     ev.Message,
		Result:      ev.Result,
		Reason:      ev.Reason,
		Receipt:     ev.Receipt,
		Signer:      string(ev.Signer),
		At:          ev.At,
	}
	return repokit.WithTx(ctx, s.db, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)
		if err := r.AppendEvent(ctx, id, row); err != nil {
			return err
		}
		return r.ApplyEvent(ctx, id, row)
	})
}

// Get returns one submission with the ids of others sharing its key
func (s *Svc) Get(ctx context.Context, id string) (domain.Submission, error) {
	if err := validID(id); err != nil {
		return domain.Submission{}, err
	}
	row, err := s.Repo.Get(ctx, id)
	if err != nil {
		return domain.Submission{}, err
	}
	out := toSubmission(row)
	if others, err := s.Repo.SameKey(ctx, row.Key, row.ID, 10); err == nil {
		out.Collisions = others
	}
	return out, nil
}

// Events returns the recorded transitions of a submission in order
func (s *Svc) Events(ctx context.Context, id string) ([]domain.EventRecord, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	if _, err := s.Repo.Get(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.Repo.Events(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]domain.EventRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromRowEvent(r))
	}
	return out, nil
}

// Recent lists the newest submissions
func (s *Svc) Recent(ctx context.Context, limit int) ([]domain.Submission, error) {
	rows, err := s.Repo.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Submission, 0, len(rows))
	for _, r := range rows {
		out = append(out, toSubmission(r))
	}
	return out, nil
}

// Cancel stops polling for a running submission; the sent transaction stays on chain
func (s *Svc) Cancel(ctx context.Context, id string) (domain.Submission, error) {
	if err := validID(id); err != nil {
		return domain.Submission{}, err
	}
	s.mu.Lock()
	cancel, ok := s.running[id]
	s.mu.Unlock()
	if !ok {
		sub, err := s.Get(ctx, id)
		if err != nil {
			return domain.Submission{}, err
		}
		return sub, perr.Conflictf("submission %s is already %s", id, sub.State)
	}
	cancel()
	return s.Get(ctx, id)
}

// Subscribe returns recorded history plus a live feed of later events
// Live events may repeat the tail of history; callers skip seq values they have seen
func (s *Svc) Subscribe(ctx context.Context, id string) ([]domain.EventRecord, <-chan domain.EventRecord, func(), error) {
	if err := validID(id); err != nil {
		return nil, nil, nil, err
	}
	s.mu.Lock()
	_, running := s.running[id]
	var (
		live <-chan domain.EventRecord
		stop = func() {}
	)
	if running {
		live, stop = s.hub.subscribe(id)
	}
	s.mu.Unlock()

	history, err := s.Events(ctx, id)
	if err != nil {
		stop()
		return nil, nil, nil, err
	}
	if !running {
		// finished before we subscribed; history is complete
		closed := make(chan domain.EventRecord)
		close(closed)
		return history, closed, stop, nil
	}
	return history, live, stop, nil
}

// clean normalizes text and enforces the submission bounds
func clean(text string) (string, error) {
	if utf8.RuneCountInString(text) > domain.MaxTextRunes {
		return "", perr.WithField(perr.InvalidArgf("text must be at most %d characters", domain.MaxTextRunes), "text")
	}
	out := cleantext.Clean(text)
	if out == "" {
		return "", orchestrator.ErrEmptyInput
	}
	return out, nil
}

// PreviewKey shows the key text would be stored under and who else shares it
func (s *Svc) PreviewKey(ctx context.Context, text string) (domain.KeyPreview, error) {
	cleaned, err := clean(text)
	if err != nil {
		return domain.KeyPreview{}, err
	}
	key := keyderive.Derive(cleaned)
	out := domain.KeyPreview{
		Key:       key,
		Runes:     keyderive.Len(key),
		Truncated: keyderive.Len(cleaned) > keyderive.MaxRunes,
		Cleaned:   cleantext.Changed(text),
	}
	others, err := s.Repo.SameKey(ctx, key, "", 10)
	if err != nil {
		return domain.KeyPreview{}, err
	}
	out.Collisions = others
	return out, nil
}

// Running reports how many submissions are in flight
func (s *Svc) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

func validID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return perr.WithField(perr.InvalidArgf("invalid submission id %q", id), "id")
	}
	return nil
}

func toSubmission(r repo.RowSubmission) domain.Submission {
	return domain.Submission{
		ID:          r.ID,
		Key:         r.Key,
		Text:        r.Text,
		State:       r.State,
		Attempt:     r.Attempt,
		MaxAttempts: r.MaxAttempts,
		Result:      r.Result,
		Reason:      r.Reason,
		Message:     r.Message,
		TxHash:      r.TxHash,
		Signer:      r.Signer,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func toEventRecord(seq int, ev orchestrator.Event) domain.EventRecord {
	return domain.EventRecord{
		Seq:         seq,
		State:       string(ev.State),
		Attempt:     ev.Attempt,
		MaxAttempts: ev.MaxAttempts,
		Message:     ev.Message,
		Result:      ev.Result,
		Reason:      ev.Reason,
		At:          ev.At,
	}
}

func fromRowEvent(r repo.RowEvent) domain.EventRecord {
	return domain.EventRecord{
		Seq:         r.Seq,
		State:       r.State,
		Attempt:     r.Attempt,
		MaxAttempts: r.MaxAttempts,
		Message:     r.Message,
		Result:      r.Result,
		Reason:      r.Reason,
		At:          r.At,
	}
}
