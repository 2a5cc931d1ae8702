package service

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"ruleexplain/internal/core/orchestrator"
	"ruleexplain/internal/modkit/repokit"
	perr "ruleexplain/internal/platform/errors"
	"ruleexplain/internal/platform/logger"
	pnet "ruleexplain/internal/platform/net"
	"ruleexplain/internal/platform/store"
	"ruleexplain/internal/services/explain/domain"
	"ruleexplain/internal/services/explain/repo"
)

// memRepo is an in-memory ledger
type memRepo struct {
	mu      sync.Mutex
	subs    map[string]repo.RowSubmission
	events  map[string][]repo.RowEvent
	failApp bool
}

func newMemRepo() *memRepo {
	return &memRepo{subs: map[string]repo.RowSubmission{}, events: map[string][]repo.RowEvent{}}
}

func (m *memRepo) EnsureSchema(context.Context) error { return nil }

func (m *memRepo) Insert(_ context.Context, s repo.RowSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[s.ID]; ok {
		return perr.Newf(perr.ErrorCodeDuplicateKey, "duplicate %s", s.ID)
	}
	m.subs[s.ID] = s
	return nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, id)
	delete(m.events, id)
	return nil
}

func (m *memRepo) AppendEvent(_ context.Context, id string, ev repo.RowEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failApp {
		return perr.New(perr.ErrorCodeDB, "ledger down")
	}
	m.events[id] = append(m.events[id], ev)
	return nil
}

func (m *memRepo) ApplyEvent(_ context.Context, id string, ev repo.RowEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return perr.NotFoundf("submission %s not found", id)
	}
	s.State, s.Attempt, s.Message, s.Result, s.Reason = ev.State, ev.Attempt, ev.Message, ev.Result, ev.Reason
	if ev.MaxAttempts > s.MaxAttempts {
		s.MaxAttempts = ev.MaxAttempts
	}
	if ev.Receipt != "" {
		s.TxHash = ev.Receipt
	}
	if ev.Signer != "" {
		s.Signer = ev.Signer
	}
	s.UpdatedAt = ev.At
	m.subs[id] = s
	return nil
}

func (m *memRepo) Get(_ context.Context, id string) (repo.RowSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return repo.RowSubmission{}, perr.NotFoundf("submission %s not found", id)
	}
	return s, nil
}

func (m *memRepo) Events(_ context.Context, id string) ([]repo.RowEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]repo.RowEvent(nil), m.events[id]...), nil
}

func (m *memRepo) Recent(_ context.Context, limit int) ([]repo.RowSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]repo.RowSubmission, 0, len(m.subs))
	for _, s := range m.subs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) SameKey(_ context.Context, key, excludeID string, _ int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id, s := range m.subs {
		if s.Key == key && id != excludeID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memRepo) FailDangling(_ context.Context, reason string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.subs {
		if !(domain.Submission{State: s.State}).Terminal() {
			s.State, s.Reason, s.UpdatedAt = "failed", reason, at
			m.subs[id] = s
			n++
		}
	}
	return n, nil
}

func (m *memRepo) state(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subs[id].State
}

// fakeTx runs fn inline; the bound repo ignores the queryer
type fakeTx struct{ store.RowQuerier }

func (fakeTx) Tx(_ context.Context, fn func(q store.RowQuerier) error) error { return fn(nil) }

// chain fakes

type gateSubmitter struct {
	gate    chan struct{}
	submits atomic.Int32
}

func (g *gateSubmitter) Submit(context.Context, orchestrator.Identity, string) (orchestrator.Receipt, error) {
	g.submits.Add(1)
	return orchestrator.Receipt{Ref: "0xfeed"}, nil
}

func (g *gateSubmitter) AwaitAcceptance(ctx context.Context, _ orchestrator.Receipt) error {
	if g.gate == nil {
		return nil
	}
	select {
	case <-g.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type fixture struct {
	svc  *Svc
	repo *memRepo
	sub  *gateSubmitter
	reg  *prometheus.Registry
}

func newFixture(t *testing.T, answer func(attempt int) (string, error), gated bool) *fixture {
	t.Helper()
	return newFixtureAttempts(t, answer, gated, 5)
}

func newFixtureAttempts(t *testing.T, answer func(attempt int) (string, error), gated bool, attempts int) *fixture {
	t.Helper()
	return newFixtureTx(t, answer, gated, attempts, fakeTx{})
}

func newFixtureTx(t *testing.T, answer func(attempt int) (string, error), gated bool, attempts int, tx repokit.TxRunner) *fixture {
	t.Helper()
	var n atomic.Int32
	q := orchestrator.QuerierFunc(func(context.Context, string) (string, error) {
		return answer(int(n.Add(1)))
	})
	sub := &gateSubmitter{}
	if gated {
		sub.gate = make(chan struct{})
	}
	auth := orchestrator.AuthorizerFunc(func(context.Context) (orchestrator.Identity, error) {
		return "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23", nil
	})
	sess, err := orchestrator.New(auth, sub, q, orchestrator.Config{
		Interval:          time.Millisecond,
		MaxAttempts:       attempts,
		AcceptanceTimeout: time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	mem := newMemRepo()
	reg := prometheus.NewRegistry()
	svc := New(tx, repokit.BindFunc[repo.Repo](func(repokit.Queryer) repo.Repo { return mem }), sess, NewMetrics(reg))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return &fixture{svc: svc, repo: mem, sub: sub, reg: reg}
}

func (f *fixture) waitDone(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for f.svc.Running() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("submission did not finish")
		}
		time.Sleep(time.Millisecond)
	}
}

func foundOn(k int, text string) func(int) (string, error) {
	return func(n int) (string, error) {
		if n >= k {
			return text, nil
		}
		return orchestrator.DefaultSentinel, nil
	}
}

func TestSubmit_RecordsEveryTransition(t *testing.T) {
	f := newFixture(t, foundOn(3, "Plain-English text"), false)

	sub, err := f.svc.Submit(context.Background(), domain.SubmitInput{Text: "  The party shall indemnify.\r\n"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sub.Key != "The party shall indemnify." || sub.Text != "The party shall indemnify." {
		t.Fatalf("cleaned text/key = %q / %q", sub.Text, sub.Key)
	}
	f.waitDone(t)

	got, err := f.svc.Get(context.Background(), sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != "succeeded" || got.Result != "Plain-English text" || got.Attempt != 3 {
		t.Fatalf("final = %+v", got)
	}
	if got.TxHash != "0xfeed" || got.Signer == "" {
		t.Fatalf("receipt/signer not folded in: %+v", got)
	}

	evs, err := f.svc.Events(context.Background(), sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	// auth, submitting, accepting, 3 x polling, succeeded
	if len(evs) != 7 {
		t.Fatalf("events = %d, want 7", len(evs))
	}
	for i, ev := range evs {
		if ev.Seq != i+1 {
			t.Fatalf("seq %d at %d", ev.Seq, i)
		}
	}
	if !evs[len(evs)-1].Terminal() {
		t.Fatal("last event not terminal")
	}

	if v := testutil.ToFloat64(f.svc.metrics.submissions.WithLabelValues("succeeded")); v != 1 {
		t.Fatalf("succeeded counter = %v", v)
	}
	if v := testutil.ToFloat64(f.svc.metrics.inFlight); v != 0 {
		t.Fatalf("in flight = %v", v)
	}
}

// abortingTx fails every other transaction the way postgres reports a serialization abort
type abortingTx struct {
	store.RowQuerier
	calls  atomic.Int32
	aborts atomic.Int32
}

func (a *abortingTx) Tx(_ context.Context, fn func(q store.RowQuerier) error) error {
	if a.calls.Add(1)%2 == 1 {
		a.aborts.Add(1)
		return &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
	}
	return fn(nil)
}

func TestSubmit_RetriesAbortedLedgerWrites(t *testing.T) {
	tx := &abortingTx{}
	f := newFixtureTx(t, foundOn(1, "Plain-English text"), false, 5, tx)

	sub, err := f.svc.Submit(context.Background(), domain.SubmitInput{Text: "The party shall indemnify."})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	f.waitDone(t)

	got, err := f.svc.Get(context.Background(), sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != "succeeded" {
		t.Fatalf("final = %+v", got)
	}
	evs, _ := f.svc.Events(context.Background(), sub.ID)
	// auth, submitting, accepting, polling, succeeded
	if len(evs) != 5 {
		t.Fatalf("events = %d, want 5", len(evs))
	}
	if tx.aborts.Load() == 0 {
		t.Fatal("no aborted transaction was retried")
	}
}

type lockedBuf struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuf) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuf) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSubmit_RunLogsCarryRequest(t *testing.T) {
	prev := *logger.Get()
	t.Cleanup(func() { logger.Replace(prev) })
	out := &lockedBuf{}
	logger.Init(logger.Options{Level: "debug", Format: "json", Writer: out})

	f := newFixture(t, foundOn(1, "x"), false)
	ctx := pnet.WithOperator(pnet.WithRequest(context.Background(), "req-9"), "ops")
	sub, err := f.svc.Submit(ctx, domain.SubmitInput{Text: "clause"})
	if err != nil {
		t.Fatal(err)
	}
	f.waitDone(t)

	var finished bool
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if !strings.Contains(line, `"submission finished"`) {
			continue
		}
		finished = true
		for _, want := range []string{`"request_id":"req-9"`, `"operator":"ops"`, `"id":"` + sub.ID + `"`} {
			if !strings.Contains(line, want) {
				t.Fatalf("missing %s in %s", want, line)
			}
		}
	}
	if !finished {
		t.Fatalf("no finish line in:\n%s", out.String())
	}
}

func TestSubmit_TimeoutRecorded(t *testing.T) {
	f := newFixture(t, func(int) (string, error) { return "", nil }, false)
	sub, err := f.svc.Submit(context.Background(), domain.SubmitInput{Text: "clause"})
	if err != nil {
		t.Fatal(err)
	}
	f.waitDone(t)
	got, _ := f.svc.Get(context.Background(), sub.ID)
	if got.State != "timed_out" || got.Attempt != 5 {
		t.Fatalf("final = %+v", got)
	}
	if !strings.Contains(got.Message, "may still arrive later") {
		t.Fatalf("message = %q", got.Message)
	}
}

func TestSubmit_Rejections(t *testing.T) {
	f := newFixture(t, foundOn(1, "x"), true)

	if _, err := f.svc.Submit(context.Background(), domain.SubmitInput{Text: " \x00\u200b "}); !errors.Is(err, orchestrator.ErrEmptyInput) {
		t.Fatalf("blank err = %v", err)
	}
	tooLong := strings.Repeat("ü", domain.MaxTextRunes+1)
	if _, err := f.svc.Submit(context.Background(), domain.SubmitInput{Text: tooLong}); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) || perr.WireFrom(err).Field != "text" {
		t.Fatalf("too long err = %v", err)
	}
	if _, err := f.svc.PreviewKey(context.Background(), tooLong); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("too long preview err = %v", err)
	}

	first, err := f.svc.Submit(context.Background(), domain.SubmitInput{Text: "first"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.Submit(context.Background(), domain.SubmitInput{Text: "second"})
	if perr.HTTPStatus(err) != 409 {
		t.Fatalf("busy err = %v (status %d)", err, perr.HTTPStatus(err))
	}
	recent, _ := f.svc.Recent(context.Background(), 10)
	if len(recent) != 1 || recent[0].ID != first.ID {
		t.Fatalf("rejected submission left a row: %+v", recent)
	}

	close(f.sub.gate)
	f.waitDone(t)
}

func TestSubmit_TextAtBoundAccepted(t *testing.T) {
	f := newFixture(t, foundOn(1, "x"), false)
	sub, err := f.svc.Submit(context.Background(), domain.SubmitInput{Text: strings.Repeat("ü", domain.MaxTextRunes)})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	f.waitDone(t)
	if got, _ := f.svc.Get(context.Background(), sub.ID); got.State != "succeeded" {
		t.Fatalf("final = %+v", got)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t, foundOn(1, "x"), true)
	sub, err := f.svc.Submit(context.Background(), domain.SubmitInput{Text: "clause"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Cancel(context.Background(), sub.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	f.waitDone(t)

	got, _ := f.svc.Get(context.Background(), sub.ID)
	if got.State != "failed" || got.Reason != orchestrator.ReasonCanceled {
		t.Fatalf("final = %+v", got)
	}
	if _, err := f.svc.Cancel(context.Background(), sub.ID); !perr.IsCode(err, perr.ErrorCodeConflict) {
		t.Fatalf("second cancel err = %v", err)
	}
	if _, err := f.svc.Cancel(context.Background(), "not-a-uuid"); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("bad id err = %v", err)
	}
}

func TestSubscribe_HistoryThenLive(t *testing.T) {
	f := newFixture(t, foundOn(2, "done"), true)
	sub, err := f.svc.Submit(context.Background(), domain.SubmitInput{Text: "clause"})
	if err != nil {
		t.Fatal(err)
	}

	// wait until the run is parked in acceptance
	deadline := time.Now().Add(2 * time.Second)
	for {
		evs, _ := f.svc.Events(context.Background(), sub.ID)
		if len(evs) >= 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("run never reached acceptance")
		}
		time.Sleep(time.Millisecond)
	}

	history, live, stop, err := f.svc.Subscribe(context.Background(), sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer stop()
	if len(history) != 3 {
		t.Fatalf("history = %d events, want 3", len(history))
	}

	close(f.sub.gate)
	var states []string
	for ev := range live {
		if ev.Seq <= history[len(history)-1].Seq {
			continue
		}
		states = append(states, ev.State)
	}
	want := []string{"polling", "polling", "succeeded"}
	if strings.Join(states, ",") != strings.Join(want, ",") {
		t.Fatalf("live states = %v, want %v", states, want)
	}
}

func TestSubscribe_IdleReaderKeepsTerminalEvent(t *testing.T) {
	const attempts = 120
	f := newFixtureAttempts(t, foundOn(attempts+1, "never"), true, attempts)
	sub, err := f.svc.Submit(context.Background(), domain.SubmitInput{Text: "clause"})
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		evs, _ := f.svc.Events(context.Background(), sub.ID)
		if len(evs) >= 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("run never reached acceptance")
		}
		time.Sleep(time.Millisecond)
	}

	history, live, stop, err := f.svc.Subscribe(context.Background(), sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer stop()
	seen := history[len(history)-1].Seq

	// nobody reads until the run is over
	close(f.sub.gate)
	f.waitDone(t)

	var last domain.EventRecord
	n := 0
	for ev := range live {
		if ev.Seq <= seen {
			continue
		}
		last = ev
		n++
	}
	if last.State != "timed_out" {
		t.Fatalf("last live state = %q after %d events, want timed_out", last.State, n)
	}
	if n != attempts+1 {
		t.Fatalf("live events = %d, want %d", n, attempts+1)
	}
}

func TestSubscribe_FinishedReturnsClosedFeed(t *testing.T) {
	f := newFixture(t, foundOn(1, "done"), false)
	sub, _ := f.svc.Submit(context.Background(), domain.SubmitInput{Text: "clause"})
	f.waitDone(t)

	history, live, stop, err := f.svc.Subscribe(context.Background(), sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer stop()
	if _, open := <-live; open {
		t.Fatal("feed of a finished submission must be closed")
	}
	if !history[len(history)-1].Terminal() {
		t.Fatal("history must end with the terminal event")
	}
	if f.svc.hub.count(sub.ID) != 0 {
		t.Fatal("subscription leaked")
	}
}

func TestPreviewKey_SurfacesCollisions(t *testing.T) {
	f := newFixture(t, foundOn(1, "x"), false)
	long := strings.Repeat("a", 60)
	first, err := f.svc.Submit(context.Background(), domain.SubmitInput{Text: long + " first tail"})
	if err != nil {
		t.Fatal(err)
	}
	f.waitDone(t)

	p, err := f.svc.PreviewKey(context.Background(), long+" another tail")
	if err != nil {
		t.Fatal(err)
	}
	if p.Key != long || !p.Truncated || p.Runes != 60 {
		t.Fatalf("preview = %+v", p)
	}
	if len(p.Collisions) != 1 || p.Collisions[0] != first.ID {
		t.Fatalf("collisions = %v", p.Collisions)
	}

	second, err := f.svc.Submit(context.Background(), domain.SubmitInput{Text: long + " second tail"})
	if err != nil {
		t.Fatal(err)
	}
	f.waitDone(t)
	if len(second.Collisions) != 1 || second.Collisions[0] != first.ID {
		t.Fatalf("submit collisions = %v", second.Collisions)
	}
}

func TestStart_FailsDangling(t *testing.T) {
	f := newFixture(t, foundOn(1, "x"), false)
	_ = f.repo.Insert(context.Background(), repo.RowSubmission{ID: "11111111-1111-1111-1111-111111111111", State: "polling"})
	if err := f.svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := f.repo.state("11111111-1111-1111-1111-111111111111"); got != "failed" {
		t.Fatalf("dangling state = %s", got)
	}
}

func TestLedgerFailureDoesNotStopRun(t *testing.T) {
	f := newFixture(t, foundOn(1, "x"), false)
	f.repo.failApp = true
	sub, err := f.svc.Submit(context.Background(), domain.SubmitInput{Text: "clause"})
	if err != nil {
		t.Fatal(err)
	}
	f.waitDone(t)
	if v := testutil.ToFloat64(f.svc.metrics.submissions.WithLabelValues("succeeded")); v != 1 {
		t.Fatalf("run should still finish; succeeded = %v", v)
	}
	if got := f.repo.state(sub.ID); got != "idle" {
		t.Fatalf("state moved despite failed ledger writes: %s", got)
	}
}
