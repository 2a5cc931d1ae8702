// Package http provides http transport for clause explanations
package http

import (
	"encoding/json"
	"fmt"
	stdhttp "net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ruleexplain/internal/modkit/httpkit"
	perr "ruleexplain/internal/platform/errors"
	"ruleexplain/internal/platform/logger"
	phttp "ruleexplain/internal/platform/net/http"
	"ruleexplain/internal/platform/net/middleware"
	"ruleexplain/internal/services/explain/domain"
	svc "ruleexplain/internal/services/explain/service"
)

// keepAlive is how often an idle stream gets a comment line
var keepAlive = 15 * time.Second

// Register mounts explanation endpoints on the given router
// a non nil auth puts submit and cancel behind bearer tokens
func Register(r httpkit.Router, s svc.Service, auth middleware.AuthPort) {
	h := &handlers{svc: s}

	r.Group(func(g httpkit.Router) {
		g.Use(httpkit.Timeout())
		// a nil port lets writes through
		httpkit.Protected(g, auth, func(w httpkit.Router) {
			w.Use(httpkit.JSONOnly())
			httpkit.PostJSON[domain.SubmitInput](w, "/", h.submit)
			httpkit.Post(w, "/{id}/cancel", h.cancel)
		})
		httpkit.Get(g, "/", h.recent)
		httpkit.Get(g, "/key", h.key)
		httpkit.Get(g, "/{id}", h.get)
		httpkit.Get(g, "/{id}/events", h.events)
	})

	// streams stay open for the whole run
	r.Get("/{id}/stream", h.stream)
}

type handlers struct{ svc svc.Service }

// swagger:route POST /explanations Explanations explainSubmit
// @Summary Submit a clause for explanation
// @Tags Explanations
// @Accept json
// @Produce json
// @Param payload body domain.SubmitInput true "Clause"
// @Success 201 {object} domain.Submission "accepted"
// @Failure 409 {object} httpkit.Envelope "a submission is already in flight"
// @Router /explanations [post]
func (h *handlers) submit(r *stdhttp.Request, in domain.SubmitInput) (any, error) {
	sub, err := h.svc.Submit(r.Context(), in)
	if err != nil {
		return nil, err
	}
	audit(r, "submitted", sub.ID)
	return httpkit.Created(sub), nil
}

// swagger:route GET /explanations Explanations explainRecent
// @Summary Most recent submissions
// @Tags Explanations
// @Produce json
// @Param limit query int false "Max rows (default 50, max 200)"
// @Success 200 {array} domain.Submission "ok"
// @Router /explanations [get]
func (h *handlers) recent(r *stdhttp.Request) (any, error) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, perr.WithField(perr.InvalidArgf("limit must be a non negative integer"), "limit")
		}
		limit = n
	}
	return h.svc.Recent(r.Context(), limit)
}

// swagger:route GET /explanations/key Explanations explainKey
// @Summary Preview the lookup key a clause is stored under
// @Tags Explanations
// @Produce json
// @Param text query string true "Clause text"
// @Success 200 {object} domain.KeyPreview "ok"
// @Router /explanations/key [get]
func (h *handlers) key(r *stdhttp.Request) (any, error) {
	return h.svc.PreviewKey(r.Context(), r.URL.Query().Get("text"))
}

// swagger:route GET /explanations/{id} Explanations explainGet
// @Summary Current status of a submission
// @Tags Explanations
// @Produce json
// @Param id path string true "Submission id"
// @Success 200 {object} domain.Submission "ok"
// @Failure 404 {object} httpkit.Envelope "not found"
// @Router /explanations/{id} [get]
func (h *handlers) get(r *stdhttp.Request) (any, error) {
	return h.svc.Get(r.Context(), chi.URLParam(r, "id"))
}

// swagger:route GET /explanations/{id}/events Explanations explainEvents
// @Summary Recorded status transitions of a submission
// @Tags Explanations
// @Produce json
// @Param id path string true "Submission id"
// @Success 200 {array} domain.EventRecord "ok"
// @Router /explanations/{id}/events [get]
func (h *handlers) events(r *stdhttp.Request) (any, error) {
	return h.svc.Events(r.Context(), chi.URLParam(r, "id"))
}

// swagger:route POST /explanations/{id}/cancel Explanations explainCancel
// @Summary Stop polling for a running submission
// @Description The submitted transaction is not retracted
// @Tags Explanations
// @Produce json
// @Param id path string true "Submission id"
// @Success 200 {object} domain.Submission "ok"
// @Failure 409 {object} httpkit.Envelope "already finished"
// @Router /explanations/{id}/cancel [post]
func (h *handlers) cancel(r *stdhttp.Request) (any, error) {
	id := chi.URLParam(r, "id")
	sub, err := h.svc.Cancel(r.Context(), id)
	if err != nil {
		return nil, err
	}
	audit(r, "canceled", id)
	return sub, nil
}

// audit notes writes made by an authenticated operator; the request logger carries who
func audit(r *stdhttp.Request, action, id string) {
	if _, err := httpkit.User(r); err != nil {
		return
	}
	logger.C(r.Context()).Info().Str("submission", id).Msg(action)
}

// swagger:route GET /explanations/{id}/stream Explanations explainStream
// @Summary Live status stream as server sent events
// @Tags Explanations
// @Produce text/event-stream
// @Param id path string true "Submission id"
// @Success 200 {object} domain.EventRecord "one per event"
// @Router /explanations/{id}/stream [get]
func (h *handlers) stream(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()
	history, live, stop, err := h.svc.Subscribe(ctx, chi.URLParam(r, "id"))
	if err != nil {
		phttp.RespondError(w, r, err)
		return
	}
	defer stop()

	fl, ok := w.(stdhttp.Flusher)
	if !ok {
		phttp.RespondError(w, r, perr.Internalf("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(stdhttp.StatusOK)

	log := logger.C(ctx)
	last := 0
	for _, ev := range history {
		if err := writeEvent(w, ev); err != nil {
			return
		}
		last = ev.Seq
		if ev.Terminal() {
			fl.Flush()
			return
		}
	}
	fl.Flush()

	tick := time.NewTicker(keepAlive)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			fl.Flush()
		case ev, ok := <-live:
			if !ok {
				return
			}
			// live may repeat what history already delivered
			if ev.Seq <= last {
				continue
			}
			if err := writeEvent(w, ev); err != nil {
				log.Debug().Err(err).Msg("stream client gone")
				return
			}
			fl.Flush()
			last = ev.Seq
			if ev.Terminal() {
				return
			}
		}
	}
}

func writeEvent(w stdhttp.ResponseWriter, ev domain.EventRecord) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Seq, ev.State, b)
	return err
}
