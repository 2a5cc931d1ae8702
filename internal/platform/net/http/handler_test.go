package http

import (
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"

	perr "ruleexplain/internal/platform/errors"
	pnet "ruleexplain/internal/platform/net"
)

type clause struct {
	Text string `json:"text" validate:"required"`
}

func run(t *testing.T, h Handler, body string) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	req := httptest.NewRequest(stdhttp.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	chimw.RequestID(stdhttp.HandlerFunc(h)).ServeHTTP(rec, req)
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return rec, env
}

func TestCall(t *testing.T) {
	cases := []struct {
		name   string
		fn     func(*stdhttp.Request) (any, error)
		status int
		code   perr.ErrorCode
		msg    string
	}{
		{"value is 200", func(*stdhttp.Request) (any, error) { return "ok", nil }, stdhttp.StatusOK, perr.ErrorCodeUnknown, ""},
		{"response passes through", func(*stdhttp.Request) (any, error) { return Created("new"), nil }, stdhttp.StatusCreated, perr.ErrorCodeUnknown, ""},
		{"typed error", func(*stdhttp.Request) (any, error) { return nil, perr.NotFoundf("no such submission") }, stdhttp.StatusNotFound, perr.ErrorCodeNotFound, "no such submission"},
		{"error response", func(*stdhttp.Request) (any, error) { return Error(perr.Conflictf("busy")), nil }, stdhttp.StatusConflict, perr.ErrorCodeConflict, "busy"},
		{"foreign error", func(*stdhttp.Request) (any, error) { return nil, errors.New("boom") }, stdhttp.StatusInternalServerError, perr.ErrorCodeUnknown, "boom"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := run(t, Call(tc.fn), "")
			if rec.Code != tc.status || env.StatusCode != tc.status {
				t.Fatalf("status = %d envelope %d want %d", rec.Code, env.StatusCode, tc.status)
			}
			if env.Code != tc.code || env.Error != tc.msg {
				t.Fatalf("envelope = %+v", env)
			}
			if env.RequestID == "" {
				t.Fatal("request id missing")
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
				t.Fatalf("content type = %q", ct)
			}
		})
	}
}

func TestJSONBody(t *testing.T) {
	var got clause
	h := JSONBody(func(_ *stdhttp.Request, in clause) (any, error) {
		got = in
		return Created(in), nil
	})

	rec, env := run(t, h, `{"text":"The party shall indemnify."}`)
	if rec.Code != stdhttp.StatusCreated || got.Text != "The party shall indemnify." {
		t.Fatalf("status %d bound %+v", rec.Code, got)
	}
	if data, _ := env.Data.(map[string]any); data["text"] != got.Text {
		t.Fatalf("data = %#v", env.Data)
	}

	got = clause{}
	rec, env = run(t, h, `{}`)
	if rec.Code != stdhttp.StatusBadRequest || env.Field != "text" {
		t.Fatalf("status %d envelope %+v", rec.Code, env)
	}
	if got != (clause{}) {
		t.Fatal("handler ran on an invalid body")
	}
}

func TestRespondError_UsesRequestID(t *testing.T) {
	req := httptest.NewRequest(stdhttp.MethodGet, "/", nil)
	req = req.WithContext(pnet.WithRequest(req.Context(), "req-42"))
	rec := httptest.NewRecorder()
	RespondError(rec, req, perr.InvalidArgf("limit must be a non negative integer"))

	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if rec.Code != stdhttp.StatusUnprocessableEntity || env.RequestID != "req-42" || env.Data != nil {
		t.Fatalf("status %d envelope %+v", rec.Code, env)
	}
}
