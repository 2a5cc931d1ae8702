package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	perr "ruleexplain/internal/platform/errors"
	pnet "ruleexplain/internal/platform/net"
	"ruleexplain/internal/platform/testkit"
)

func TestRecover_WritesEnvelope(t *testing.T) {
	h := RequestID(Recover(writeJSON)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil map")
	})))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/explanations/abc", nil)
	req.Header.Set("X-Request-Id", "req-9")
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d", rec.Code)
	}
	var env pnet.Envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatal(err)
	}
	if env.Code != perr.ErrorCodePanic || env.RequestID != "req-9" || env.Error != "internal error" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestRecover_PassesThrough(t *testing.T) {
	h := Recover(writeJSON)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestRecover_ReraisesAbort(t *testing.T) {
	h := Recover(writeJSON)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	testkit.MustPanic(t, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
