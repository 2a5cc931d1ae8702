package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ruleexplain/internal/platform/logger"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := *logger.Get()
	t.Cleanup(func() { logger.Replace(prev) })
	var buf bytes.Buffer
	logger.Init(logger.Options{Level: "debug", Format: "json", Writer: &buf})
	return &buf
}

func TestAccessLog(t *testing.T) {
	cases := []struct {
		name      string
		slow      time.Duration
		handler   http.HandlerFunc
		wantLevel string
		wantCode  float64
		wantBytes float64
	}{
		{
			name:      "plain write defaults to 200",
			handler:   func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("hi")); _, _ = w.Write([]byte("there")) },
			wantLevel: "info", wantCode: 200, wantBytes: 7,
		},
		{
			name:      "nothing written",
			handler:   func(http.ResponseWriter, *http.Request) {},
			wantLevel: "info", wantCode: 200,
		},
		{
			name:      "slow",
			slow:      time.Nanosecond,
			handler:   func(w http.ResponseWriter, _ *http.Request) { time.Sleep(time.Millisecond); w.WriteHeader(http.StatusCreated) },
			wantLevel: "warn", wantCode: 201,
		},
		{
			name:      "server error",
			handler:   func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			wantLevel: "error", wantCode: 502,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := captureLog(t)
			h := AccessLog(AccessLogOptions{Slow: tc.slow})(tc.handler)
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/explanations", nil))

			var line map[string]any
			if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
				t.Fatalf("log line: %v %q", err, buf.String())
			}
			if line["level"] != tc.wantLevel || line["status"] != tc.wantCode || line["bytes"] != tc.wantBytes {
				t.Fatalf("unexpected line %v", line)
			}
			if line["path"] != "/api/v1/explanations" || line["message"] != "request done" {
				t.Fatalf("unexpected line %v", line)
			}
		})
	}
}

func TestAccessLog_KeepsFlusher(t *testing.T) {
	captureLog(t)
	h := AccessLog(AccessLogOptions{})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(": keep-alive\n\n"))
		w.(http.Flusher).Flush()
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream", nil))
	if !rec.Flushed || !strings.HasPrefix(rec.Body.String(), ": keep-alive") {
		t.Fatalf("stream did not flush through the log wrapper")
	}
}
