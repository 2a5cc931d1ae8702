package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	pnet "ruleexplain/internal/platform/net"

	"github.com/rs/zerolog"
)

// capture installs a JSON root writing to the returned buffer until the test ends
func capture(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	prev := *Get()
	t.Cleanup(func() { Replace(prev) })

	var buf bytes.Buffer
	Init(Options{Level: level, Format: "json", Service: "ruleexplain-api", Writer: &buf})
	return &buf
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, l := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if l == "" {
			continue
		}
		m := map[string]any{}
		if err := json.Unmarshal([]byte(l), &m); err != nil {
			t.Fatalf("bad log line %q: %v", l, err)
		}
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":    zerolog.TraceLevel,
		" INFO ":   zerolog.InfoLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"":         zerolog.DebugLevel,
		"nonsense": zerolog.DebugLevel,
		"disabled": zerolog.Disabled,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestC_CarriesRequestAndOperator(t *testing.T) {
	buf := capture(t, "info")

	ctx := pnet.WithOperator(pnet.WithRequest(context.Background(), "req-1"), "ops")
	C(ctx).Info().Msg("submitted")
	C(context.Background()).Info().Msg("bare")
	Named("explain").Debug().Msg("filtered")
	Named("explain").Warn().Msg("slow ledger")

	got := lines(t, buf)
	if len(got) != 3 {
		t.Fatalf("want 3 lines, got %d: %s", len(got), buf.String())
	}
	if got[0]["request_id"] != "req-1" || got[0]["operator"] != "ops" || got[0]["service"] != "ruleexplain-api" {
		t.Fatalf("request fields missing: %v", got[0])
	}
	if _, ok := got[1]["request_id"]; ok {
		t.Fatalf("bare context grew a request id: %v", got[1])
	}
	if got[2]["component"] != "explain" || got[2]["level"] != "warn" {
		t.Fatalf("named line = %v", got[2])
	}
}

func TestNew_Sampling(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Format: "json", Writer: &buf, SampleEvery: 3})
	for i := 0; i < 6; i++ {
		l.Info().Int("i", i).Msg("tick")
	}
	if n := strings.Count(buf.String(), "\n"); n != 2 {
		t.Fatalf("want 2 sampled lines, got %d", n)
	}
}

func TestNew_ConsoleAndCaller(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Format: "console", Writer: &buf, Component: "store", WithCaller: true})
	l.Info().Msg("opened")
	out := buf.String()
	for _, want := range []string{"opened", "component=", "store", "logger_test.go"} {
		if !strings.Contains(out, want) {
			t.Fatalf("console output %q missing %q", out, want)
		}
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("LOG_SERVICE", "ruleexplain")
	t.Setenv("LOG_CALLER", "yes")
	t.Setenv("LOG_SAMPLE_EVERY", "5")

	opt := FromEnv()
	if opt.Level != "warn" || opt.Format != "json" || opt.Service != "ruleexplain" || !opt.WithCaller || opt.SampleEvery != 5 {
		t.Fatalf("FromEnv = %+v", opt)
	}
}
