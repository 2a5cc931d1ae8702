package bind

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	perr "ruleexplain/internal/platform/errors"
)

type clause struct {
	Text  string `json:"text" validate:"required,notblank,max=12"`
	Notes string `json:"notes,omitempty" validate:"omitempty,min=3"`
}

func post(body io.Reader) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/explanations", body)
}

func TestParseJSON(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		code    perr.ErrorCode
		field   string
		message string
	}{
		{name: "ok", body: `{"text":"pay rent"}`},
		{name: "empty", body: ``, code: perr.ErrorCodeJSON, message: "empty body"},
		{name: "malformed", body: `{"text":`, code: perr.ErrorCodeJSON},
		{name: "unknown field", body: `{"text":"x","extra":1}`, code: perr.ErrorCodeJSON},
		{name: "trailing", body: `{"text":"x"}{"text":"y"}`, code: perr.ErrorCodeJSON, message: "unexpected trailing data"},
		{name: "missing", body: `{}`, code: perr.ErrorCodeValidation, field: "text", message: "text is a required field"},
		{name: "blank", body: `{"text":"   "}`, code: perr.ErrorCodeValidation, field: "text", message: "text must not be blank"},
		{name: "too long", body: `{"text":"` + strings.Repeat("é", 13) + `"}`, code: perr.ErrorCodeValidation, field: "text", message: "text must be at most 12"},
		{name: "short min", body: `{"text":"x","notes":"ab"}`, code: perr.ErrorCodeValidation, field: "notes", message: "notes must be at least 3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseJSON[clause](post(strings.NewReader(tc.body)))
			if tc.code == perr.ErrorCodeUnknown {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got.Text != "pay rent" {
					t.Fatalf("got %+v", got)
				}
				return
			}
			if !perr.IsCode(err, tc.code) {
				t.Fatalf("code = %v (%v), want %v", perr.CodeOf(err), err, tc.code)
			}
			w := perr.WireFrom(err)
			if w.Field != tc.field {
				t.Fatalf("field = %q, want %q", w.Field, tc.field)
			}
			if tc.message != "" && w.Message != tc.message {
				t.Fatalf("message = %q, want %q", w.Message, tc.message)
			}
		})
	}
}

func TestParseJSON_RunesNotBytes(t *testing.T) {
	// 12 two-byte runes fit max=12
	if _, err := ParseJSON[clause](post(strings.NewReader(`{"text":"` + strings.Repeat("é", 12) + `"}`))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseJSON_NilBody(t *testing.T) {
	r := post(nil)
	r.Body = nil
	if _, err := ParseJSON[clause](r); !perr.IsCode(err, perr.ErrorCodeJSON) {
		t.Fatalf("want JSON error, got %v", err)
	}
}

func TestParseJSON_Oversized(t *testing.T) {
	body := `{"text":"` + strings.Repeat("a", MaxBody) + `"}`
	if _, err := ParseJSON[clause](post(strings.NewReader(body))); !perr.IsCode(err, perr.ErrorCodeJSON) {
		t.Fatalf("want JSON error for an oversized body, got %v", err)
	}
}

func TestStruct_NonStruct(t *testing.T) {
	if err := Struct(42); !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
}
