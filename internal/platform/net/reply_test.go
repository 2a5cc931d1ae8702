package net_test

import (
	"errors"
	"net/http"
	"testing"

	perr "ruleexplain/internal/platform/errors"
	pnet "ruleexplain/internal/platform/net"
)

func TestSuccess(t *testing.T) {
	env := pnet.Success(http.StatusCreated, map[string]string{"id": "sub-1"}, "req-1")
	if env.StatusCode != 201 || env.Status != "Created" || env.RequestID != "req-1" || env.Data == nil {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if env.Code != perr.ErrorCodeUnknown || env.Error != "" {
		t.Fatalf("success must not carry error fields: %+v", env)
	}
}

func TestFailure(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   perr.ErrorCode
		msg    string
		field  string
	}{
		{"conflict", perr.Conflictf("a submission is already in flight"), 409, perr.ErrorCodeConflict, "a submission is already in flight", ""},
		{"field", perr.WithField(perr.InvalidArgf("limit must be a non negative integer"), "limit"), 422, perr.ErrorCodeInvalidArgument, "limit must be a non negative integer", "limit"},
		{"cause hidden", perr.Wrap(errors.New("dial tcp: refused"), perr.ErrorCodeDB, "ledger unavailable"), 500, perr.ErrorCodeDB, "ledger unavailable", ""},
		{"plain error", errors.New("boom"), 500, perr.ErrorCodeUnknown, "boom", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, env := pnet.Failure(tc.err, "req-2")
			if status != tc.status || env.StatusCode != tc.status || env.Status != http.StatusText(tc.status) {
				t.Fatalf("status = %d / %+v, want %d", status, env, tc.status)
			}
			if env.Code != tc.code || env.Error != tc.msg || env.Field != tc.field || env.RequestID != "req-2" {
				t.Fatalf("unexpected envelope %+v", env)
			}
			if env.Data != nil {
				t.Fatal("failure must not carry data")
			}
		})
	}
}
