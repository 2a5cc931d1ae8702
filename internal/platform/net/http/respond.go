// Package http is the JSON transport: a chi backed Router, return-style handlers and the server
package http

import (
	"encoding/json"
	stdhttp "net/http"

	pnet "ruleexplain/internal/platform/net"
)

// Envelope is the body of every JSON reply
type Envelope = pnet.Envelope

// JSON writes v with status
func JSON(w stdhttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RespondError writes err as an error envelope
func RespondError(w stdhttp.ResponseWriter, r *stdhttp.Request, err error) {
	status, env := pnet.Failure(err, pnet.RequestID(r.Context()))
	JSON(w, status, env)
}

// Response is what return-style handlers produce; a zero Status means 200
type Response struct {
	Status int
	Body   any
	Err    error
}

// OK wraps data in a 200
func OK(data any) Response { return Response{Status: stdhttp.StatusOK, Body: data} }

// Created wraps data in a 201
func Created(data any) Response { return Response{Status: stdhttp.StatusCreated, Body: data} }

// Error maps err to its status when written
func Error(err error) Response { return Response{Err: err} }

func (resp Response) write(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if resp.Err != nil {
		RespondError(w, r, resp.Err)
		return
	}
	status := resp.Status
	if status == 0 {
		status = stdhttp.StatusOK
	}
	JSON(w, status, pnet.Success(status, resp.Body, pnet.RequestID(r.Context())))
}

// Handle adapts a Response returning func
func Handle(fn func(*stdhttp.Request) Response) Handler {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) { fn(r).write(w, r) }
}
