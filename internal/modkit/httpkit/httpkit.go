// Package httpkit is what modules import to mount routes; it keeps internal/platform/net/http out of their imports
package httpkit

import (
	"net/http"

	phttp "ruleexplain/internal/platform/net/http"
)

type (
	// Router is the routing surface handed to modules
	Router = phttp.Router

	// Envelope documents reply bodies in route annotations
	Envelope = phttp.Envelope
)

// Created marks a handler result as 201
func Created(data any) phttp.Response { return phttp.Created(data) }

// Get mounts a bodiless handler under GET
func Get(r Router, path string, h func(*http.Request) (any, error)) {
	r.Get(path, phttp.Call(h))
}

// Post mounts a bodiless handler under POST
func Post(r Router, path string, h func(*http.Request) (any, error)) {
	r.Post(path, phttp.Call(h))
}

// PostJSON mounts a handler under POST whose body binds and validates into T
func PostJSON[T any](r Router, path string, h func(*http.Request, T) (any, error)) {
	r.Post(path, phttp.JSONBody(h))
}
