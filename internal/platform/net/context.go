// Package net carries request scoped values and the JSON envelope shared by transports
package net

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type ctxKey struct{}

var operatorKey ctxKey

// WithRequest stores reqID where chi's RequestID middleware would
func WithRequest(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		return ctx
	}
	return context.WithValue(ctx, chimw.RequestIDKey, reqID)
}

// RequestID is the request id on ctx or ""
func RequestID(ctx context.Context) string { return chimw.GetReqID(ctx) }

// WithOperator stores the authenticated operator name
func WithOperator(ctx context.Context, op string) context.Context {
	if op == "" {
		return ctx
	}
	return context.WithValue(ctx, operatorKey, op)
}

// Operator is the authenticated operator on ctx or ""
func Operator(ctx context.Context) string {
	op, _ := ctx.Value(operatorKey).(string)
	return op
}
