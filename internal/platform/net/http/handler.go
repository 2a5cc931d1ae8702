package http

import (
	stdhttp "net/http"

	"ruleexplain/internal/platform/net/http/bind"
)

// result turns a handler's return into a Response; a returned Response passes through as is
func result(out any, err error) Response {
	if err != nil {
		return Error(err)
	}
	if resp, ok := out.(Response); ok {
		return resp
	}
	return OK(out)
}

// Call adapts a handler without a request body
func Call(fn func(*stdhttp.Request) (any, error)) Handler {
	return Handle(func(r *stdhttp.Request) Response { return result(fn(r)) })
}

// JSONBody adapts a handler whose body binds and validates into T
func JSONBody[T any](fn func(*stdhttp.Request, T) (any, error)) Handler {
	return Handle(func(r *stdhttp.Request) Response {
		in, err := bind.ParseJSON[T](r)
		if err != nil {
			return Error(err)
		}
		return result(fn(r, in))
	})
}
