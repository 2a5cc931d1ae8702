package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	perr "ruleexplain/internal/platform/errors"
	"ruleexplain/internal/platform/logger"
	pnet "ruleexplain/internal/platform/net"
)

// Recover turns a handler panic into a 500 envelope and logs the stack
// http.ErrAbortHandler is re-raised so net/http can drop the connection quietly
func Recover(write func(w http.ResponseWriter, status int, body any)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}
				logger.C(r.Context()).Error().
					Interface("panic", v).
					Str("stack", string(debug.Stack())).
					Msg("panic recovered")

				status, body := pnet.Failure(perr.PanicErrf("internal error"), pnet.RequestID(r.Context()))
				write(w, status, body)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
