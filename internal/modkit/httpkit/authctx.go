package httpkit

import (
	"net/http"

	perrs "ruleexplain/internal/platform/errors"
	pnet "ruleexplain/internal/platform/net"
)

// User is the operator Auth resolved for r; unauthorized on open routes
func User(r *http.Request) (string, error) {
	if op := pnet.Operator(r.Context()); op != "" {
		return op, nil
	}
	return "", perrs.Unauthorizedf("missing bearer token")
}
