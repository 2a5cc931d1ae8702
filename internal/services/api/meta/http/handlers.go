// Package http serves the meta endpoints: liveness, readiness, build and network info
package http

import (
	"context"
	"net/http"
	"time"

	"ruleexplain/internal/core/version"
	"ruleexplain/internal/modkit"
	"ruleexplain/internal/modkit/httpkit"
	perr "ruleexplain/internal/platform/errors"
)

// readyTimeout bounds all dependency pings of one ready call
var readyTimeout = 2 * time.Second

// Deps are what the meta routes report on
type Deps struct {
	ServiceName string
	StartedAt   time.Time
	Chain       modkit.Chain
	Checks      []modkit.Check
}

// Register mounts the meta routes on r
func Register(r httpkit.Router, d Deps) {
	h := &handlers{deps: d}
	httpkit.Get(r, "/health", h.health)
	httpkit.Get(r, "/ready", h.ready)
	httpkit.Get(r, "/version", h.version)
	httpkit.Get(r, "/service", h.service)
	httpkit.Get(r, "/network", h.network)
}

type handlers struct{ deps Deps }

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

// HealthResponse says the process is up
type HealthResponse struct {
	OK      bool   `json:"ok"      example:"true"`
	Service string `json:"service" example:"ruleexplain-api"`
	Started string `json:"started" example:"2026-10-19T09:00:00Z"`
	Now     string `json:"now"     example:"2026-10-19T09:05:00Z"`
}

// ReadyCheck is the outcome of one dependency ping: ok, fail or skipped
type ReadyCheck struct {
	Name   string `json:"name"            example:"pg"`
	Status string `json:"status"          example:"ok"`
	Error  string `json:"error,omitempty" example:"pg: dial tcp 127.0.0.1:5432: connection refused"`
}

// ReadyResponse rolls the checks up: any fail is fail, any skipped is degraded
type ReadyResponse struct {
	Status string       `json:"status" example:"ok"`
	Checks []ReadyCheck `json:"checks"`
	Now    string       `json:"now"    example:"2026-10-19T09:05:00Z"`
}

// ServiceResponse is the service name and uptime in seconds
type ServiceResponse struct {
	Name    string `json:"name"    example:"ruleexplain-api"`
	Started string `json:"started" example:"2026-10-19T09:00:00Z"`
	Uptime  int64  `json:"uptime"  example:"300"`
}

// NetworkResponse reports the chain the service submits to
type NetworkResponse struct {
	modkit.ChainInfo
	Build version.BuildInfo `json:"build"`
}

// @Summary Liveness
// @Tags Meta
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /meta/health [get]
func (h *handlers) health(*http.Request) (any, error) {
	return HealthResponse{
		OK:      true,
		Service: h.deps.ServiceName,
		Started: stamp(h.deps.StartedAt),
		Now:     stamp(time.Now()),
	}, nil
}

// @Summary Readiness of postgres and the chain connection
// @Tags Meta
// @Produce json
// @Success 200 {object} ReadyResponse
// @Router /meta/ready [get]
func (h *handlers) ready(r *http.Request) (any, error) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	out := ReadyResponse{Status: "ok", Checks: make([]ReadyCheck, 0, len(h.deps.Checks))}
	for _, c := range h.deps.Checks {
		rc := ReadyCheck{Name: c.Name, Status: "ok"}
		switch {
		case c.Ping == nil:
			rc.Status = "skipped"
			if out.Status == "ok" {
				out.Status = "degraded"
			}
		default:
			if err := c.Ping(ctx); err != nil {
				rc.Status, rc.Error = "fail", err.Error()
				out.Status = "fail"
			}
		}
		out.Checks = append(out.Checks, rc)
	}
	out.Now = stamp(time.Now())
	return out, nil
}

// @Summary Build information
// @Tags Meta
// @Produce json
// @Success 200 {object} version.BuildInfo
// @Router /meta/version [get]
func (h *handlers) version(*http.Request) (any, error) {
	return version.Info(h.deps.ServiceName), nil
}

// @Summary Service name and uptime
// @Tags Meta
// @Produce json
// @Success 200 {object} ServiceResponse
// @Router /meta/service [get]
func (h *handlers) service(*http.Request) (any, error) {
	return ServiceResponse{
		Name:    h.deps.ServiceName,
		Started: stamp(h.deps.StartedAt),
		Uptime:  int64(time.Since(h.deps.StartedAt) / time.Second),
	}, nil
}

// @Summary Network, contract and signer the service submits with
// @Tags Meta
// @Produce json
// @Success 200 {object} NetworkResponse
// @Failure 404 {object} httpkit.Envelope "no chain configured"
// @Router /meta/network [get]
func (h *handlers) network(*http.Request) (any, error) {
	if h.deps.Chain == nil {
		return nil, perr.NotFoundf("no chain configured")
	}
	return NetworkResponse{
		ChainInfo: h.deps.Chain.Info(),
		Build:     version.Info(h.deps.ServiceName),
	}, nil
}
