// Package api provides the HTTP API for the application
package api

import (
	"github.com/prometheus/client_golang/prometheus"

	"ruleexplain/internal/platform/config"
	"ruleexplain/internal/platform/logger"
	"ruleexplain/internal/platform/metrics"
	phttp "ruleexplain/internal/platform/net/http"
	"ruleexplain/internal/platform/net/middleware"
	"ruleexplain/internal/platform/ratelimit"
	"ruleexplain/internal/platform/store"

	"ruleexplain/internal/modkit"
	"ruleexplain/internal/modkit/httpkit"
	"ruleexplain/internal/modkit/swaggerkit"

	metamod "ruleexplain/internal/services/api/meta/module"
	explainmod "ruleexplain/internal/services/explain/module"
	explainsvc "ruleexplain/internal/services/explain/service"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	EnableSwagger  bool
	EnableProfiler bool

	// Chain is the network connection reported by meta endpoints; may be nil
	Chain modkit.Chain
	// Explain runs submissions; required
	Explain explainsvc.Service
	// Auth guards explanation writes; nil leaves them open
	Auth middleware.AuthPort
	// Registry receives HTTP metrics and is served on /metrics; nil disables both
	Registry *prometheus.Registry
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) {
	// shared deps for modules
	deps := modkit.Deps{
		Cfg:   opt.Config,
		Chain: opt.Chain,
	}
	pg := modkit.Check{Name: "pg"}
	if opt.Store != nil && opt.Store.PG != nil {
		pg.Ping = opt.Store.Guard
	}
	chain := modkit.Check{Name: "chain"}
	if opt.Chain != nil {
		chain.Ping = opt.Chain.Ping
	}
	deps.Checks = []modkit.Check{pg, chain}
	if opt.Logger != nil {
		deps.Log = *opt.Logger
	}

	mods := []modkit.Module{
		metamod.New(deps, modkit.WithMiddlewares(httpkit.Timeout()), modkit.WithSwagger(opt.EnableSwagger)),
		explainmod.New(deps,
			modkit.WithPorts(explainmod.Ports{Service: opt.Explain, Auth: opt.Auth}),
			modkit.WithSwagger(opt.EnableSwagger),
		),
	}

	stack := httpkit.CommonStack(opt.Config.MayCSV("CORS_ORIGINS", nil))
	if opt.Registry != nil {
		stack = append(stack, metrics.NewHTTP(opt.Registry).Middleware)
		r.Handle("/metrics", metrics.Handler(opt.Registry))
	}
	// per client limiting; zero RPS leaves it off
	if lim := ratelimit.FromConfig(opt.Config.Prefix("RATE_")); lim != nil {
		stack = append(stack, middleware.RateLimit(lim, phttp.JSON))
	}

	// versioned API with a common middleware stack
	httpkit.MountAPI(r, "v1", stack, func(api httpkit.Router) {
		// Swagger + profiler
		swaggerkit.Mount(r, opt.EnableSwagger)
		phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

		for _, m := range mods {
			m.MountRoutes(api)
		}
	})
}
