// Package module mounts the meta endpoints under /meta
package module

import (
	"time"

	"ruleexplain/internal/modkit"
	"ruleexplain/internal/modkit/httpkit"
	"ruleexplain/internal/modkit/swaggerkit"
	metahttp "ruleexplain/internal/services/api/meta/http"
)

// ServiceName is reported by the health, version and service endpoints
const ServiceName = "ruleexplain-api"

type metaModule struct {
	b    modkit.Built
	http metahttp.Deps
}

// New builds the meta module; StartedAt is taken now
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("meta"),
		modkit.WithPrefix("/meta"),
	}, opts...)...)
	if b.SwaggerOn {
		swaggerkit.Register(b.Name, metahttp.Doc(b.Prefix))
	}
	return &metaModule{b: b, http: metahttp.Deps{
		ServiceName: ServiceName,
		StartedAt:   time.Now(),
		Chain:       deps.Chain,
		Checks:      deps.Checks,
	}}
}

func (m *metaModule) MountRoutes(r httpkit.Router) {
	m.b.Mount(r, func(rr httpkit.Router) { metahttp.Register(rr, m.http) })
}

func (m *metaModule) Name() string { return m.b.Name }

func (m *metaModule) Ports() any { return nil }
