// Package module wires clause explanations into the API using modkit
package module

import (
	modkit "ruleexplain/internal/modkit"
	"ruleexplain/internal/modkit/httpkit"
	"ruleexplain/internal/modkit/swaggerkit"
	explainhttp "ruleexplain/internal/services/explain/http"
)

// Module implements the modkit.Module interface
type Module struct {
	deps  modkit.Deps
	b     modkit.Built
	ports Ports
}

// New constructs the explain module; the service is injected with modkit.WithPorts(Ports{...})
// since it owns a chain connection that main dials and closes
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("explain"), modkit.WithPrefix("/explanations")}, opts...)...)

	p, ok := b.Ports.(Ports)
	if !ok || p.Service == nil {
		panic("explain module requires Ports with a Service")
	}
	if b.SwaggerOn {
		swaggerkit.Register(b.Name, explainhttp.Doc(b.Prefix, p.Auth != nil))
	}
	return &Module{deps: deps, b: b, ports: p}
}

// MountRoutes implements the modkit.Module interface
func (m *Module) MountRoutes(r httpkit.Router) {
	m.b.Mount(r, func(rr httpkit.Router) {
		explainhttp.Register(rr, m.ports.Service, m.ports.Auth)
	})
}

// Name returns the module name
func (m *Module) Name() string { return m.b.Name }
