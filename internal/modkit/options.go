package modkit

import (
	"net/http"

	"ruleexplain/internal/modkit/httpkit"
	str "ruleexplain/internal/platform/strings"
)

// Option mutates the build state of a module
type Option func(*Built)

// Built is the resolved module configuration
type Built struct {
	Name      string
	Prefix    string
	Mw        []func(http.Handler) http.Handler
	Ports     any
	SwaggerOn bool
}

// Build applies opts in order; later options win
func Build(opts ...Option) Built {
	var b Built
	for _, o := range opts {
		o(&b)
	}
	b.Mw = append([]func(http.Handler) http.Handler(nil), b.Mw...)
	return b
}

// Mount registers routes under the module prefix behind its middlewares
// A module without a name or prefix is a wiring bug and panics
func (b Built) Mount(r httpkit.Router, register func(httpkit.Router)) {
	str.Required(b.Name, "module name")
	httpkit.MountUnder(r, str.RoutePrefix(b.Prefix), b.Mw, register)
}

// WithName sets the module name used in logs and docs
func WithName(name string) Option {
	return func(b *Built) { b.Name = name }
}

// WithPrefix mounts the module under a path prefix
func WithPrefix(prefix string) Option {
	return func(b *Built) { b.Prefix = prefix }
}

// WithMiddlewares appends per module middleware
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(b *Built) { b.Mw = append(b.Mw, mw...) }
}

// WithPorts injects the port set the module expects; the module owns the concrete type
func WithPorts[T any](p T) Option {
	return func(b *Built) { b.Ports = p }
}

// WithSwagger registers the module's paths with the served API document
func WithSwagger(enabled bool) Option {
	return func(b *Built) { b.SwaggerOn = enabled }
}
