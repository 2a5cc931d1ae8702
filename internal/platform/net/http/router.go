package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler is a plain handler func; routes take these so modules need no chi import
type Handler = func(http.ResponseWriter, *http.Request)

// Router is the routing surface modules mount against
type Router interface {
	Get(path string, h Handler)
	Post(path string, h Handler)
	Handle(path string, h http.Handler)
	Use(mw ...func(http.Handler) http.Handler)
	Group(fn func(Router))
	Route(pattern string, fn func(Router))
}

// AdaptChi exposes a chi router, root or sub, as a Router
func AdaptChi(r chi.Router) Router { return chiRouter{r} }

type chiRouter struct{ r chi.Router }

func (c chiRouter) Get(p string, h Handler)                   { c.r.Get(p, h) }
func (c chiRouter) Post(p string, h Handler)                  { c.r.Post(p, h) }
func (c chiRouter) Handle(p string, h http.Handler)           { c.r.Handle(p, h) }
func (c chiRouter) Use(mw ...func(http.Handler) http.Handler) { c.r.Use(mw...) }

func (c chiRouter) Group(fn func(Router)) {
	c.r.Group(func(g chi.Router) { fn(chiRouter{g}) })
}

func (c chiRouter) Route(pattern string, fn func(Router)) {
	c.r.Route(pattern, func(s chi.Router) { fn(chiRouter{s}) })
}
