package httpkit

import (
	"net/http"
	"strings"
)

// MountUnder mounts a subrouter at prefix behind mw
func MountUnder(r Router, prefix string, mw []func(http.Handler) http.Handler, mount func(Router)) {
	r.Route(prefix, func(sub Router) {
		if len(mw) > 0 {
			sub.Use(mw...)
		}
		mount(sub)
	})
}

// MountAPI mounts a subrouter under /api/{version}
//
//	httpkit.MountAPI(r, "v1", httpkit.CommonStack(nil), func(api httpkit.Router) {
//		explain.MountRoutes(api)
//	})
func MountAPI(r Router, version string, mw []func(http.Handler) http.Handler, mount func(Router)) {
	MountUnder(r, "/api/"+strings.Trim(version, "/"), mw, mount)
}
