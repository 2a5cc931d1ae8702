// Package swaggerkit assembles the OpenAPI document from module mutators and serves it with Swagger UI
package swaggerkit

import (
	"net/http"

	phttp "ruleexplain/internal/platform/net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

const docsPath = "/api/docs"

// Mount serves the UI under /api/docs/ and the document at /api/docs/doc.json; disabled mounts nothing
func Mount(r phttp.Router, enabled bool) {
	if !enabled {
		return
	}
	r.Get(docsPath, func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, docsPath+"/", http.StatusPermanentRedirect)
	})
	// rebuilt per request so late Register calls show up
	r.Get(docsPath+"/doc.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		phttp.JSON(w, http.StatusOK, Spec())
	})
	r.Handle(docsPath+"/*", httpSwagger.Handler(
		httpSwagger.InstanceName("api"),
		httpSwagger.URL(docsPath+"/doc.json"),
	))
}
