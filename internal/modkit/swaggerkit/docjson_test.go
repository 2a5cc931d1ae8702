package swaggerkit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	phttp "ruleexplain/internal/platform/net/http"
	"ruleexplain/internal/platform/testkit"
)

func TestSpec_MutatorsAndDefaults(t *testing.T) {
	Register("zz-test", func(spec map[string]any) {
		spec["paths"].(map[string]any)["/things"] = map[string]any{
			"get": map[string]any{
				"security":  BearerAuth(spec),
				"responses": map[string]any{"200": map[string]any{"description": "ok"}},
			},
		}
	})
	t.Cleanup(func() { Register("zz-test", nil) })

	spec := Spec()
	if spec["openapi"] != "3.0.3" {
		t.Fatalf("openapi = %v", spec["openapi"])
	}
	op := spec["paths"].(map[string]any)["/things"].(map[string]any)["get"].(map[string]any)
	resps := op["responses"].(map[string]any)
	for _, code := range []string{"200", "400", "500"} {
		if _, ok := resps[code]; !ok {
			t.Fatalf("missing %s response", code)
		}
	}
	comps := spec["components"].(map[string]any)
	if _, ok := comps["schemas"].(map[string]any)["ErrorResponse"]; !ok {
		t.Fatal("ErrorResponse schema missing")
	}
	if _, ok := comps["securitySchemes"].(map[string]any)["bearerAuth"]; !ok {
		t.Fatal("bearerAuth scheme missing")
	}
}

func TestSpec_TitleSuffix(t *testing.T) {
	t.Setenv("CORE_API_DOCS_TITLE_SUFFIX", "(staging)")
	info := Spec()["info"].(map[string]any)
	if info["title"] != "ruleexplain API (staging)" {
		t.Fatalf("title = %v", info["title"])
	}
}

func TestMount(t *testing.T) {
	mux := chi.NewRouter()
	Mount(phttp.AdaptChi(mux), true)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/docs/doc.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("doc.json status %d", rec.Code)
	}
	var spec map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &spec); err != nil {
		t.Fatalf("doc.json not json: %v", err)
	}
	testkit.MustContain(t, rec.Header().Get("Content-Type"), "application/json")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/docs", nil))
	if rec.Code != http.StatusPermanentRedirect {
		t.Fatalf("redirect status %d", rec.Code)
	}
}

func TestMount_Disabled(t *testing.T) {
	mux := chi.NewRouter()
	Mount(phttp.AdaptChi(mux), false)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/docs/doc.json", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("want 404 got %d", rec.Code)
	}
}
