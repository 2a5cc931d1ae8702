package http

import "ruleexplain/internal/modkit/swaggerkit"

// Doc describes the meta endpoints mounted under prefix
func Doc(prefix string) swaggerkit.SpecMutator {
	return func(spec map[string]any) {
		paths := spec["paths"].(map[string]any)
		for path, summary := range map[string]string{
			"/health":  "Liveness",
			"/ready":   "Readiness of postgres and the chain connection",
			"/version": "Build information",
			"/service": "Service name and uptime",
			"/network": "Connected network, contract and signer",
		} {
			paths[prefix+path] = map[string]any{
				"get": map[string]any{
					"summary":   summary,
					"tags":      []any{"Meta"},
					"responses": map[string]any{"200": map[string]any{"description": "ok"}},
				},
			}
		}
	}
}
