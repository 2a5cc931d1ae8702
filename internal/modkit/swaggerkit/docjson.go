package swaggerkit

import (
	"sort"
	"sync"

	"ruleexplain/internal/core/version"
	"ruleexplain/internal/platform/config"
)

// SpecMutator lets modules add their paths and schemas to the served spec
type SpecMutator func(map[string]any)

var (
	mu       sync.Mutex
	mutators = map[string]SpecMutator{}
)

// Register stores a named spec mutator; registering a name again replaces it
func Register(name string, m SpecMutator) {
	mu.Lock()
	defer mu.Unlock()
	if m == nil {
		delete(mutators, name)
		return
	}
	mutators[name] = m
}

// Spec builds the OpenAPI document from the registered mutators
func Spec() map[string]any {
	bi := version.Info("ruleexplain-api")
	spec := map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":       "ruleexplain API",
			"version":     bi.Version,
			"description": "Submit legal clauses for plain-English explanation and follow their status",
		},
		"servers": []any{map[string]any{"url": "/api/v1"}},
		"paths":   map[string]any{},
	}

	cfg := config.New().Prefix("CORE_API_")
	if v := cfg.MayString("DOCS_TITLE_SUFFIX", ""); v != "" {
		info := spec["info"].(map[string]any)
		info["title"] = info["title"].(string) + " " + v
	}

	mu.Lock()
	names := make([]string, 0, len(mutators))
	for n := range mutators {
		names = append(names, n)
	}
	sort.Strings(names)
	ms := make([]SpecMutator, 0, len(names))
	for _, n := range names {
		ms = append(ms, mutators[n])
	}
	mu.Unlock()

	for _, m := range ms {
		m(spec)
	}

	ensureErrorResponseDefinition(spec)
	addDefaultResponse(spec, "500", errorResponse(500, "Internal Server Error", 1, "panic recovered"))
	addDefaultResponse(spec, "400", errorResponse(400, "Bad Request", 8, "text is required"))
	return spec
}

// Components returns the components.schemas map, creating it when missing
func Components(spec map[string]any) map[string]any {
	comps, ok := spec["components"].(map[string]any)
	if !ok {
		comps = map[string]any{}
		spec["components"] = comps
	}
	schemas, ok := comps["schemas"].(map[string]any)
	if !ok {
		schemas = map[string]any{}
		comps["schemas"] = schemas
	}
	return schemas
}

// BearerAuth declares the bearer scheme and returns the security requirement for an operation
func BearerAuth(spec map[string]any) []any {
	Components(spec)
	comps := spec["components"].(map[string]any)
	schemes, ok := comps["securitySchemes"].(map[string]any)
	if !ok {
		schemes = map[string]any{}
		comps["securitySchemes"] = schemes
	}
	schemes["bearerAuth"] = map[string]any{"type": "http", "scheme": "bearer"}
	return []any{map[string]any{"bearerAuth": []any{}}}
}

// ensureErrorResponseDefinition creates the error envelope model if missing
// kept minimal so it does not drift from the runtime wire
func ensureErrorResponseDefinition(spec map[string]any) {
	schemas := Components(spec)
	if _, ok := schemas["ErrorResponse"]; ok {
		return
	}
	schemas["ErrorResponse"] = map[string]any{
		"type":        "object",
		"description": "Standard error response",
		"properties": map[string]any{
			"status_code": map[string]any{"type": "integer", "format": "int32"},
			"status":      map[string]any{"type": "string"},
			"code":        map[string]any{"type": "integer", "format": "int32"},
			"error":       map[string]any{"type": "string"},
			"request_id":  map[string]any{"type": "string"},
		},
		"required": []any{"status_code", "status"},
	}
}

func errorResponse(status int, text string, code int, msg string) map[string]any {
	return map[string]any{
		"description": text,
		"content": map[string]any{
			"application/json": map[string]any{
				"schema": map[string]any{"$ref": "#/components/schemas/ErrorResponse"},
				"example": map[string]any{
					"status_code": status,
					"status":      text,
					"code":        code,
					"error":       msg,
					"request_id":  "579f33bf50b1/abc-000001",
				},
			},
		},
	}
}

// addDefaultResponse walks every operation and injects resp under status if absent
func addDefaultResponse(spec map[string]any, status string, resp map[string]any) {
	paths, ok := spec["paths"].(map[string]any)
	if !ok {
		return
	}
	for _, p := range paths {
		node, ok := p.(map[string]any)
		if !ok {
			continue
		}
		for _, opAny := range node {
			op, ok := opAny.(map[string]any)
			if !ok {
				continue
			}
			responses, ok := op["responses"].(map[string]any)
			if !ok {
				responses = map[string]any{}
				op["responses"] = responses
			}
			if _, exists := responses[status]; !exists {
				responses[status] = resp
			}
		}
	}
}
