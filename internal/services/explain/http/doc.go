package http

import "ruleexplain/internal/modkit/swaggerkit"

// Doc describes the explanation endpoints mounted under prefix
// secured marks submit and cancel as bearer protected
func Doc(prefix string, secured bool) swaggerkit.SpecMutator {
	return func(spec map[string]any) {
		schemas := swaggerkit.Components(spec)
		schemas["SubmitInput"] = object(map[string]any{
			"text": map[string]any{"type": "string", "maxLength": 8000},
		}, "text")
		schemas["Submission"] = object(map[string]any{
			"id":           str(),
			"key":          str(),
			"text":         str(),
			"state":        states(),
			"attempt":      integer(),
			"max_attempts": integer(),
			"result":       str(),
			"reason":       str(),
			"message":      str(),
			"tx_hash":      str(),
			"signer":       str(),
			"collisions":   map[string]any{"type": "array", "items": str()},
			"created_at":   map[string]any{"type": "string", "format": "date-time"},
			"updated_at":   map[string]any{"type": "string", "format": "date-time"},
		})
		schemas["EventRecord"] = object(map[string]any{
			"seq":          integer(),
			"state":        states(),
			"attempt":      integer(),
			"max_attempts": integer(),
			"message":      str(),
			"result":       str(),
			"reason":       str(),
			"at":           map[string]any{"type": "string", "format": "date-time"},
		})
		schemas["KeyPreview"] = object(map[string]any{
			"key":        str(),
			"runes":      integer(),
			"truncated":  map[string]any{"type": "boolean"},
			"cleaned":    map[string]any{"type": "boolean"},
			"collisions": map[string]any{"type": "array", "items": str()},
		})

		var security []any
		if secured {
			security = swaggerkit.BearerAuth(spec)
		}
		idParam := []any{map[string]any{"name": "id", "in": "path", "required": true, "schema": str()}}

		paths := spec["paths"].(map[string]any)
		paths[prefix] = map[string]any{
			"post": op("Submit a clause for explanation", security, nil,
				map[string]any{
					"required": true,
					"content":  map[string]any{"application/json": map[string]any{"schema": ref("SubmitInput")}},
				},
				map[string]any{"201": jsonResp("accepted", ref("Submission")), "409": plain("a submission is already in flight")}),
			"get": op("Most recent submissions", nil,
				[]any{map[string]any{"name": "limit", "in": "query", "schema": integer()}}, nil,
				map[string]any{"200": jsonResp("ok", array("Submission"))}),
		}
		paths[prefix+"/key"] = map[string]any{
			"get": op("Preview the lookup key a clause is stored under", nil,
				[]any{map[string]any{"name": "text", "in": "query", "required": true, "schema": str()}}, nil,
				map[string]any{"200": jsonResp("ok", ref("KeyPreview"))}),
		}
		paths[prefix+"/{id}"] = map[string]any{
			"get": op("Current status of a submission", nil, idParam, nil,
				map[string]any{"200": jsonResp("ok", ref("Submission")), "404": plain("not found")}),
		}
		paths[prefix+"/{id}/events"] = map[string]any{
			"get": op("Recorded status transitions of a submission", nil, idParam, nil,
				map[string]any{"200": jsonResp("ok", array("EventRecord"))}),
		}
		paths[prefix+"/{id}/stream"] = map[string]any{
			"get": op("Live status stream as server sent events", nil, idParam, nil,
				map[string]any{"200": map[string]any{
					"description": "one event per status transition",
					"content":     map[string]any{"text/event-stream": map[string]any{"schema": str()}},
				}}),
		}
		paths[prefix+"/{id}/cancel"] = map[string]any{
			"post": op("Stop polling for a running submission", security, idParam, nil,
				map[string]any{"200": jsonResp("ok", ref("Submission")), "409": plain("already finished")}),
		}
	}
}

func op(summary string, security, params []any, body, responses map[string]any) map[string]any {
	o := map[string]any{
		"summary":   summary,
		"tags":      []any{"Explanations"},
		"responses": responses,
	}
	if security != nil {
		o["security"] = security
	}
	if params != nil {
		o["parameters"] = params
	}
	if body != nil {
		o["requestBody"] = body
	}
	return o
}

func object(props map[string]any, required ...string) map[string]any {
	o := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		req := make([]any, len(required))
		for i, r := range required {
			req[i] = r
		}
		o["required"] = req
	}
	return o
}

func jsonResp(desc string, schema map[string]any) map[string]any {
	return map[string]any{
		"description": desc,
		"content":     map[string]any{"application/json": map[string]any{"schema": schema}},
	}
}

func plain(desc string) map[string]any {
	return jsonResp(desc, ref("ErrorResponse"))
}

func ref(name string) map[string]any { return map[string]any{"$ref": "#/components/schemas/" + name} }

func array(name string) map[string]any { return map[string]any{"type": "array", "items": ref(name)} }

func str() map[string]any { return map[string]any{"type": "string"} }

func integer() map[string]any { return map[string]any{"type": "integer"} }

func states() map[string]any {
	return map[string]any{"type": "string", "enum": []any{
		"idle", "awaiting_authorization", "submitting", "awaiting_acceptance",
		"polling", "succeeded", "timed_out", "failed",
	}}
}
