package api

import "net/http"

// buildOpenAPIDoc returns an OpenAPI 3.1 document for the read-only API.
func buildOpenAPIDoc() map[string]any {
	secured := []any{map[string]any{"BearerAuth": []string{}}}
	get := func(summary string, responses map[string]any) map[string]any {
		return map[string]any{
			"get": map[string]any{
				"summary":   summary,
				"responses": responses,
				"security":  secured,
			},
		}
	}
	ok := map[string]any{"description": "OK"}
	unauthorized := map[string]any{"description": "Missing or invalid API key"}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "firstrun",
			"version": "1.0",
		},
		"paths": map[string]any{
			"/healthz": map[string]any{
				"get": map[string]any{
					"summary":   "Liveness",
					"responses": map[string]any{"200": ok},
				},
			},
			"/apps": get("List the adapter catalog", map[string]any{"200": ok, "401": unauthorized}),
			"/batches": get("List recent batches", map[string]any{
				"200": ok,
				"400": map[string]any{"description": "Bad limit"},
				"401": unauthorized,
			}),
			"/batches/{batchID}": get("Get one batch with its dismissed apps", map[string]any{
				"200": ok,
				"401": unauthorized,
				"404": map[string]any{"description": "Batch not found"},
			}),
			"/events": get("Server-sent batch events", map[string]any{"200": ok, "401": unauthorized}),
		},
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"BearerAuth": map[string]any{
					"type":   "http",
					"scheme": "bearer",
				},
			},
		},
	}
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, buildOpenAPIDoc())
}
