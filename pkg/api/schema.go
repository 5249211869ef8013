package api

import (
	"net/http"
)

// HandleSchema returns the declared collections and queries.
func (h *Handler) HandleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"collections":  h.registry.DeclaredCollections(),
		"queries":      h.registry.Queries(),
		"index_count":  h.registry.IndexCount(),
		"capabilities": h.registry.Capabilities(),
	})
}
