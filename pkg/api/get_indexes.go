package api

import (
	"net/http"

	"github.com/adfharrison1/restodb/pkg/domain"
	"github.com/gorilla/mux"
)

// HandleListCollections lists the live collections.
func (h *Handler) HandleListCollections(w http.ResponseWriter, r *http.Request) {
	names, err := h.gateway.ListCollections(r.Context())
	if err != nil {
		h.logger.Error("api.collections.failed", "err", err)
		writeError(w, err)
		return
	}
	declared := make(map[string]bool)
	for _, c := range h.registry.DeclaredCollections() {
		declared[c.Name] = true
	}

	type collection struct {
		Name     string `json:"name"`
		Declared bool   `json:"declared"`
	}
	out := make([]collection, 0, len(names))
	for _, n := range names {
		out = append(out, collection{Name: n, Declared: declared[n]})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"collections": out, "count": len(out)})
}

// HandleGetIndexes lists a collection's live indexes and whether each
// matches its declaration.
func (h *Handler) HandleGetIndexes(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	indexes, err := h.gateway.ListIndexes(r.Context(), collName)
	if err != nil {
		h.logger.Error("api.indexes.failed", "collection", collName, "err", err)
		writeError(w, err)
		return
	}

	spec, declared := h.registry.Collection(collName)
	type index struct {
		Name   string                `json:"name"`
		Keys   string                `json:"keys"`
		Unique bool                  `json:"unique,omitempty"`
		Status string                `json:"status"`
		Live   domain.LiveIndexState `json:"live"`
	}
	out := make([]index, 0, len(indexes))
	for _, live := range indexes {
		status := "unmanaged"
		for _, d := range spec.Indexes {
			if d.Name != live.Name {
				continue
			}
			status = "drifted"
			if live.Matches(d) {
				status = "converged"
			}
		}
		if live.Name == domain.IDIndexName {
			status = "builtin"
		}
		out = append(out, index{Name: live.Name, Keys: live.Spec().KeySignature(), Unique: live.Unique, Status: status, Live: live})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"collection":  collName,
		"declared":    declared,
		"indexes":     out,
		"index_count": len(out),
	})
}
