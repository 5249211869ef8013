package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/adfharrison1/restodb/pkg/domain"
)

// HandleAudit audits every declared query, the declared query named by the
// "query" parameter, or the QuerySpec in the request body.
func (h *Handler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("query"); name != "" {
		q, ok := h.registry.Query(name)
		if !ok {
			WriteJSONError(w, http.StatusNotFound, "no declared query named "+name)
			return
		}
		writeJSON(w, http.StatusOK, []domain.QueryPlanReport{h.auditor.Audit(r.Context(), h.gateway, q)})
		return
	}

	var q domain.QuerySpec
	err := json.NewDecoder(r.Body).Decode(&q)
	switch {
	case errors.Is(err, io.EOF):
		writeJSON(w, http.StatusOK, h.auditor.AuditAll(r.Context(), h.gateway, h.registry.Queries()))
		return
	case err != nil:
		WriteJSONError(w, http.StatusBadRequest, "invalid query body: "+err.Error())
		return
	case q.Collection == "":
		WriteJSONError(w, http.StatusBadRequest, "query collection is required")
		return
	}
	if q.Name == "" {
		q.Name = q.Shape()
	}
	writeJSON(w, http.StatusOK, []domain.QueryPlanReport{h.auditor.Audit(r.Context(), h.gateway, q)})
}
