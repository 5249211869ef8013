package api

import (
	"net/http"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HandleHealth reports whether the store answers a collection listing.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := h.gateway.ListCollections(r.Context()); err != nil {
		h.logger.Warn("api.health.degraded", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Message: "restodb is running"})
}
