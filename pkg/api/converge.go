package api

import (
	"net/http"
)

// HandlePlan computes the convergence plan without applying it.
func (h *Handler) HandlePlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.engine.Plan(r.Context(), h.gateway)
	if err != nil {
		h.logger.Error("api.plan.failed", "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// HandleConverge runs one convergence. Concurrent requests queue up.
// Non-fatal failures are part of a 200 response; fatal errors carry the
// partial result alongside the error.
func (h *Handler) HandleConverge(w http.ResponseWriter, r *http.Request) {
	h.runs.Lock()
	defer h.runs.Unlock()

	result, err := h.engine.Converge(r.Context(), h.gateway)
	if err != nil {
		h.logger.Error("api.converge.failed", "err", err)
		status := statusFor(err)
		writeJSON(w, status, map[string]interface{}{
			"error":   http.StatusText(status),
			"message": err.Error(),
			"code":    status,
			"result":  result,
		})
		return
	}
	writeJSON(w, http.StatusOK, result)
}
