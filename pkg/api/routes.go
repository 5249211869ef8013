package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes registers all API routes with the given router. Metrics are
// served from gatherer when it is not nil.
func (h *Handler) RegisterRoutes(router *mux.Router, gatherer prometheus.Gatherer) {
	router.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
	router.HandleFunc("/schema", h.HandleSchema).Methods(http.MethodGet)

	router.HandleFunc("/collections", h.HandleListCollections).Methods(http.MethodGet)
	router.HandleFunc("/collections/{coll}/indexes", h.HandleGetIndexes).Methods(http.MethodGet)

	router.HandleFunc("/plan", h.HandlePlan).Methods(http.MethodGet)
	router.HandleFunc("/converge", h.HandleConverge).Methods(http.MethodPost)
	router.HandleFunc("/audit", h.HandleAudit).Methods(http.MethodPost)

	if gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
}
