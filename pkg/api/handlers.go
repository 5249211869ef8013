package api

import (
	"log/slog"
	"sync"

	"github.com/adfharrison1/restodb/pkg/audit"
	"github.com/adfharrison1/restodb/pkg/converge"
	"github.com/adfharrison1/restodb/pkg/domain"
	"github.com/adfharrison1/restodb/pkg/registry"
)

// Handler serves the admin API over one store and one declaration.
type Handler struct {
	gateway  domain.Gateway
	registry *registry.Registry
	engine   *converge.Engine
	auditor  *audit.Auditor
	logger   *slog.Logger

	// runs serialises convergence requests
	runs sync.Mutex
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets the logger for request failures.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler creates a handler. The gateway is owned by the caller.
func NewHandler(gw domain.Gateway, reg *registry.Registry, engine *converge.Engine, auditor *audit.Auditor, opts ...HandlerOption) *Handler {
	h := &Handler{
		gateway:  gw,
		registry: reg,
		engine:   engine,
		auditor:  auditor,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}
