package server

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/swiper/internal/repositories"
	"github.com/desertthunder/swiper/internal/services"
)

// APIHandler serves the passthrough endpoints. Each request builds its own upstream client from its bearer token.
type APIHandler struct {
	services   services.ServiceFactory
	prefs      repositories.PreferenceStore
	identities *IdentityCache
	logger     *log.Logger
	metrics    *Metrics
}

// NewAPIHandler creates the passthrough endpoints handler.
func NewAPIHandler(factory services.ServiceFactory, prefs repositories.PreferenceStore, identities *IdentityCache, logger *log.Logger, metrics *Metrics) *APIHandler {
	return &APIHandler{
		services:   factory,
		prefs:      prefs,
		identities: identities,
		logger:     logger,
		metrics:    metrics,
	}
}

func (h *APIHandler) client(ctx context.Context) services.Service {
	return h.services.ForToken(GetToken(ctx))
}

// upstreamFailed logs err and counts it against operation.
func (h *APIHandler) upstreamFailed(ctx context.Context, operation string, err error) {
	h.logger.Error("upstream call failed", "operation", operation, "error", err, "request_id", GetRequestID(ctx))
	h.metrics.UpstreamFailed(operation)
}
