package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ideaforge/engine/api"
	"github.com/ideaforge/engine/llm"
	"github.com/ideaforge/engine/review"
)

// HealthHandler exposes per-provider and review-registry health probes
// (§4.8, §6 "health endpoints per provider and for the review registry").
type HealthHandler struct {
	pool    *llm.Pool
	reviews *review.Registry
	logger  *zap.Logger
}

func NewHealthHandler(pool *llm.Pool, reviews *review.Registry, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{pool: pool, reviews: reviews, logger: logger.With(zap.String("component", "health_handler"))}
}

// ListProviders handles GET /health/providers: probes every registered
// provider. A failing probe is informational only (§4.1); it never removes
// the provider from the registry.
func (h *HealthHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	names := h.pool.Names()
	views := make([]api.ProviderHealthView, 0, len(names))
	for _, name := range names {
		status, err := h.pool.HealthCheck(r.Context(), name)
		view := api.ProviderHealthView{Provider: name}
		if err != nil {
			view.Error = err.Error()
		} else {
			view.Healthy = status.Healthy
			view.LatencyMs = status.Latency.Milliseconds()
			view.CheckedAt = status.CheckedAt
			view.Error = status.Error
		}
		views = append(views, view)
	}
	WriteSuccess(w, views)
}

// Provider handles GET /health/providers/{name}.
func (h *HealthHandler) Provider(w http.ResponseWriter, r *http.Request, name string) {
	status, err := h.pool.HealthCheck(r.Context(), name)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.ProviderHealthView{
		Provider:  name,
		Healthy:   status.Healthy,
		LatencyMs: status.Latency.Milliseconds(),
		CheckedAt: status.CheckedAt,
		Error:     status.Error,
	})
}

// Review handles GET /health/review: a lightweight probe of the review
// registry's durable store. Listing pending reviews touches the same store
// path every Start/Decide call depends on, so a failure here means the
// pipeline can't gate on review decisions at all.
func (h *HealthHandler) Review(w http.ResponseWriter, r *http.Request) {
	pending, err := h.reviews.ListPending(r.Context())
	checkedAt := time.Now().UTC()
	if err != nil {
		WriteSuccess(w, api.ReviewRegistryHealthView{
			Healthy:   false,
			CheckedAt: checkedAt,
			Error:     err.Error(),
		})
		return
	}
	WriteSuccess(w, api.ReviewRegistryHealthView{
		Healthy:      true,
		PendingCount: len(pending),
		CheckedAt:    checkedAt,
	})
}
