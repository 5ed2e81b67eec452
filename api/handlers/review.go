package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ideaforge/engine/api"
	"github.com/ideaforge/engine/review"
	"github.com/ideaforge/engine/types"
)

// ReviewHandler exposes the Review Registry (C3) at the boundary.
type ReviewHandler struct {
	registry *review.Registry
	logger   *zap.Logger
}

func NewReviewHandler(registry *review.Registry, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{registry: registry, logger: logger.With(zap.String("component", "review_handler"))}
}

// ListPending handles GET /review/pending.
func (h *ReviewHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.registry.ListPending(r.Context())
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	views := make([]api.ReviewView, 0, len(reviews))
	for _, rv := range reviews {
		views = append(views, toReviewView(rv))
	}
	WriteSuccess(w, views)
}

// Get handles GET /review/{id}.
func (h *ReviewHandler) Get(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID, h.logger)
	if !ok {
		return
	}
	rv, err := h.registry.Get(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, toReviewView(rv))
}

// Approve handles POST /review/{id}/approve.
func (h *ReviewHandler) Approve(w http.ResponseWriter, r *http.Request, rawID string) {
	h.decide(w, r, rawID, types.DecisionApproved)
}

// Reject handles POST /review/{id}/reject.
func (h *ReviewHandler) Reject(w http.ResponseWriter, r *http.Request, rawID string) {
	h.decide(w, r, rawID, types.DecisionRejected)
}

func (h *ReviewHandler) decide(w http.ResponseWriter, r *http.Request, rawID string, decision types.Decision) {
	id, ok := parseID(w, rawID, h.logger)
	if !ok {
		return
	}
	// Feedback is optional (§6); an empty body is a valid approve/reject.
	var body api.DecideRequest
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		WriteError(w, types.NewError(types.ArgumentInvalid, "read request body: %v", err), h.logger)
		return
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			WriteError(w, types.NewError(types.ArgumentInvalid, "invalid JSON body: %v", err), h.logger)
			return
		}
	}
	if err := h.registry.Decide(r.Context(), id, decision, body.Feedback); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	rv, err := h.registry.Get(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, toReviewView(rv))
}

func toReviewView(r *types.Review) api.ReviewView {
	return api.ReviewView{
		ID:          r.ID.String(),
		ArtifactID:  r.ArtifactID.String(),
		Stage:       string(r.Stage),
		SubmittedAt: r.SubmittedAt,
		Decision:    string(r.Decision),
		DecidedAt:   r.DecidedAt,
		Feedback:    r.Feedback,
	}
}
