package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ideaforge/engine/api"
	"github.com/ideaforge/engine/pipeline"
)

// ProgressHandler exposes the Pipeline Coordinator (C7) at the boundary.
type ProgressHandler struct {
	coordinator *pipeline.Coordinator
	logger      *zap.Logger
}

func NewProgressHandler(coordinator *pipeline.Coordinator, logger *zap.Logger) *ProgressHandler {
	return &ProgressHandler{coordinator: coordinator, logger: logger.With(zap.String("component", "progress_handler"))}
}

// Progress handles GET /project/{id}/progress.
func (h *ProgressHandler) Progress(w http.ResponseWriter, r *http.Request, rawProjectID string) {
	projectID, ok := parseID(w, rawProjectID, h.logger)
	if !ok {
		return
	}
	stages, err := h.coordinator.Progress(r.Context(), projectID)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	out := api.ProgressResponse{Stages: make(map[string]api.StageProgressView, len(stages))}
	for stage, counts := range stages {
		out.Stages[string(stage)] = api.StageProgressView{
			Total:    counts.Total,
			Approved: counts.Approved,
			Pending:  counts.Pending,
			Failed:   counts.Failed,
		}
	}
	WriteSuccess(w, out)
}
