package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ideaforge/engine/api"
	"github.com/ideaforge/engine/stages"
	"github.com/ideaforge/engine/types"
)

// StageHandler adapts one stages.Service onto the HTTP boundary for a
// single fixed Stage (§4.8): it shapes arguments and translates errors,
// and performs no business logic of its own.
type StageHandler struct {
	stage   types.Stage
	service *stages.Service
	logger  *zap.Logger
}

func NewStageHandler(stage types.Stage, service *stages.Service, logger *zap.Logger) *StageHandler {
	return &StageHandler{stage: stage, service: service, logger: logger.With(zap.String("component", "stage_handler"), zap.String("stage", string(stage)))}
}

// StartRequirements handles POST /requirements.
func (h *StageHandler) StartRequirements(w http.ResponseWriter, r *http.Request) {
	var body api.StartRequirementsRequest
	if err := DecodeJSONBody(w, r, &body, h.logger); err != nil {
		return
	}
	projectID, ok := parseID(w, body.ProjectID, h.logger)
	if !ok {
		return
	}
	res, err := h.service.Start(r.Context(), stages.StartRequest{
		Stage:             types.StageRequirements,
		ProjectID:         projectID,
		CallerPreferences: body.AdditionalContext,
		ExtraHints:        body.Constraints,
		ProviderName:      body.Provider,
	})
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.StartResponse{AnalysisID: res.ArtifactID.String(), ReviewID: res.ReviewID.String(), Status: string(types.StatusPendingReview)})
}

// StartPlanning handles POST /planning.
func (h *StageHandler) StartPlanning(w http.ResponseWriter, r *http.Request) {
	var body api.StartPlanningRequest
	if err := DecodeJSONBody(w, r, &body, h.logger); err != nil {
		return
	}
	parentID, ok := parseID(w, body.RequirementsAnalysisID, h.logger)
	if !ok {
		return
	}
	res, err := h.service.Start(r.Context(), stages.StartRequest{
		Stage:             types.StagePlanning,
		ProjectID:         h.projectIDOf(r),
		ParentArtifactID:  &parentID,
		CallerPreferences: body.Preferences,
		ProviderName:      body.Provider,
	})
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.StartResponse{PlanningID: res.ArtifactID.String(), ReviewID: res.ReviewID.String(), Status: string(types.StatusPendingReview)})
}

// StartStories handles POST /stories.
func (h *StageHandler) StartStories(w http.ResponseWriter, r *http.Request) {
	var body api.StartStoriesRequest
	if err := DecodeJSONBody(w, r, &body, h.logger); err != nil {
		return
	}
	parentID, ok := parseID(w, body.PlanningID, h.logger)
	if !ok {
		return
	}
	res, err := h.service.Start(r.Context(), stages.StartRequest{
		Stage:             types.StageStories,
		ProjectID:         h.projectIDOf(r),
		ParentArtifactID:  &parentID,
		CallerPreferences: body.StoryPreferences,
		ExtraHints:        body.AdditionalGuidance,
		ProviderName:      body.Provider,
	})
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.StartResponse{GenerationID: res.ArtifactID.String(), ReviewID: res.ReviewID.String(), Status: string(types.StatusPendingReview)})
}

// StartPrompt handles POST /prompt.
func (h *StageHandler) StartPrompt(w http.ResponseWriter, r *http.Request) {
	var body api.StartPromptRequest
	if err := DecodeJSONBody(w, r, &body, h.logger); err != nil {
		return
	}
	parentID, ok := parseID(w, body.StoryGenerationID, h.logger)
	if !ok {
		return
	}
	storyIndex := body.StoryIndex
	res, err := h.service.Start(r.Context(), stages.StartRequest{
		Stage:                types.StagePrompt,
		ProjectID:            h.projectIDOf(r),
		ParentArtifactID:     &parentID,
		StoryIndex:           &storyIndex,
		ExtraHints:           body.PromptStyle,
		TechnicalPreferences: body.TechnicalPreferences,
		ProviderName:         body.Provider,
	})
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.StartResponse{PromptID: res.ArtifactID.String(), ReviewID: res.ReviewID.String(), Status: string(types.StatusPendingReview)})
}

// Status handles GET /{stage}/{id}/status.
func (h *StageHandler) Status(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID, h.logger)
	if !ok {
		return
	}
	status, err := h.service.GetStatus(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.StatusResponse{Status: string(status)})
}

// Result handles GET /{stage}/{id}.
func (h *StageHandler) Result(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID, h.logger)
	if !ok {
		return
	}
	result, err := h.service.GetResult(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write(result)
}

// CanStart handles GET /{stage}/can-start/{parentId}.
func (h *StageHandler) CanStart(w http.ResponseWriter, r *http.Request, rawParentID string) {
	var parentID *types.ID
	if rawParentID != "" {
		id, ok := parseID(w, rawParentID, h.logger)
		if !ok {
			return
		}
		parentID = &id
	}
	ok := h.service.CanStart(r.Context(), h.stage, parentID)
	WriteSuccess(w, api.CanStartResponse{CanStart: ok})
}

// StoryAt handles GET /stories/{id}/{index} (Stories stage only).
func (h *StageHandler) StoryAt(w http.ResponseWriter, r *http.Request, rawID, rawIndex string) {
	id, ok := parseID(w, rawID, h.logger)
	if !ok {
		return
	}
	index, err := strconv.Atoi(rawIndex)
	if err != nil {
		WriteError(w, types.NewError(types.ArgumentInvalid, "invalid story index %q", rawIndex), h.logger)
		return
	}
	story, svcErr := h.service.GetOne(r.Context(), id, index)
	if svcErr != nil {
		WriteError(w, svcErr, h.logger)
		return
	}
	WriteSuccess(w, story)
}

// projectIDOf resolves the owning project from the request query string;
// the spec's per-stage start bodies key off the parent artifact, so the
// project id travels alongside it as an explicit query parameter.
func (h *StageHandler) projectIDOf(r *http.Request) types.ID {
	id, err := types.ParseID(r.URL.Query().Get("projectId"))
	if err != nil {
		return types.NilID
	}
	return id
}
