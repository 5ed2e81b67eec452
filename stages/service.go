package stages

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/ideaforge/engine/artifact"
	"github.com/ideaforge/engine/assembly"
	"github.com/ideaforge/engine/llm"
	"github.com/ideaforge/engine/review"
	"github.com/ideaforge/engine/types"
)

// StartRequest is the Start step's input, shared by every stage (§4.6).
type StartRequest struct {
	Stage                types.Stage
	ProjectID            types.ID
	ParentArtifactID     *types.ID // nil only for REQ
	StoryIndex           *int      // required for PROMPT
	CallerPreferences    string
	ExtraHints           string
	TechnicalPreferences map[string]string
	ProviderName         string
	ModelHint            string
	MaxTokens            int
	Temperature          float64
	Deadline             time.Time
}

// StartResult is what Start returns (§4.6 step 8).
type StartResult struct {
	ArtifactID types.ID
	ReviewID   types.ID
}

// Service is the table-driven implementation of every stage's shared
// operation shape (§4.6, §9 design note).
type Service struct {
	artifacts  artifact.Store
	assembler  *assembly.Assembler
	pool       *llm.Pool
	reviews    *review.Registry
	logger     *zap.Logger
}

func NewService(artifacts artifact.Store, assembler *assembly.Assembler, pool *llm.Pool, reviews *review.Registry, logger *zap.Logger) *Service {
	return &Service{
		artifacts: artifacts,
		assembler: assembler,
		pool:      pool,
		reviews:   reviews,
		logger:    logger.With(zap.String("component", "stage_service")),
	}
}

// CanStart reports whether parentID exists and is Approved (§4.6
// canStart). REQ has no parent, so it is always startable.
func (s *Service) CanStart(ctx context.Context, stage types.Stage, parentID *types.ID) bool {
	if stage == types.StageRequirements {
		return true
	}
	if parentID == nil {
		return false
	}
	parent, err := s.artifacts.Get(ctx, *parentID)
	if err != nil {
		return false
	}
	return parent.Status == types.StatusApproved
}

// Start runs the authoritative sequence in §4.6.
func (s *Service) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	def, ok := table[req.Stage]
	if !ok {
		return nil, types.NewError(types.ArgumentInvalid, "unknown stage %q", req.Stage)
	}

	// 1. Validate request.
	if req.Stage != types.StageRequirements && req.ParentArtifactID == nil {
		return nil, types.NewError(types.ArgumentInvalid, "parent artifact id is required for stage %s", req.Stage)
	}
	if req.Stage == types.StagePrompt && req.StoryIndex == nil {
		return nil, types.NewError(types.ArgumentInvalid, "storyIndex is required for PROMPT")
	}

	// 2. Check prerequisites.
	if req.Stage != types.StageRequirements {
		parent, err := s.artifacts.Get(ctx, *req.ParentArtifactID)
		if err != nil {
			return nil, types.NewError(types.PrerequisiteMissing, "parent artifact %s not found", *req.ParentArtifactID)
		}
		if parent.Status != types.StatusApproved {
			return nil, types.NewError(types.PrerequisiteMissing, "parent artifact %s is not Approved", *req.ParentArtifactID)
		}
		if parent.Stage != def.prerequisite {
			return nil, types.NewError(types.ArgumentInvalid, "parent artifact %s is a %s artifact, expected %s", *req.ParentArtifactID, parent.Stage, def.prerequisite)
		}
		if req.Stage == types.StagePrompt {
			var doc types.StoriesDocument
			if err := json.Unmarshal(parent.ParsedOutput, &doc); err != nil {
				return nil, types.NewError(types.Internal, "decode stories document: %v", err)
			}
			if *req.StoryIndex < 0 || *req.StoryIndex >= len(doc.Stories) {
				return nil, types.NewError(types.ArgumentInvalid, "storyIndex %d out of range [0,%d)", *req.StoryIndex, len(doc.Stories))
			}
		}
	}

	// 3. Create a new StageArtifact with status=Processing; invariant 5
	// is enforced inside artifact.Store.Create.
	art := &types.StageArtifact{
		ID:                   types.NewID(),
		ProjectID:            req.ProjectID,
		Stage:                req.Stage,
		ParentArtifactID:     req.ParentArtifactID,
		Status:               types.StatusProcessing,
		StoryIndex:           req.StoryIndex,
		TechnicalPreferences: req.TechnicalPreferences,
	}
	if err := s.artifacts.Create(ctx, art); err != nil {
		return nil, err
	}

	// 4. Assemble prompt via C5.
	assembled, err := s.assembler.Assemble(ctx, assembly.Request{
		Stage:             req.Stage,
		ProjectID:         req.ProjectID,
		CallerPreferences: req.CallerPreferences,
		ExtraHints:        req.ExtraHints,
		StoryIndex:        req.StoryIndex,
	})
	if err != nil {
		s.failArtifact(ctx, art.ID)
		return nil, err
	}

	// 5. Call provider via C1.
	deadline := req.Deadline
	if deadline.IsZero() {
		deadline = time.Now().Add(2 * time.Minute)
	}
	modelHint := req.ModelHint
	if modelHint == "" {
		modelHint = def.modelHint
	}
	resp, err := s.pool.Call(ctx, req.ProviderName, llm.ChatRequest{
		Prompt:      assembled.Prompt,
		ModelHint:   modelHint,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Deadline:    deadline,
	})
	if err != nil {
		if ctx.Err() != nil {
			s.failArtifact(ctx, art.ID)
			return nil, types.NewError(types.Cancelled, "stage %s cancelled: %v", req.Stage, ctx.Err())
		}
		s.failArtifact(ctx, art.ID)
		return nil, err
	}

	// 6. Parse rawOutput.
	parsed, err := def.parse(resp.Content)
	if err != nil {
		_ = s.artifacts.SetOutput(ctx, art.ID, resp.Content, nil)
		s.failArtifact(ctx, art.ID)
		return nil, err
	}
	parsedJSON, err := json.Marshal(parsed)
	if err != nil {
		s.failArtifact(ctx, art.ID)
		return nil, types.NewError(types.ParseError, "encode parsed output: %v", err)
	}
	if err := s.artifacts.SetOutput(ctx, art.ID, resp.Content, parsedJSON); err != nil {
		return nil, err
	}

	// 7. Submit to C3; transition to PendingReview.
	reviewID, err := s.reviews.Submit(ctx, art.ID, req.Stage)
	if err != nil {
		return nil, err
	}
	if err := s.artifacts.UpdateStatus(ctx, art.ID, types.StatusPendingReview, &reviewID); err != nil {
		return nil, err
	}

	// Review propagation (§4.6): project the eventual decision back onto
	// the artifact, one-shot, with fallback reconciliation left to
	// restart-time polling (§9).
	s.reviews.Subscribe(art.ID, func(r *types.Review) {
		target := types.StatusApproved
		if r.Decision == types.DecisionRejected {
			target = types.StatusRejected
		}
		if err := s.artifacts.UpdateStatus(context.Background(), art.ID, target, &r.ID); err != nil {
			s.logger.Error("failed to project review decision onto artifact",
				zap.String("artifactId", art.ID.String()), zap.Error(err))
		}
	})

	// 8. Return identifiers.
	return &StartResult{ArtifactID: art.ID, ReviewID: reviewID}, nil
}

func (s *Service) failArtifact(ctx context.Context, id types.ID) {
	if err := s.artifacts.UpdateStatus(ctx, id, types.StatusFailed, nil); err != nil {
		s.logger.Error("failed to mark artifact Failed", zap.String("artifactId", id.String()), zap.Error(err))
	}
}

// GetStatus returns an artifact's current status.
func (s *Service) GetStatus(ctx context.Context, artifactID types.ID) (types.Status, error) {
	a, err := s.artifacts.Get(ctx, artifactID)
	if err != nil {
		return "", err
	}
	return a.Status, nil
}

// GetResult returns the artifact's parsed output, or PrerequisiteMissing
// if it has not yet been Approved.
func (s *Service) GetResult(ctx context.Context, artifactID types.ID) (json.RawMessage, error) {
	a, err := s.artifacts.Get(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	if a.Status != types.StatusApproved {
		return nil, types.NewError(types.PrerequisiteMissing, "artifact %s is not Approved", artifactID)
	}
	return a.ParsedOutput, nil
}

// Count returns the number of stories in a STORIES artifact (Stories
// only).
func (s *Service) Count(ctx context.Context, storiesArtifactID types.ID) (int, error) {
	a, err := s.artifacts.Get(ctx, storiesArtifactID)
	if err != nil {
		return 0, err
	}
	if a.Stage != types.StageStories {
		return 0, types.NewError(types.ArgumentInvalid, "artifact %s is not a STORIES artifact", storiesArtifactID)
	}
	var doc types.StoriesDocument
	if err := json.Unmarshal(a.ParsedOutput, &doc); err != nil {
		return 0, types.NewError(types.Internal, "decode stories document: %v", err)
	}
	return len(doc.Stories), nil
}

// GetOne returns a single story by index (Stories only).
func (s *Service) GetOne(ctx context.Context, storiesArtifactID types.ID, index int) (*types.UserStory, error) {
	return s.artifacts.GetStoryAt(ctx, storiesArtifactID, index)
}
