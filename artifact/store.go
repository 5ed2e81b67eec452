package artifact

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ideaforge/engine/types"
)

// Store is the Artifact Store contract (§4.4).
type Store interface {
	Create(ctx context.Context, a *types.StageArtifact) error
	Get(ctx context.Context, id types.ID) (*types.StageArtifact, error)
	GetByParent(ctx context.Context, parentID types.ID) ([]*types.StageArtifact, error)
	FindApprovedUpstream(ctx context.Context, projectID types.ID, stage types.Stage) (*types.StageArtifact, error)
	// ListByProjectStage returns every artifact of stage within project,
	// across every status, for progress reporting (§4.7).
	ListByProjectStage(ctx context.Context, projectID types.ID, stage types.Stage) ([]*types.StageArtifact, error)
	UpdateStatus(ctx context.Context, id types.ID, newStatus types.Status, reviewID *types.ID) error
	GetStoryAt(ctx context.Context, storiesID types.ID, index int) (*types.UserStory, error)
	// SetOutput records the provider's raw and parsed output on an
	// artifact still in Processing, ahead of review submission.
	SetOutput(ctx context.Context, id types.ID, rawOutput string, parsedOutput json.RawMessage) error
}

// GormStore is the relational implementation of Store.
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewGormStore(db *gorm.DB, logger *zap.Logger) *GormStore {
	return &GormStore{db: db, logger: logger.With(zap.String("component", "artifact_store"))}
}

func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Row{}); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Exec(NonTerminalUniqueIndexSQL).Error
}

// Create enforces invariants 1, 2, 3 and 5. Invariant 5 is enforced two
// ways: the database's partial unique index (authoritative where
// supported) and an application-level count check inside the same
// transaction (authoritative on drivers without partial indexes, e.g. the
// sqlmock-backed unit tests), so a duplicate concurrent start always fails
// AlreadyInProgress instead of leaking a unique-constraint error.
func (s *GormStore) Create(ctx context.Context, a *types.StageArtifact) error {
	if a.ID == types.NilID {
		a.ID = types.NewID()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = types.StatusProcessing
	}
	if a.Status != types.StatusProcessing || a.ReviewID != nil {
		return types.NewError(types.ArgumentInvalid, "a new artifact must start Processing with no review")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		q := tx.Model(&Row{}).
			Where("project_id = ? AND stage = ? AND status IN ?", a.ProjectID, string(a.Stage), []string{string(types.StatusProcessing), string(types.StatusPendingReview)})
		if a.ParentArtifactID != nil {
			q = q.Where("parent_artifact_id = ?", *a.ParentArtifactID)
		} else {
			q = q.Where("parent_artifact_id IS NULL")
		}
		if a.StoryIndex != nil {
			q = q.Where("story_index = ?", *a.StoryIndex)
		} else {
			q = q.Where("story_index IS NULL")
		}
		if err := q.Count(&count).Error; err != nil {
			return types.NewError(types.Internal, "check artifact uniqueness: %v", err)
		}
		if count > 0 {
			return types.NewError(types.AlreadyInProgress, "a non-terminal artifact already exists for this (project, stage, parent, storyIndex)")
		}

		if a.ParentArtifactID != nil {
			var parent Row
			if err := tx.First(&parent, "id = ?", *a.ParentArtifactID).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return types.NewError(types.PrerequisiteMissing, "parent artifact %s not found", *a.ParentArtifactID)
				}
				return types.NewError(types.Internal, "load parent artifact: %v", err)
			}
			if parent.Status != string(types.StatusApproved) {
				return types.NewError(types.PrerequisiteMissing, "parent artifact %s is not Approved", *a.ParentArtifactID)
			}
			if a.Stage == types.StagePrompt {
				var doc types.StoriesDocument
				if a.StoryIndex == nil || json.Unmarshal(parent.ParsedOutput, &doc) != nil ||
					*a.StoryIndex < 0 || *a.StoryIndex >= len(doc.Stories) {
					return types.NewError(types.ArgumentInvalid, "storyIndex is out of range for stories artifact %s", *a.ParentArtifactID)
				}
			}
		}

		row, err := toRow(a)
		if err != nil {
			return types.NewError(types.Internal, "encode artifact: %v", err)
		}
		if err := tx.Create(row).Error; err != nil {
			if strings.Contains(err.Error(), "SQLSTATE 23505") {
				return types.NewError(types.AlreadyInProgress, "a non-terminal artifact already exists for this (project, stage, parent, storyIndex)")
			}
			return types.NewError(types.Internal, "create artifact: %v", err)
		}
		return nil
	})
}

func (s *GormStore) Get(ctx context.Context, id types.ID) (*types.StageArtifact, error) {
	var row Row
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, types.NewError(types.NotFound, "artifact %s not found", id)
		}
		return nil, types.NewError(types.Internal, "load artifact: %v", err)
	}
	a, err := fromRow(&row)
	if err != nil {
		return nil, types.NewError(types.Internal, "decode artifact: %v", err)
	}
	return a, nil
}

func (s *GormStore) GetByParent(ctx context.Context, parentID types.ID) ([]*types.StageArtifact, error) {
	var rows []Row
	if err := s.db.WithContext(ctx).Where("parent_artifact_id = ?", parentID).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, types.NewError(types.Internal, "list children of %s: %v", parentID, err)
	}
	out := make([]*types.StageArtifact, 0, len(rows))
	for i := range rows {
		a, err := fromRow(&rows[i])
		if err != nil {
			return nil, types.NewError(types.Internal, "decode artifact: %v", err)
		}
		out = append(out, a)
	}
	return out, nil
}

// FindApprovedUpstream returns the most recent Approved artifact of stage
// for project, or NotFound if none exists.
func (s *GormStore) FindApprovedUpstream(ctx context.Context, projectID types.ID, stage types.Stage) (*types.StageArtifact, error) {
	var row Row
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND stage = ? AND status = ?", projectID, string(stage), string(types.StatusApproved)).
		Order("updated_at desc").
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, types.NewError(types.NotFound, "no approved %s artifact for project %s", stage, projectID)
		}
		return nil, types.NewError(types.Internal, "find approved upstream: %v", err)
	}
	return fromRow(&row)
}

// ListByProjectStage returns every artifact of stage within project, in
// no particular status, ordered oldest first.
func (s *GormStore) ListByProjectStage(ctx context.Context, projectID types.ID, stage types.Stage) ([]*types.StageArtifact, error) {
	var rows []Row
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND stage = ?", projectID, string(stage)).
		Order("created_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, types.NewError(types.Internal, "list %s artifacts for project %s: %v", stage, projectID, err)
	}
	out := make([]*types.StageArtifact, 0, len(rows))
	for i := range rows {
		a, err := fromRow(&rows[i])
		if err != nil {
			return nil, types.NewError(types.Internal, "decode artifact: %v", err)
		}
		out = append(out, a)
	}
	return out, nil
}

// UpdateStatus is guarded by invariant 1's transition table.
func (s *GormStore) UpdateStatus(ctx context.Context, id types.ID, newStatus types.Status, reviewID *types.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row Row
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return types.NewError(types.NotFound, "artifact %s not found", id)
			}
			return types.NewError(types.Internal, "load artifact: %v", err)
		}
		current := types.Status(row.Status)
		if current == newStatus {
			return nil // idempotent against the current target (§3 Lifecycle)
		}
		if !current.CanTransitionTo(newStatus) {
			return types.NewError(types.ReviewConflict, "artifact %s cannot move from %s to %s", id, current, newStatus)
		}
		updates := map[string]any{
			"status":     string(newStatus),
			"updated_at": time.Now().UTC(),
		}
		if reviewID != nil {
			updates["review_id"] = *reviewID
		}
		if err := tx.Model(&Row{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return types.NewError(types.Internal, "update artifact status: %v", err)
		}
		return nil
	})
}

// SetOutput is called once, between the provider call/parse step and
// review submission (§4.6 steps 5-6).
func (s *GormStore) SetOutput(ctx context.Context, id types.ID, rawOutput string, parsedOutput json.RawMessage) error {
	err := s.db.WithContext(ctx).Model(&Row{}).Where("id = ?", id).Updates(map[string]any{
		"raw_output":    rawOutput,
		"parsed_output": []byte(parsedOutput),
		"updated_at":    time.Now().UTC(),
	}).Error
	if err != nil {
		return types.NewError(types.Internal, "set artifact output: %v", err)
	}
	return nil
}

// GetStoryAt returns the story at index within a STORIES artifact's parsed
// output, failing OutOfRange when invariant 3 would be violated.
func (s *GormStore) GetStoryAt(ctx context.Context, storiesID types.ID, index int) (*types.UserStory, error) {
	a, err := s.Get(ctx, storiesID)
	if err != nil {
		return nil, err
	}
	if a.Stage != types.StageStories {
		return nil, types.NewError(types.ArgumentInvalid, "artifact %s is not a STORIES artifact", storiesID)
	}
	var doc types.StoriesDocument
	if err := json.Unmarshal(a.ParsedOutput, &doc); err != nil {
		return nil, types.NewError(types.Internal, "decode stories document: %v", err)
	}
	if index < 0 || index >= len(doc.Stories) {
		return nil, types.NewError(types.OutOfRange, "story index %d out of range [0,%d)", index, len(doc.Stories))
	}
	story := doc.Stories[index]
	return &story, nil
}
