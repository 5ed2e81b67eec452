// Package artifact implements the Artifact Store (C4): typed persistence
// of stage inputs, raw LLM output, parsed structured form, and lineage
// edges, enforcing invariants 1-5 of the data model (spec §3).
package artifact

import (
	"encoding/json"
	"time"

	"github.com/ideaforge/engine/types"
)

// Row is the single GORM model backing every stage's StageArtifact
// variant; stage is a discriminator column rather than four separate
// tables, matching the teacher's LLMModel/LLMProvider embedding convention
// of one wide row per concept instead of per-subtype tables.
type Row struct {
	ID               types.ID `gorm:"type:uuid;primaryKey"`
	ProjectID        types.ID `gorm:"type:uuid;index;not null"`
	Stage            string   `gorm:"size:16;not null;index:idx_artifact_identity"`
	ParentArtifactID *types.ID `gorm:"type:uuid;index:idx_artifact_identity"`
	Status           string   `gorm:"size:16;not null;index"`
	ReviewID         *types.ID `gorm:"type:uuid"`
	RawOutput        string    `gorm:"type:text"`
	ParsedOutput     []byte    `gorm:"type:jsonb"`
	StoryIndex       *int      `gorm:"index:idx_artifact_identity"`
	TechnicalPreferences []byte `gorm:"type:jsonb"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

func (Row) TableName() string { return "stage_artifacts" }

// NonTerminalUniqueIndexSQL is applied by the postgres migration, not by
// AutoMigrate: a partial unique index filtered to non-terminal statuses is
// how invariant 5 ("at most one artifact per (projectId, stage,
// parentArtifactId, storyIndex?) may be in a non-terminal state") is
// enforced at the database layer on drivers that support partial indexes.
const NonTerminalUniqueIndexSQL = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_stage_artifacts_nonterminal
ON stage_artifacts (project_id, stage, parent_artifact_id, story_index)
WHERE status IN ('Processing', 'PendingReview');
`

func toRow(a *types.StageArtifact) (*Row, error) {
	var prefs []byte
	if len(a.TechnicalPreferences) > 0 {
		b, err := json.Marshal(a.TechnicalPreferences)
		if err != nil {
			return nil, err
		}
		prefs = b
	}
	return &Row{
		ID:                   a.ID,
		ProjectID:            a.ProjectID,
		Stage:                string(a.Stage),
		ParentArtifactID:     a.ParentArtifactID,
		Status:               string(a.Status),
		ReviewID:             a.ReviewID,
		RawOutput:            a.RawOutput,
		ParsedOutput:         []byte(a.ParsedOutput),
		StoryIndex:           a.StoryIndex,
		TechnicalPreferences: prefs,
		CreatedAt:            a.CreatedAt,
		UpdatedAt:            a.UpdatedAt,
	}, nil
}

func fromRow(row *Row) (*types.StageArtifact, error) {
	a := &types.StageArtifact{
		ID:               row.ID,
		ProjectID:        row.ProjectID,
		Stage:            types.Stage(row.Stage),
		ParentArtifactID: row.ParentArtifactID,
		Status:           types.Status(row.Status),
		ReviewID:         row.ReviewID,
		RawOutput:        row.RawOutput,
		ParsedOutput:     json.RawMessage(row.ParsedOutput),
		StoryIndex:       row.StoryIndex,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
	if len(row.TechnicalPreferences) > 0 {
		var prefs map[string]string
		if err := json.Unmarshal(row.TechnicalPreferences, &prefs); err != nil {
			return nil, err
		}
		a.TechnicalPreferences = prefs
	}
	return a, nil
}
