package types

import (
	"encoding/json"
	"time"
)

// StageArtifact is the common shape shared by every stage's concrete
// artifact variant (§3). ParsedOutput carries the stage-specific structured
// form, marshaled as raw JSON so the Artifact Store can persist it in one
// polymorphic column of its single stage_artifacts table without an extra
// serialization dependency.
type StageArtifact struct {
	ID               ID
	ProjectID        ID
	Stage            Stage
	ParentArtifactID *ID
	Status           Status
	ReviewID         *ID
	RawOutput        string
	ParsedOutput     json.RawMessage
	CreatedAt        time.Time
	UpdatedAt        time.Time

	// StoryIndex and TechnicalPreferences apply only to PROMPT artifacts.
	StoryIndex            *int
	TechnicalPreferences  map[string]string
}

// RequirementsDocument is the REQ stage's parsed output: a set of named
// sections recognized by their literal headers.
type RequirementsDocument struct {
	Sections map[string]string `json:"sections"`
}

// ProjectPlan is the PLAN stage's parsed output, same section shape as
// RequirementsDocument since both are free-form structured documents keyed
// by recognizable headers.
type ProjectPlan struct {
	Sections map[string]string `json:"sections"`
}

// StoriesDocument is the STORIES stage's parsed output.
type StoriesDocument struct {
	Stories []UserStory `json:"stories"`
}

// GeneratedPrompt is the PROMPT stage's parsed output: the assembled,
// provider-returned prompt text for one story.
type GeneratedPrompt struct {
	Content    string `json:"content"`
	StoryIndex int    `json:"storyIndex"`
}

// markReviewSubmitted and applyReviewDecision are the only two mutating
// transitions named in §3's Lifecycle; they live on StageArtifact so every
// caller (Artifact Store impl, tests) shares one definition of idempotence.

// MarkReviewSubmitted transitions Processing -> PendingReview, recording
// reviewID. Idempotent: calling it again with the same reviewID is a no-op.
func (a *StageArtifact) MarkReviewSubmitted(reviewID ID, now time.Time) *Error {
	if a.Status == StatusPendingReview && a.ReviewID != nil && *a.ReviewID == reviewID {
		return nil
	}
	if a.Status != StatusProcessing {
		return NewError(ReviewConflict, "artifact %s is not Processing", a.ID)
	}
	a.Status = StatusPendingReview
	a.ReviewID = &reviewID
	a.UpdatedAt = now
	return nil
}

// ApplyReviewDecision transitions PendingReview -> Approved|Rejected.
// Idempotent against the same target decision.
func (a *StageArtifact) ApplyReviewDecision(decision Decision, now time.Time) *Error {
	target := StatusApproved
	if decision == DecisionRejected {
		target = StatusRejected
	}
	if a.Status == target {
		return nil
	}
	if !a.Status.CanTransitionTo(target) {
		return NewError(ReviewConflict, "artifact %s cannot move from %s to %s", a.ID, a.Status, target)
	}
	a.Status = target
	a.UpdatedAt = now
	return nil
}

// MarkFailed transitions Processing -> Failed. Used when prompt assembly,
// the provider call, or parsing fails before a review is ever submitted.
func (a *StageArtifact) MarkFailed(now time.Time) *Error {
	if a.Status == StatusFailed {
		return nil
	}
	if a.Status != StatusProcessing {
		return NewError(ReviewConflict, "artifact %s is not Processing", a.ID)
	}
	a.Status = StatusFailed
	a.UpdatedAt = now
	return nil
}
