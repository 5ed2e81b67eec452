package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageArtifact_MarkReviewSubmitted(t *testing.T) {
	a := &StageArtifact{ID: NewID(), Status: StatusProcessing}
	rid := NewID()
	now := time.Now().UTC()

	require.Nil(t, a.MarkReviewSubmitted(rid, now))
	assert.Equal(t, StatusPendingReview, a.Status)
	require.NotNil(t, a.ReviewID)
	assert.Equal(t, rid, *a.ReviewID)

	// idempotent re-call with the same reviewID
	require.Nil(t, a.MarkReviewSubmitted(rid, now))

	// wrong source status
	a2 := &StageArtifact{ID: NewID(), Status: StatusApproved}
	err := a2.MarkReviewSubmitted(NewID(), now)
	require.NotNil(t, err)
	assert.Equal(t, ReviewConflict, err.Code)
}

func TestStageArtifact_ApplyReviewDecision(t *testing.T) {
	now := time.Now().UTC()
	a := &StageArtifact{ID: NewID(), Status: StatusPendingReview}

	require.Nil(t, a.ApplyReviewDecision(DecisionApproved, now))
	assert.Equal(t, StatusApproved, a.Status)

	// idempotent against the same target decision
	require.Nil(t, a.ApplyReviewDecision(DecisionApproved, now))

	// conflicting decision after terminal
	err := a.ApplyReviewDecision(DecisionRejected, now)
	require.NotNil(t, err)
	assert.Equal(t, ReviewConflict, err.Code)
}

func TestReview_Decide(t *testing.T) {
	now := time.Now().UTC()
	r := &Review{ID: NewID(), Decision: DecisionPending}

	require.Nil(t, r.Decide(DecisionApproved, "looks good", now))
	assert.Equal(t, DecisionApproved, r.Decision)
	require.NotNil(t, r.DecidedAt)

	// decide(r, Approved) ; decide(r, Approved) is a no-op after the first
	require.Nil(t, r.Decide(DecisionApproved, "again", now))
	assert.Equal(t, "looks good", r.Feedback)

	err := r.Decide(DecisionRejected, "", now)
	require.NotNil(t, err)
	assert.Equal(t, ReviewConflict, err.Code)
}

func TestStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, StatusProcessing.CanTransitionTo(StatusPendingReview))
	assert.True(t, StatusProcessing.CanTransitionTo(StatusFailed))
	assert.False(t, StatusProcessing.CanTransitionTo(StatusApproved))
	assert.True(t, StatusPendingReview.CanTransitionTo(StatusApproved))
	assert.True(t, StatusPendingReview.CanTransitionTo(StatusRejected))
	assert.False(t, StatusApproved.CanTransitionTo(StatusRejected))
}
