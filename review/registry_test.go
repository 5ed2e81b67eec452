package review

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ideaforge/engine/types"
)

func TestRegistry_SubmitAndDecide(t *testing.T) {
	store := NewMemoryStore()
	reg, err := NewRegistry(context.Background(), store, zap.NewNop())
	require.NoError(t, err)

	artifactID := types.NewID()
	reviewID, err := reg.Submit(context.Background(), artifactID, types.StageRequirements)
	require.NoError(t, err)

	pending, err := reg.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, reg.Decide(context.Background(), reviewID, types.DecisionApproved, "looks good"))

	r, err := reg.Get(context.Background(), reviewID)
	require.NoError(t, err)
	assert.Equal(t, types.DecisionApproved, r.Decision)

	// decide(r, Approved) ; decide(r, Approved) is a no-op after the first
	require.NoError(t, reg.Decide(context.Background(), reviewID, types.DecisionApproved, "again"))

	err = reg.Decide(context.Background(), reviewID, types.DecisionRejected, "")
	require.Error(t, err)
	assert.Equal(t, types.ReviewConflict, types.CodeOf(err))
}

func TestRegistry_AwaitDecision(t *testing.T) {
	store := NewMemoryStore()
	reg, err := NewRegistry(context.Background(), store, zap.NewNop())
	require.NoError(t, err)

	artifactID := types.NewID()
	reviewID, err := reg.Submit(context.Background(), artifactID, types.StagePlanning)
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = reg.Decide(context.Background(), reviewID, types.DecisionApproved, "")
	}()

	decision, err := reg.AwaitDecision(context.Background(), reviewID, time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, types.DecisionApproved, decision)
}

func TestRegistry_AwaitDecision_Timeout(t *testing.T) {
	store := NewMemoryStore()
	reg, err := NewRegistry(context.Background(), store, zap.NewNop())
	require.NoError(t, err)

	artifactID := types.NewID()
	reviewID, err := reg.Submit(context.Background(), artifactID, types.StageStories)
	require.NoError(t, err)

	_, err = reg.AwaitDecision(context.Background(), reviewID, time.Now().Add(20*time.Millisecond))
	require.Error(t, err)
	assert.Equal(t, types.Timeout, types.CodeOf(err))
}

func TestRegistry_Subscribe(t *testing.T) {
	store := NewMemoryStore()
	reg, err := NewRegistry(context.Background(), store, zap.NewNop())
	require.NoError(t, err)

	artifactID := types.NewID()
	reviewID, err := reg.Submit(context.Background(), artifactID, types.StagePrompt)
	require.NoError(t, err)

	notified := make(chan types.Decision, 1)
	reg.Subscribe(artifactID, func(r *types.Review) {
		notified <- r.Decision
	})

	require.NoError(t, reg.Decide(context.Background(), reviewID, types.DecisionRejected, "needs work"))

	select {
	case d := <-notified:
		assert.Equal(t, types.DecisionRejected, d)
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestRegistry_ReconcilesPendingFromStore(t *testing.T) {
	store := NewMemoryStore()
	artifactID := types.NewID()
	seed := &types.Review{
		ID:          types.NewID(),
		ArtifactID:  artifactID,
		Stage:       types.StageRequirements,
		SubmittedAt: time.Now().UTC(),
		Decision:    types.DecisionPending,
	}
	require.NoError(t, store.Save(context.Background(), seed))

	reg, err := NewRegistry(context.Background(), store, zap.NewNop())
	require.NoError(t, err)

	pending, err := reg.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, seed.ID, pending[0].ID)
}
