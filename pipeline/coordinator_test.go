package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideaforge/engine/artifact"
	"github.com/ideaforge/engine/types"
)

type fakeStore struct {
	byID map[types.ID]*types.StageArtifact
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: make(map[types.ID]*types.StageArtifact)}
}

func (f *fakeStore) add(a *types.StageArtifact) {
	if a.ID == types.NilID {
		a.ID = types.NewID()
	}
	f.byID[a.ID] = a
}

func (f *fakeStore) Create(ctx context.Context, a *types.StageArtifact) error { f.add(a); return nil }

func (f *fakeStore) Get(ctx context.Context, id types.ID) (*types.StageArtifact, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, types.NewError(types.NotFound, "not found")
	}
	return a, nil
}

func (f *fakeStore) GetByParent(ctx context.Context, parentID types.ID) ([]*types.StageArtifact, error) {
	var out []*types.StageArtifact
	for _, a := range f.byID {
		if a.ParentArtifactID != nil && *a.ParentArtifactID == parentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) FindApprovedUpstream(ctx context.Context, projectID types.ID, stage types.Stage) (*types.StageArtifact, error) {
	for _, a := range f.byID {
		if a.ProjectID == projectID && a.Stage == stage && a.Status == types.StatusApproved {
			return a, nil
		}
	}
	return nil, types.NewError(types.NotFound, "no approved %s", stage)
}

func (f *fakeStore) ListByProjectStage(ctx context.Context, projectID types.ID, stage types.Stage) ([]*types.StageArtifact, error) {
	var out []*types.StageArtifact
	for _, a := range f.byID {
		if a.ProjectID == projectID && a.Stage == stage {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id types.ID, newStatus types.Status, reviewID *types.ID) error {
	a := f.byID[id]
	a.Status = newStatus
	return nil
}

func (f *fakeStore) SetOutput(ctx context.Context, id types.ID, rawOutput string, parsedOutput json.RawMessage) error {
	return nil
}

func (f *fakeStore) GetStoryAt(ctx context.Context, storiesID types.ID, index int) (*types.UserStory, error) {
	return nil, types.NewError(types.OutOfRange, "out of range")
}

var _ artifact.Store = (*fakeStore)(nil)

func TestCoordinator_CanProgress(t *testing.T) {
	store := newFakeStore()
	projectID := types.NewID()
	c := NewCoordinator(store)

	ok, err := c.CanProgress(context.Background(), projectID, types.StageRequirements)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.CanProgress(context.Background(), projectID, types.StagePlanning)
	require.NoError(t, err)
	assert.False(t, ok)

	store.add(&types.StageArtifact{ProjectID: projectID, Stage: types.StageRequirements, Status: types.StatusApproved})
	ok, err = c.CanProgress(context.Background(), projectID, types.StagePlanning)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCoordinator_Progress(t *testing.T) {
	store := newFakeStore()
	projectID := types.NewID()
	c := NewCoordinator(store)

	store.add(&types.StageArtifact{ProjectID: projectID, Stage: types.StageRequirements, Status: types.StatusApproved})
	store.add(&types.StageArtifact{ProjectID: projectID, Stage: types.StagePlanning, Status: types.StatusPendingReview})
	store.add(&types.StageArtifact{ProjectID: projectID, Stage: types.StagePlanning, Status: types.StatusFailed})

	progress, err := c.Progress(context.Background(), projectID)
	require.NoError(t, err)
	assert.Equal(t, StageCounts{Total: 1, Approved: 1}, progress[types.StageRequirements])
	assert.Equal(t, StageCounts{Total: 2, Pending: 1, Failed: 1}, progress[types.StagePlanning])
	assert.Equal(t, StageCounts{}, progress[types.StageStories])
}

func TestCoordinator_LatestApproved(t *testing.T) {
	store := newFakeStore()
	projectID := types.NewID()
	c := NewCoordinator(store)

	_, ok, err := c.LatestApproved(context.Background(), projectID, types.StageRequirements)
	require.NoError(t, err)
	assert.False(t, ok)

	art := &types.StageArtifact{ProjectID: projectID, Stage: types.StageRequirements, Status: types.StatusApproved}
	store.add(art)
	id, ok, err := c.LatestApproved(context.Background(), projectID, types.StageRequirements)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, art.ID, id)
}
