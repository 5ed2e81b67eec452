package assembly

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ideaforge/engine/artifact"
	"github.com/ideaforge/engine/instructions"
	"github.com/ideaforge/engine/types"
)

func writeTemplate(t *testing.T, dir, filename, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(body), 0o644))
}

func mustNewStore(t *testing.T, dir string) *instructions.Store {
	t.Helper()
	store, err := instructions.NewStore(dir, zap.NewNop())
	require.NoError(t, err)
	return store
}

// fakeArtifactStore implements artifact.Store with an in-memory map, just
// enough surface for the assembler's tests.
type fakeArtifactStore struct {
	byID       map[types.ID]*types.StageArtifact
	approvedBy map[types.Stage]*types.StageArtifact
}

func newFakeArtifactStore() *fakeArtifactStore {
	return &fakeArtifactStore{
		byID:       make(map[types.ID]*types.StageArtifact),
		approvedBy: make(map[types.Stage]*types.StageArtifact),
	}
}

func (f *fakeArtifactStore) Create(ctx context.Context, a *types.StageArtifact) error { return nil }

func (f *fakeArtifactStore) Get(ctx context.Context, id types.ID) (*types.StageArtifact, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, types.NewError(types.NotFound, "not found")
	}
	return a, nil
}

func (f *fakeArtifactStore) GetByParent(ctx context.Context, parentID types.ID) ([]*types.StageArtifact, error) {
	return nil, nil
}

func (f *fakeArtifactStore) FindApprovedUpstream(ctx context.Context, projectID types.ID, stage types.Stage) (*types.StageArtifact, error) {
	a, ok := f.approvedBy[stage]
	if !ok {
		return nil, types.NewError(types.NotFound, "no approved %s", stage)
	}
	return a, nil
}

func (f *fakeArtifactStore) UpdateStatus(ctx context.Context, id types.ID, newStatus types.Status, reviewID *types.ID) error {
	return nil
}

func (f *fakeArtifactStore) ListByProjectStage(ctx context.Context, projectID types.ID, stage types.Stage) ([]*types.StageArtifact, error) {
	var out []*types.StageArtifact
	for _, a := range f.byID {
		if a.ProjectID == projectID && a.Stage == stage {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeArtifactStore) SetOutput(ctx context.Context, id types.ID, rawOutput string, parsedOutput json.RawMessage) error {
	return nil
}

func (f *fakeArtifactStore) GetStoryAt(ctx context.Context, storiesID types.ID, index int) (*types.UserStory, error) {
	a, ok := f.byID[storiesID]
	if !ok {
		return nil, types.NewError(types.NotFound, "not found")
	}
	var doc types.StoriesDocument
	_ = json.Unmarshal(a.ParsedOutput, &doc)
	if index < 0 || index >= len(doc.Stories) {
		return nil, types.NewError(types.OutOfRange, "out of range")
	}
	return &doc.Stories[index], nil
}

var _ artifact.Store = (*fakeArtifactStore)(nil)

func reqDoc(t *testing.T) json.RawMessage {
	b, err := json.Marshal(types.RequirementsDocument{Sections: map[string]string{"Overview": "An online bookstore."}})
	require.NoError(t, err)
	return b
}

func TestAssembler_PrerequisiteMissing(t *testing.T) {
	fs := newFakeArtifactStore()
	dir := t.TempDir()
	writeTemplate(t, dir, "project_planner.yaml", `
name: ProjectPlanner
version: "1"
required_sections: []
body: |
  # Task
  Plan it.
`)
	instr := mustNewStore(t, dir)

	a := NewAssembler(fs, instr, nil)
	_, err := a.Assemble(context.Background(), Request{Stage: types.StagePlanning, ProjectID: types.NewID()})
	require.Error(t, err)
	assert.Equal(t, types.PrerequisiteMissing, types.CodeOf(err))
}

func TestAssembler_ComposesUpstreamSections(t *testing.T) {
	fs := newFakeArtifactStore()
	projectID := types.NewID()
	reqArtifact := &types.StageArtifact{ID: types.NewID(), ProjectID: projectID, Stage: types.StageRequirements, Status: types.StatusApproved, ParsedOutput: reqDoc(t)}
	fs.approvedBy[types.StageRequirements] = reqArtifact

	dir := t.TempDir()
	writeTemplate(t, dir, "project_planner.yaml", `
name: ProjectPlanner
version: "1"
required_sections: []
body: |
  # Task
  Plan it.
`)
	instr := mustNewStore(t, dir)

	a := NewAssembler(fs, instr, nil)
	result, err := a.Assemble(context.Background(), Request{Stage: types.StagePlanning, ProjectID: projectID})
	require.NoError(t, err)
	assert.Contains(t, result.Prompt, "# Requirements Analysis Content")
	assert.Contains(t, result.Prompt, "An online bookstore.")
	assert.Equal(t, []types.ID{reqArtifact.ID}, result.SourceArtifactIDs)
}
