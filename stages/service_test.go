package stages

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ideaforge/engine/artifact"
	"github.com/ideaforge/engine/assembly"
	"github.com/ideaforge/engine/instructions"
	"github.com/ideaforge/engine/llm"
	"github.com/ideaforge/engine/review"
	"github.com/ideaforge/engine/types"
)

// fakeStore is a minimal in-memory artifact.Store for the service's own
// tests, separate from the assembly package's fake.
type fakeStore struct {
	byID map[types.ID]*types.StageArtifact
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: make(map[types.ID]*types.StageArtifact)}
}

func (f *fakeStore) Create(ctx context.Context, a *types.StageArtifact) error {
	if a.ID == types.NilID {
		a.ID = types.NewID()
	}
	f.byID[a.ID] = a
	return nil
}

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
	a, ok := f.byID[id]
	if !ok {
		return types.NewError(types.NotFound, "not found")
	}
	if !a.Status.CanTransitionTo(newStatus) && a.Status != newStatus {
		return types.NewError(types.ReviewConflict, "bad transition")
	}
	a.Status = newStatus
	if reviewID != nil {
		a.ReviewID = reviewID
	}
	return nil
}

func (f *fakeStore) SetOutput(ctx context.Context, id types.ID, rawOutput string, parsedOutput json.RawMessage) error {
	a, ok := f.byID[id]
	if !ok {
		return types.NewError(types.NotFound, "not found")
	}
	a.RawOutput = rawOutput
	a.ParsedOutput = parsedOutput
	return nil
}

func (f *fakeStore) GetStoryAt(ctx context.Context, storiesID types.ID, index int) (*types.UserStory, error) {
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

var _ artifact.Store = (*fakeStore)(nil)

// fakeProvider always returns a fixed requirements-style document.
type fakeProvider struct {
	content string
	err     error
}

func (p *fakeProvider) Name() string { return "fake" }
func (p *fakeProvider) Call(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	if p.err != nil {
		return llm.ChatResponse{}, p.err
	}
	return llm.ChatResponse{Content: p.content, ProviderName: "fake"}, nil
}
func (p *fakeProvider) IsHealthy(ctx context.Context) llm.HealthStatus {
	return llm.HealthStatus{Healthy: true, CheckedAt: time.Now()}
}

func newHarness(t *testing.T, providerContent string) (*Service, *fakeStore, *review.Registry) {
	t.Helper()
	dir := t.TempDir()
	writeTemplate(t, dir, "requirements_analyzer.yaml", `
name: RequirementsAnalyzer
version: "1"
required_sections: []
body: |
  # Task
  Analyze it.
`)
	instr, err := instructions.NewStore(dir, zap.NewNop())
	require.NoError(t, err)

	store := newFakeStore()
	assembler := assembly.NewAssembler(store, instr, nil)

	pool := llm.NewPool(zap.NewNop())
	pool.Register(&fakeProvider{content: providerContent}, llm.PoolConfig{ConcurrencyCap: 4, QueueWait: time.Second})

	reviewStore := review.NewMemoryStore()
	registry, err := review.NewRegistry(context.Background(), reviewStore, zap.NewNop())
	require.NoError(t, err)

	svc := NewService(store, assembler, pool, registry, zap.NewNop())
	return svc, store, registry
}

func writeTemplate(t *testing.T, dir, filename, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(body), 0o644))
}

func TestService_StartRequirements_Succeeds(t *testing.T) {
	svc, store, registry := newHarness(t, "# Overview\nAn online bookstore.\n")

	res, err := svc.Start(context.Background(), StartRequest{
		Stage:        types.StageRequirements,
		ProjectID:    types.NewID(),
		ProviderName: "fake",
	})
	require.NoError(t, err)
	assert.NotEqual(t, types.NilID, res.ArtifactID)
	assert.NotEqual(t, types.NilID, res.ReviewID)

	art, err := store.Get(context.Background(), res.ArtifactID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPendingReview, art.Status)

	err = registry.Decide(context.Background(), res.ReviewID, types.DecisionApproved, "")
	require.NoError(t, err)

	// Decide fires the subscribed handler asynchronously; give it a tick.
	require.Eventually(t, func() bool {
		a, _ := store.Get(context.Background(), res.ArtifactID)
		return a.Status == types.StatusApproved
	}, time.Second, 10*time.Millisecond)
}

func TestService_Start_MissingParent(t *testing.T) {
	svc, _, _ := newHarness(t, "# Overview\nok\n")
	_, err := svc.Start(context.Background(), StartRequest{
		Stage:        types.StagePlanning,
		ProjectID:    types.NewID(),
		ProviderName: "fake",
	})
	require.Error(t, err)
	assert.Equal(t, types.ArgumentInvalid, types.CodeOf(err))
}

func TestService_GetResult_NotApproved(t *testing.T) {
	svc, _, _ := newHarness(t, "# Overview\nok\n")
	res, err := svc.Start(context.Background(), StartRequest{
		Stage:        types.StageRequirements,
		ProjectID:    types.NewID(),
		ProviderName: "fake",
	})
	require.NoError(t, err)

	_, err = svc.GetResult(context.Background(), res.ArtifactID)
	require.Error(t, err)
	assert.Equal(t, types.PrerequisiteMissing, types.CodeOf(err))
}
