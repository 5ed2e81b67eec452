package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
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
	"github.com/ideaforge/engine/stages"
	"github.com/ideaforge/engine/types"
)

type fakeStore struct {
	byID map[types.ID]*types.StageArtifact
}

func newFakeStore() *fakeStore { return &fakeStore{byID: make(map[types.ID]*types.StageArtifact)} }

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
	return nil, nil
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
	if reviewID != nil {
		a.ReviewID = reviewID
	}
	return nil
}

func (f *fakeStore) SetOutput(ctx context.Context, id types.ID, rawOutput string, parsedOutput json.RawMessage) error {
	a := f.byID[id]
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

type fakeProvider struct{ content string }

func (p *fakeProvider) Name() string { return "fake" }
func (p *fakeProvider) Call(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	return llm.ChatResponse{Content: p.content, ProviderName: "fake"}, nil
}
func (p *fakeProvider) IsHealthy(ctx context.Context) llm.HealthStatus {
	return llm.HealthStatus{Healthy: true, CheckedAt: time.Now()}
}

func newTestHandler(t *testing.T) (*StageHandler, *fakeStore) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements_analyzer.yaml"), []byte(`
name: RequirementsAnalyzer
version: "1"
required_sections: []
body: |
  # Task
  Analyze it.
`), 0o644))
	instr, err := instructions.NewStore(dir, zap.NewNop())
	require.NoError(t, err)

	store := newFakeStore()
	assembler := assembly.NewAssembler(store, instr, nil)

	pool := llm.NewPool(zap.NewNop())
	pool.Register(&fakeProvider{content: "# Overview\nAn online bookstore.\n"}, llm.PoolConfig{ConcurrencyCap: 4, QueueWait: time.Second})

	reviewStore := review.NewMemoryStore()
	registry, err := review.NewRegistry(context.Background(), reviewStore, zap.NewNop())
	require.NoError(t, err)

	svc := stages.NewService(store, assembler, pool, registry, zap.NewNop())
	return NewStageHandler(types.StageRequirements, svc, zap.NewNop()), store
}

func TestStageHandler_StartRequirements(t *testing.T) {
	handler, store := newTestHandler(t)

	body := `{"projectId":"` + types.NewID().String() + `","projectDescription":"An online bookstore.","provider":"fake"}`
	req := httptest.NewRequest(http.MethodPost, "/requirements", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.StartRequirements(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			AnalysisID string `json:"analysisId"`
			ReviewID   string `json:"reviewId"`
			Status     string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Data.AnalysisID)
	assert.Equal(t, string(types.StatusPendingReview), resp.Data.Status)

	id, err := types.ParseID(resp.Data.AnalysisID)
	require.NoError(t, err)
	_, ok := store.byID[id]
	assert.True(t, ok)
}

func TestStageHandler_StartRequirements_BadProjectID(t *testing.T) {
	handler, _ := newTestHandler(t)

	body := `{"projectId":"not-a-uuid","projectDescription":"x","provider":"fake"}`
	req := httptest.NewRequest(http.MethodPost, "/requirements", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.StartRequirements(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
