package instructions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ideaforge/engine/types"
)

func writeTemplate(t *testing.T, dir, filename, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(body), 0o644))
}

func TestStore_GetValidTemplate(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "requirements_analyzer.yaml", `
name: RequirementsAnalyzer
version: "1"
required_sections:
  - "Task"
  - "Output Format"
body: |
  # Task
  Analyze the project description.

  # Output Format
  Return sections.
`)

	store, err := NewStore(dir, zap.NewNop())
	require.NoError(t, err)

	tpl, err := store.Get(types.InstructionRequirementsAnalyzer)
	require.NoError(t, err)
	assert.True(t, tpl.IsValid)
	assert.Equal(t, "1", tpl.Version)
}

func TestStore_InvalidTemplateMissingSection(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "story_generator.yaml", `
name: StoryGenerator
version: "1"
required_sections:
  - "Task"
  - "Output Format"
body: |
  # Task
  Generate stories.
`)

	store, err := NewStore(dir, zap.NewNop())
	require.NoError(t, err)

	tpl, err := store.Get(types.InstructionStoryGenerator)
	require.NoError(t, err)
	assert.False(t, tpl.IsValid)
}

func TestStore_GetUnknownTemplate(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, zap.NewNop())
	require.NoError(t, err)

	_, err = store.Get(types.InstructionPromptGenerator)
	require.Error(t, err)
	assert.Equal(t, types.NotFound, types.CodeOf(err))
}

func TestStore_Reload(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, zap.NewNop())
	require.NoError(t, err)

	_, err = store.Get(types.InstructionProjectPlanner)
	require.Error(t, err)

	writeTemplate(t, dir, "project_planner.yaml", `
name: ProjectPlanner
version: "1"
required_sections: []
body: |
  # Task
  Plan the project.
`)
	require.NoError(t, store.Reload())

	tpl, err := store.Get(types.InstructionProjectPlanner)
	require.NoError(t, err)
	assert.True(t, tpl.IsValid)
}
