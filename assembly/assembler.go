// Package assembly implements the Context Assembler (C5): gathers approved
// upstream artifacts, the stage's instruction template, and caller
// preferences into one ordered prompt, enforcing a token size budget.
package assembly

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/ideaforge/engine/artifact"
	"github.com/ideaforge/engine/instructions"
	"github.com/ideaforge/engine/types"
)

const (
	defaultTokenBudget  = 100_000
	absoluteTokenCeiling = 180_000
)

// upstreamSection pairs a required upstream stage with the literal,
// stable section header downstream parsers key off (§4.5 step 4).
type upstreamSection struct {
	stage  types.Stage
	header string
}

var requiredUpstreams = map[types.Stage][]upstreamSection{
	types.StageRequirements: nil,
	types.StagePlanning: {
		{types.StageRequirements, "# Requirements Analysis Content"},
	},
	types.StageStories: {
		{types.StageRequirements, "# Requirements Analysis Content"},
		{types.StagePlanning, "# Project Planning Content"},
	},
	types.StagePrompt: {
		{types.StageRequirements, "# Requirements Analysis Content"},
		{types.StagePlanning, "# Project Planning Content"},
		{types.StageStories, "# User Stories Content"},
	},
}

// Result is the Context Assembler's output: the ordered prompt plus the
// metadata block named in §4.5.
type Result struct {
	Prompt            string
	TokenEstimate      int
	SourceArtifactIDs []types.ID
	Warning           string
}

// Assembler composes prompts from C4 upstream lookups and C2 instruction
// templates.
type Assembler struct {
	artifacts    artifact.Store
	instructions *instructions.Store
	cache        *Cache // optional; nil disables caching
}

func NewAssembler(artifacts artifact.Store, instr *instructions.Store, cache *Cache) *Assembler {
	return &Assembler{artifacts: artifacts, instructions: instr, cache: cache}
}

// Request is the Context Assembler's input (§4.5).
type Request struct {
	Stage               types.Stage
	ProjectID           types.ID
	CallerPreferences   string
	ExtraHints          string
	StoryIndex          *int // required when Stage == PROMPT
}

// Assemble runs the algorithm in §4.5: fetch each required upstream's
// approved parsedOutput, fetch the instruction template, compose fixed
// sections, and estimate token cost.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*Result, error) {
	tpl, err := a.instructions.Get(types.InstructionForStage(req.Stage))
	if err != nil {
		return nil, err
	}
	if !tpl.IsValid {
		return nil, types.NewError(types.InstructionInvalid, "instruction template %q is missing required sections", tpl.Name)
	}

	var sections []string
	var sourceIDs []types.ID
	sections = append(sections, tpl.Body)

	// parentArtifactID is the stage's immediate prerequisite artifact (the
	// last upstream fetched below); REQ has none, so it falls back to the
	// project id, which is still a stable, unique cache scope for it.
	parentArtifactID := req.ProjectID

	for _, up := range requiredUpstreams[req.Stage] {
		art, err := a.artifacts.FindApprovedUpstream(ctx, req.ProjectID, up.stage)
		if err != nil {
			return nil, types.NewError(types.PrerequisiteMissing, "required upstream %s is not Approved: %v", up.stage, err)
		}
		sourceIDs = append(sourceIDs, art.ID)
		sections = append(sections, up.header+"\n"+bodyOf(art))
		parentArtifactID = art.ID
	}

	if req.Stage == types.StagePrompt {
		if req.StoryIndex == nil {
			return nil, types.NewError(types.ArgumentInvalid, "storyIndex is required for PROMPT assembly")
		}
		storiesArt, err := a.artifacts.FindApprovedUpstream(ctx, req.ProjectID, types.StageStories)
		if err != nil {
			return nil, types.NewError(types.PrerequisiteMissing, "required upstream STORIES is not Approved: %v", err)
		}
		story, err := a.artifacts.GetStoryAt(ctx, storiesArt.ID, *req.StoryIndex)
		if err != nil {
			return nil, err
		}
		sections = append(sections, fmt.Sprintf("# Selected Story\n%s\n%s", story.Title, story.Description))
	}

	if req.CallerPreferences != "" {
		sections = append(sections, "# Caller Preferences\n"+req.CallerPreferences)
	}
	if req.ExtraHints != "" {
		sections = append(sections, "# Extra Hints\n"+req.ExtraHints)
	}

	prompt := strings.Join(sections, "\n\n")
	tokens := int(math.Ceil(float64(len(prompt)) / 4))

	result := &Result{
		Prompt:            prompt,
		TokenEstimate:      tokens,
		SourceArtifactIDs: sourceIDs,
	}
	if tokens > absoluteTokenCeiling {
		return nil, types.NewError(types.ArgumentInvalid, "assembled prompt estimated at %d tokens exceeds absolute ceiling %d", tokens, absoluteTokenCeiling)
	}
	if tokens > defaultTokenBudget {
		result.Warning = fmt.Sprintf("assembled prompt estimated at %d tokens exceeds the %d token budget", tokens, defaultTokenBudget)
	}

	if a.cache != nil {
		_ = a.cache.PutMetadata(ctx, req.Stage, parentArtifactID, req.StoryIndex, CachedMetadata{
			TokenEstimate:      tokens,
			SourceArtifactIDs: sourceIDs,
		})
	}

	return result, nil
}

// bodyOf extracts a human-readable body from an artifact's parsed output
// for inclusion in an upstream section; falls back to RawOutput when the
// structured form can't be rendered (defensive only against artifacts
// persisted before a parser change).
func bodyOf(a *types.StageArtifact) string {
	switch a.Stage {
	case types.StageRequirements:
		var doc types.RequirementsDocument
		if err := json.Unmarshal(a.ParsedOutput, &doc); err == nil {
			return renderSections(doc.Sections)
		}
	case types.StagePlanning:
		var doc types.ProjectPlan
		if err := json.Unmarshal(a.ParsedOutput, &doc); err == nil {
			return renderSections(doc.Sections)
		}
	case types.StageStories:
		var doc types.StoriesDocument
		if err := json.Unmarshal(a.ParsedOutput, &doc); err == nil {
			var b strings.Builder
			for _, s := range doc.Stories {
				fmt.Fprintf(&b, "- %s: %s\n", s.Title, s.Description)
			}
			return b.String()
		}
	}
	return a.RawOutput
}

func renderSections(sections map[string]string) string {
	var b strings.Builder
	for name, body := range sections {
		fmt.Fprintf(&b, "## %s\n%s\n", name, body)
	}
	return b.String()
}
