// Package pipeline implements the Pipeline Coordinator (C7): the read-side
// aggregate view across a project's four stages, concurrently fanned out
// per stage the way the teacher's validator chain fans out independent
// checks with golang.org/x/sync/errgroup.
package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ideaforge/engine/artifact"
	"github.com/ideaforge/engine/types"
)

// StageCounts summarizes every artifact of one stage within a project.
type StageCounts struct {
	Total    int
	Approved int
	Pending  int
	Failed   int
}

// Coordinator answers cross-stage questions without owning any stage
// transition itself; all writes still flow through the Stage Services.
type Coordinator struct {
	artifacts artifact.Store
}

func NewCoordinator(artifacts artifact.Store) *Coordinator {
	return &Coordinator{artifacts: artifacts}
}

var orderedStages = []types.Stage{
	types.StageRequirements,
	types.StagePlanning,
	types.StageStories,
	types.StagePrompt,
}

// CanProgress reports whether a project has an Approved artifact for
// targetStage's prerequisite (or targetStage is REQ, which has none).
func (c *Coordinator) CanProgress(ctx context.Context, projectID types.ID, targetStage types.Stage) (bool, error) {
	if targetStage == types.StageRequirements {
		return true, nil
	}
	prereq, ok := prerequisiteOf(targetStage)
	if !ok {
		return false, types.NewError(types.ArgumentInvalid, "unknown stage %q", targetStage)
	}
	_, err := c.artifacts.FindApprovedUpstream(ctx, projectID, prereq)
	if err != nil {
		if types.CodeOf(err) == types.NotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func prerequisiteOf(stage types.Stage) (types.Stage, bool) {
	switch stage {
	case types.StagePlanning:
		return types.StageRequirements, true
	case types.StageStories:
		return types.StagePlanning, true
	case types.StagePrompt:
		return types.StageStories, true
	default:
		return "", false
	}
}

// Progress returns, for every stage, a tally of its artifacts in this
// project. Each stage's artifact list is fetched concurrently; the first
// failing fetch cancels the others and Progress returns that error with
// no partial result (§4.7).
func (c *Coordinator) Progress(ctx context.Context, projectID types.ID) (map[types.Stage]StageCounts, error) {
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	out := make(map[types.Stage]StageCounts, len(orderedStages))

	for _, stage := range orderedStages {
		stage := stage
		g.Go(func() error {
			counts, err := c.stageCounts(gctx, projectID, stage)
			if err != nil {
				return err
			}
			mu.Lock()
			out[stage] = counts
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Coordinator) stageCounts(ctx context.Context, projectID types.ID, stage types.Stage) (StageCounts, error) {
	artifacts, err := c.artifacts.ListByProjectStage(ctx, projectID, stage)
	if err != nil {
		return StageCounts{}, err
	}
	var counts StageCounts
	for _, a := range artifacts {
		counts.Total++
		switch a.Status {
		case types.StatusApproved:
			counts.Approved++
		case types.StatusFailed, types.StatusRejected:
			counts.Failed++
		case types.StatusProcessing, types.StatusPendingReview:
			counts.Pending++
		}
	}
	return counts, nil
}

// LatestApproved returns the most recently Approved artifact id of stage
// for project, or (NilID, false) if none exists.
func (c *Coordinator) LatestApproved(ctx context.Context, projectID types.ID, stage types.Stage) (types.ID, bool, error) {
	art, err := c.artifacts.FindApprovedUpstream(ctx, projectID, stage)
	if err != nil {
		if types.CodeOf(err) == types.NotFound {
			return types.NilID, false, nil
		}
		return types.NilID, false, err
	}
	return art.ID, true, nil
}
