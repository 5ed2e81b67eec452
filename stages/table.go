// Package stages implements the Stage Services (C6): one table-driven
// service parameterized by Stage, per the design note in spec §9 ("prefer
// a tagged stage enum plus a table of {prerequisites, instructionName,
// parser, modelHint} per stage" over a virtual hierarchy), grounded on the
// teacher's table-driven provider dispatch in llm/registry.go.
package stages

import (
	"github.com/ideaforge/engine/types"
)

// parseFunc turns a provider's raw text output into the stage's structured
// parsedOutput, marshaled as JSON for storage.
type parseFunc func(raw string) (any, error)

type stageDef struct {
	prerequisite    types.Stage // "" for REQ, which has none
	instructionName types.InstructionName
	parse           parseFunc
	modelHint       string
}

var table = map[types.Stage]stageDef{
	types.StageRequirements: {
		instructionName: types.InstructionRequirementsAnalyzer,
		parse:           parseRequirements,
		modelHint:       "",
	},
	types.StagePlanning: {
		prerequisite:    types.StageRequirements,
		instructionName: types.InstructionProjectPlanner,
		parse:           parsePlan,
	},
	types.StageStories: {
		prerequisite:    types.StagePlanning,
		instructionName: types.InstructionStoryGenerator,
		parse:           parseStories,
	},
	types.StagePrompt: {
		prerequisite:    types.StageStories,
		instructionName: types.InstructionPromptGenerator,
		parse:           parsePrompt,
	},
}
