package types

// Stage identifies one step of the ideation pipeline. Stage order is fixed:
// REQ -> PLAN -> STORIES -> PROMPT.
type Stage string

const (
	StageRequirements Stage = "REQ"
	StagePlanning     Stage = "PLAN"
	StageStories      Stage = "STORIES"
	StagePrompt       Stage = "PROMPT"
)

// Next returns the stage that follows s, and false if s is terminal.
func (s Stage) Next() (Stage, bool) {
	switch s {
	case StageRequirements:
		return StagePlanning, true
	case StagePlanning:
		return StageStories, true
	case StageStories:
		return StagePrompt, true
	default:
		return "", false
	}
}

func (s Stage) Valid() bool {
	switch s {
	case StageRequirements, StagePlanning, StageStories, StagePrompt:
		return true
	default:
		return false
	}
}

// Status is the lifecycle state of a StageArtifact. Transitions are
// restricted per invariant 1: Processing -> (PendingReview|Failed);
// PendingReview -> (Approved|Rejected).
type Status string

const (
	StatusNotStarted   Status = "NotStarted"
	StatusProcessing   Status = "Processing"
	StatusPendingReview Status = "PendingReview"
	StatusApproved     Status = "Approved"
	StatusRejected     Status = "Rejected"
	StatusFailed       Status = "Failed"
)

// Terminal reports whether status has no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusFailed:
		return true
	default:
		return false
	}
}

// CanTransitionTo enforces invariant 1's DAG of legal transitions.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusProcessing:
		return next == StatusPendingReview || next == StatusFailed
	case StatusPendingReview:
		return next == StatusApproved || next == StatusRejected
	default:
		return false
	}
}

// Decision is the reviewer's verdict on a Review.
type Decision string

const (
	DecisionPending  Decision = "Pending"
	DecisionApproved Decision = "Approved"
	DecisionRejected Decision = "Rejected"
)

// Priority ranks a UserStory.
type Priority string

const (
	PriorityCritical Priority = "Critical"
	PriorityHigh     Priority = "High"
	PriorityMedium   Priority = "Medium"
	PriorityLow      Priority = "Low"
)

// InstructionName enumerates the fixed set of named instruction templates,
// one per stage.
type InstructionName string

const (
	InstructionRequirementsAnalyzer InstructionName = "RequirementsAnalyzer"
	InstructionProjectPlanner       InstructionName = "ProjectPlanner"
	InstructionStoryGenerator       InstructionName = "StoryGenerator"
	InstructionPromptGenerator      InstructionName = "PromptGenerator"
)

// InstructionForStage returns the fixed instruction name bound to a stage.
func InstructionForStage(s Stage) InstructionName {
	switch s {
	case StageRequirements:
		return InstructionRequirementsAnalyzer
	case StagePlanning:
		return InstructionProjectPlanner
	case StageStories:
		return InstructionStoryGenerator
	case StagePrompt:
		return InstructionPromptGenerator
	default:
		return ""
	}
}
