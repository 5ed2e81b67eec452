package stages

import (
	"strconv"
	"strings"

	"github.com/ideaforge/engine/types"
)

// splitSections parses a "# Header\nbody..." delimited document into a
// name->body map, the same recognizable-header convention the Instruction
// Store and Context Assembler use for their fixed section headers.
func splitSections(raw string) map[string]string {
	sections := make(map[string]string)
	var currentName string
	var currentBody strings.Builder

	flush := func() {
		if currentName != "" {
			sections[currentName] = strings.TrimSpace(currentBody.String())
		}
	}

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			flush()
			currentName = strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
			currentBody.Reset()
			continue
		}
		currentBody.WriteString(line)
		currentBody.WriteByte('\n')
	}
	flush()
	return sections
}

func parseRequirements(raw string) (any, error) {
	sections := splitSections(raw)
	if len(sections) == 0 {
		return nil, types.NewError(types.ParseError, "requirements output has no recognizable sections")
	}
	return types.RequirementsDocument{Sections: sections}, nil
}

func parsePlan(raw string) (any, error) {
	sections := splitSections(raw)
	if len(sections) == 0 {
		return nil, types.NewError(types.ParseError, "planning output has no recognizable sections")
	}
	return types.ProjectPlan{Sections: sections}, nil
}

// parseStories recognizes a section-delimited list of stories, each
// introduced by a "## " header (the story title) and carrying Title,
// Description, Acceptance Criteria, Priority, Estimated Complexity fields
// as "Key: value" lines, tolerating missing optional fields by defaulting
// (§4.6 step 6).
func parseStories(raw string) (any, error) {
	blocks := splitStoryBlocks(raw)
	if len(blocks) == 0 {
		return nil, types.NewError(types.ParseError, "stories output has no recognizable story blocks")
	}

	stories := make([]types.UserStory, 0, len(blocks))
	for _, block := range blocks {
		stories = append(stories, parseStoryBlock(block))
	}
	return types.StoriesDocument{Stories: stories}, nil
}

func splitStoryBlocks(raw string) []string {
	var blocks []string
	var current strings.Builder
	for _, line := range strings.Split(raw, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "## ") {
			if current.Len() > 0 {
				blocks = append(blocks, current.String())
				current.Reset()
			}
		}
		current.WriteString(line)
		current.WriteByte('\n')
	}
	if strings.TrimSpace(current.String()) != "" {
		blocks = append(blocks, current.String())
	}
	return blocks
}

func parseStoryBlock(block string) types.UserStory {
	story := types.UserStory{
		Priority: types.PriorityMedium, // default when the field is missing
	}
	var acceptance []string
	inAcceptance := false

	for _, line := range strings.Split(block, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "## "):
			story.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, "##"))
			inAcceptance = false
		case strings.HasPrefix(trimmed, "Title:"):
			story.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, "Title:"))
			inAcceptance = false
		case strings.HasPrefix(trimmed, "Description:"):
			story.Description = strings.TrimSpace(strings.TrimPrefix(trimmed, "Description:"))
			inAcceptance = false
		case strings.HasPrefix(trimmed, "Acceptance Criteria:"):
			inAcceptance = true
			rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "Acceptance Criteria:"))
			if rest != "" {
				acceptance = append(acceptance, rest)
			}
		case strings.HasPrefix(trimmed, "Priority:"):
			story.Priority = parsePriority(strings.TrimSpace(strings.TrimPrefix(trimmed, "Priority:")))
			inAcceptance = false
		case strings.HasPrefix(trimmed, "Estimated Complexity:"):
			story.StoryPoints = parseComplexity(strings.TrimSpace(strings.TrimPrefix(trimmed, "Estimated Complexity:")))
			inAcceptance = false
		case strings.HasPrefix(trimmed, "- ") && inAcceptance:
			acceptance = append(acceptance, strings.TrimSpace(strings.TrimPrefix(trimmed, "-")))
		default:
			// tolerate free text between fields
		}
	}

	story.AcceptanceCriteria = acceptance
	return story
}

func parsePriority(s string) types.Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return types.PriorityCritical
	case "high":
		return types.PriorityHigh
	case "low":
		return types.PriorityLow
	default:
		return types.PriorityMedium
	}
}

// parseComplexity accepts either a bare integer or a t-shirt size, since
// the instruction template may ask the provider for either.
func parseComplexity(s string) int {
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return n
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "small", "s":
		return 1
	case "medium", "m":
		return 3
	case "large", "l":
		return 5
	case "extra large", "xl":
		return 8
	default:
		return 0
	}
}

func parsePrompt(raw string) (any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, types.NewError(types.ParseError, "prompt output is empty")
	}
	return types.GeneratedPrompt{Content: raw}, nil
}
