package types

import "time"

// InstructionTemplate is a named, versioned instruction body loaded by the
// Instruction Store (§4.2). IsValid reflects whether every RequiredSections
// entry was found as a recognizable section header in Body at load time;
// an invalid template is still returnable but stage services reject it.
type InstructionTemplate struct {
	Name             InstructionName
	Version          string
	Body             string
	RequiredSections []string
	LastModified     time.Time
	IsValid          bool
}
