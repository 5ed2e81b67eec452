// Package types holds the data model and error taxonomy shared by every
// component of the orchestration engine: opaque identifiers, the Stage and
// Status enums, the StageArtifact/Review/InstructionTemplate records, and
// the single Error type that crosses package boundaries.
package types
