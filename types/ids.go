package types

import "github.com/google/uuid"

// ID is the opaque 128-bit identifier used for every entity named in the
// data model: projects, artifacts, reviews.
type ID = uuid.UUID

// NilID is the zero value, used to mean "no parent" / "not set".
var NilID = uuid.Nil

// NewID mints a fresh random identifier.
func NewID() ID {
	return uuid.New()
}

// ParseID parses a string form of an ID, as accepted at the boundary.
func ParseID(s string) (ID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return NilID, NewError(ArgumentInvalid, "invalid identifier").WithCause(err)
	}
	return id, nil
}
