package types

import "time"

// Project is the root of the artifact tree; deletion cascades to every
// artifact and review owned by it.
type Project struct {
	ID          ID
	Name        string
	Description string
	CreatedAt   time.Time
}
