// Package review implements the Review Registry (C3): the durable record
// of pending and decided human verdicts on artifacts, and the in-process
// notification mechanism that unblocks waiting stage services.
//
// Grounded on the teacher's agent/hitl InterruptManager: a Review here
// plays the role an Interrupt played there, a Store the role an
// InterruptStore played, and Registry the role InterruptManager played.
package review

import (
	"context"

	"github.com/ideaforge/engine/types"
)

// Store is the durable persistence contract behind a Registry. It is the
// only component with authority over a Review row; the Registry's
// in-memory pending map is a working-set cache on top of it.
type Store interface {
	Save(ctx context.Context, r *types.Review) error
	Load(ctx context.Context, id types.ID) (*types.Review, error)
	// ListPending returns every Review whose Decision is still Pending,
	// used both by listPending() and by restart reconciliation.
	ListPending(ctx context.Context) ([]*types.Review, error)
	Update(ctx context.Context, r *types.Review) error
}
