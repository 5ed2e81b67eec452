package review

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ideaforge/engine/types"
)

// Handler is a one-shot callback fired from Decide, mirroring
// agent/hitl.InterruptHandler; delivery is at-most-once and callers must
// not rely on it surviving a process restart — Stage Services additionally
// reconcile via polling (§9).
type Handler func(r *types.Review)

type pendingEntry struct {
	review     *types.Review
	responseCh chan types.Decision
}

// Registry is the Review Registry (C3): the authoritative source of
// approval status, backed by a durable Store and an in-memory pending map
// for awaitDecision/subscribe delivery.
type Registry struct {
	store  Store
	logger *zap.Logger

	mu       sync.Mutex
	pending  map[types.ID]*pendingEntry
	handlers map[types.ID][]Handler // keyed by artifact id
}

// NewRegistry constructs a Registry and reconciles its pending working set
// from store (§9 pull-on-restart reconciliation): every Review still
// Pending in the durable store is re-armed so listPending/awaitDecision see
// it immediately, without replaying any notification that already fired
// before the restart.
func NewRegistry(ctx context.Context, store Store, logger *zap.Logger) (*Registry, error) {
	reg := &Registry{
		store:    store,
		logger:   logger.With(zap.String("component", "review_registry")),
		pending:  make(map[types.ID]*pendingEntry),
		handlers: make(map[types.ID][]Handler),
	}

	rows, err := store.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		reg.pending[r.ID] = &pendingEntry{review: r, responseCh: make(chan types.Decision, 1)}
	}
	reg.logger.Info("review registry reconciled", zap.Int("pending", len(rows)))
	return reg, nil
}

// Submit creates a Pending review for artifactID and persists it (§4.3).
func (reg *Registry) Submit(ctx context.Context, artifactID types.ID, stage types.Stage) (types.ID, error) {
	r := &types.Review{
		ID:          types.NewID(),
		ArtifactID:  artifactID,
		Stage:       stage,
		SubmittedAt: time.Now().UTC(),
		Decision:    types.DecisionPending,
	}
	if err := reg.store.Save(ctx, r); err != nil {
		return types.NilID, err
	}

	reg.mu.Lock()
	reg.pending[r.ID] = &pendingEntry{review: r, responseCh: make(chan types.Decision, 1)}
	reg.mu.Unlock()

	return r.ID, nil
}

// Get returns a review by id, preferring the durable record.
func (reg *Registry) Get(ctx context.Context, reviewID types.ID) (*types.Review, error) {
	return reg.store.Load(ctx, reviewID)
}

// Decide transitions a Pending review to Approved or Rejected, persists
// it, fires any subscribed handlers, and releases any awaitDecision
// waiter. A second call with the same decision is a no-op; a conflicting
// second call returns ReviewConflict (§8 round-trip law).
func (reg *Registry) Decide(ctx context.Context, reviewID types.ID, decision types.Decision, feedback string) error {
	r, err := reg.store.Load(ctx, reviewID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if tErr := r.Decide(decision, feedback, now); tErr != nil {
		return tErr
	}
	if err := reg.store.Update(ctx, r); err != nil {
		return err
	}

	reg.mu.Lock()
	entry, ok := reg.pending[reviewID]
	delete(reg.pending, reviewID)
	handlers := reg.handlers[r.ArtifactID]
	delete(reg.handlers, r.ArtifactID)
	reg.mu.Unlock()

	if ok {
		select {
		case entry.responseCh <- r.Decision:
		default:
		}
	}
	for _, h := range handlers {
		go h(r)
	}
	return nil
}

// ListPending returns every review still awaiting a decision.
func (reg *Registry) ListPending(ctx context.Context) ([]*types.Review, error) {
	return reg.store.ListPending(ctx)
}

// AwaitDecision blocks until reviewID is decided or deadline elapses,
// returning types.Timeout in the latter case without side effects (§5
// Cancellation and timeouts).
func (reg *Registry) AwaitDecision(ctx context.Context, reviewID types.ID, deadline time.Time) (types.Decision, error) {
	reg.mu.Lock()
	entry, ok := reg.pending[reviewID]
	reg.mu.Unlock()
	if !ok {
		r, err := reg.store.Load(ctx, reviewID)
		if err != nil {
			return "", err
		}
		if r.Decision != types.DecisionPending {
			return r.Decision, nil
		}
		return "", types.NewError(types.NotFound, "review %s has no pending waiter registered", reviewID)
	}

	waitCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	select {
	case d := <-entry.responseCh:
		return d, nil
	case <-waitCtx.Done():
		return "", types.NewError(types.Timeout, "awaiting decision for review %s", reviewID)
	}
}

// Subscribe registers a one-shot handler invoked from Decide once the
// review tied to artifactID resolves. At-most-once delivery; callers that
// need to survive a restart must also poll (§9).
func (reg *Registry) Subscribe(artifactID types.ID, handler Handler) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.handlers[artifactID] = append(reg.handlers[artifactID], handler)
}
