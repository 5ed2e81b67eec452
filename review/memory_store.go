package review

import (
	"context"
	"sync"

	"github.com/ideaforge/engine/types"
)

// MemoryStore is a mutex-guarded in-memory Store, used in tests the way
// agent/hitl.InMemoryInterruptStore was used for InterruptManager tests.
type MemoryStore struct {
	mu      sync.RWMutex
	reviews map[types.ID]*types.Review
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reviews: make(map[types.ID]*types.Review)}
}

func (s *MemoryStore) Save(ctx context.Context, r *types.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.reviews[r.ID] = &cp
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, id types.ID) (*types.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[id]
	if !ok {
		return nil, types.NewError(types.NotFound, "review %s not found", id)
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) ListPending(ctx context.Context) ([]*types.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Review
	for _, r := range s.reviews {
		if r.Decision == types.DecisionPending {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, r *types.Review) error {
	return s.Save(ctx, r)
}
