package assembly

import (
	"context"
	"fmt"

	"github.com/ideaforge/engine/internal/cache"
	"github.com/ideaforge/engine/types"
)

// CachedMetadata is the projection the Assembler writes per (stage,
// parentArtifactId, storyIndex?) on every assembly; it is never
// authoritative. Nothing in the engine reads it back through GetMetadata,
// and review decisions do not invalidate it.
type CachedMetadata struct {
	TokenEstimate      int        `json:"tokenEstimate"`
	SourceArtifactIDs []types.ID `json:"sourceArtifactIds"`
}

// Cache wraps the generic Redis manager with the key scheme this
// component needs.
type Cache struct {
	manager *cache.Manager
}

func NewCache(manager *cache.Manager) *Cache {
	return &Cache{manager: manager}
}

// cacheKey scopes the entry to (stage, parentArtifactID), plus storyIndex
// for PROMPT — two PROMPT assemblies against the same STORIES artifact but
// different stories must never collide on the same entry.
func cacheKey(stage types.Stage, parentArtifactID types.ID, storyIndex *int) string {
	if storyIndex != nil {
		return fmt.Sprintf("assembly:%s:%s:%d", stage, parentArtifactID, *storyIndex)
	}
	return fmt.Sprintf("assembly:%s:%s", stage, parentArtifactID)
}

func (c *Cache) PutMetadata(ctx context.Context, stage types.Stage, parentArtifactID types.ID, storyIndex *int, meta CachedMetadata) error {
	return c.manager.SetJSON(ctx, cacheKey(stage, parentArtifactID, storyIndex), meta, 0)
}

func (c *Cache) GetMetadata(ctx context.Context, stage types.Stage, parentArtifactID types.ID, storyIndex *int) (*CachedMetadata, error) {
	var meta CachedMetadata
	if err := c.manager.GetJSON(ctx, cacheKey(stage, parentArtifactID, storyIndex), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Invalidate drops the cached projection for stage rooted at
// parentArtifactID. Nothing in the engine calls it; a resolved review
// decision leaves the entry in place.
func (c *Cache) Invalidate(ctx context.Context, stage types.Stage, parentArtifactID types.ID, storyIndex *int) error {
	return c.manager.Delete(ctx, cacheKey(stage, parentArtifactID, storyIndex))
}
