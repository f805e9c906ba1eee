package curator

import (
	"sync"
	"time"

	"github.com/agentstation/curator/pkg/conflict"
	"github.com/agentstation/curator/pkg/versions"
)

// Hook function types for version events
type (
	// VersionCreatedHook is called after a version is appended to an entity log
	VersionCreatedHook func(v versions.DataVersion)

	// VersionsRemovedHook is called when versions leave a log through
	// eviction or retention cleanup
	VersionsRemovedHook func(entityID string, ids []string)

	// ConflictsDetectedHook is called when refreshing a workflow item finds conflicts
	ConflictsDetectedHook func(entityID string, conflicts []conflict.Record)
)

// Hooks registers callbacks for version events. Hooks run synchronously.
// Version-created hooks and evictions on write run while the entity is
// locked and must not write to the same entity; cleanup reports removed
// versions after every entity lock is released.
type Hooks interface {
	OnVersionCreated(fn VersionCreatedHook)
	OnVersionsRemoved(fn VersionsRemovedHook)
	OnConflictsDetected(fn ConflictsDetectedHook)
}

var (
	_ Hooks             = (*client)(nil)
	_ versions.Observer = (*hooks)(nil)
)

// hooks manages event callbacks for version changes
type hooks struct {
	mu                  sync.RWMutex
	onVersionCreated    []VersionCreatedHook
	onVersionsRemoved   []VersionsRemovedHook
	onConflictsDetected []ConflictsDetectedHook
}

func newHooks() *hooks {
	return &hooks{}
}

// OnVersionCreated registers a callback for new versions.
func (c *client) OnVersionCreated(fn VersionCreatedHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onVersionCreated = append(c.hooks.onVersionCreated, fn)
}

// OnVersionsRemoved registers a callback for evicted or cleaned up versions.
func (c *client) OnVersionsRemoved(fn VersionsRemovedHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onVersionsRemoved = append(c.hooks.onVersionsRemoved, fn)
}

// OnConflictsDetected registers a callback for conflicts found by Refresh.
func (c *client) OnConflictsDetected(fn ConflictsDetectedHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onConflictsDetected = append(c.hooks.onConflictsDetected, fn)
}

func (h *hooks) VersionCreated(v *versions.DataVersion) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onVersionCreated {
		fn(*v)
	}
}

func (h *hooks) DuplicateSkipped(string) {}

func (h *hooks) VersionsEvicted(entityID string, ids []string) {
	h.removed(entityID, ids)
}

func (h *hooks) CleanupCompleted(result *versions.CleanupResult, _ time.Duration) {
	for entityID, ids := range result.RemovedVersions {
		h.removed(entityID, ids)
	}
}

func (h *hooks) removed(entityID string, ids []string) {
	if len(ids) == 0 {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onVersionsRemoved {
		fn(entityID, ids)
	}
}

func (h *hooks) conflictsDetected(entityID string, records []conflict.Record) {
	if len(records) == 0 {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onConflictsDetected {
		fn(entityID, records)
	}
}
