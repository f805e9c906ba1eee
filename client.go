// Package curator provides the main entry point for versioned entity
// curation. It ties together the append-only version store, conflict
// detection for in-progress edits, branching and merging, and retention
// cleanup behind one Client.
//
// Curator wraps the underlying packages with additional features including:
// - Event hooks for version creation, removal and detected conflicts
// - Scheduled retention cleanup with start and stop controls
// - Prometheus metrics for every store, merge and cleanup
// - Flexible configuration through functional options
//
// Example usage:
//
//	c, err := curator.New(curator.WithStore(versions.NewMemoryStore()))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	c.OnVersionCreated(func(v versions.DataVersion) {
//	    log.Printf("new version %s of %s", v.ID, v.EntityID)
//	})
//
//	v, err := c.Versions().CreateVersion(ctx, "band-7", data, versions.Metadata{Source: "import"})
//
//	// edit in a workflow item and commit it back
//	item, err := curator.Open[Band](ctx, c, "band-7")
//	item.Data.Name = "The Tide"
//	_, err = curator.Commit(ctx, c, item, versions.Metadata{Author: "ana"})
package curator

import (
	"context"
	"sync"

	"github.com/agentstation/curator/pkg/branch"
	"github.com/agentstation/curator/pkg/errors"
	"github.com/agentstation/curator/pkg/logging"
	"github.com/agentstation/curator/pkg/metrics"
	"github.com/agentstation/curator/pkg/retention"
	"github.com/agentstation/curator/pkg/storage/instrumented"
	"github.com/agentstation/curator/pkg/versions"
)

// Compile-time interface check to ensure proper implementation.
var _ Client = (*client)(nil)

// Client manages versioned entities with hooks, metrics and scheduled cleanup.
type Client interface {
	// Versions returns the version store
	Versions() *versions.VersionStore

	// Branches returns the branch manager
	Branches() *branch.Manager

	// Metrics returns the metrics recorder, or nil when metrics are disabled
	Metrics() *metrics.Recorder

	// Cleanup runs retention cleanup once with the configured policy,
	// overridden by opts when given
	Cleanup(ctx context.Context, opts ...versions.CleanupOptions) (*versions.CleanupResult, error)

	// Close stops background work
	Close() error

	// AutoCleaner provides access to scheduled cleanup controls
	AutoCleaner

	// Hooks provides access to event callback registration
	Hooks
}

// client is the internal implementation of the Client interface.
type client struct {
	options *options

	vs       *versions.VersionStore
	branches *branch.Manager
	metrics  *metrics.Recorder
	hooks    *hooks

	mu        sync.Mutex
	scheduler *retention.Scheduler
}

// New creates a new Client with the given options.
func New(opts ...Option) (Client, error) {
	o, err := defaults().apply(opts...)
	if err != nil {
		return nil, err
	}

	c := &client{
		options: o,
		hooks:   newHooks(),
	}

	var rec instrumented.Recorder
	if o.metricsEnabled {
		c.metrics = metrics.New(o.registerer)
		rec = c.metrics
	}
	store := instrumented.New(o.backend, o.store, rec)

	vsOpts := []versions.Option{
		versions.WithMaxVersionsPerItem(o.maxVersionsPerItem),
		versions.WithMinVersions(o.minVersions),
		versions.WithClock(o.clock),
		versions.WithObserver(c.hooks),
	}
	branchOpts := []branch.Option{}
	if c.metrics != nil {
		vsOpts = append(vsOpts, versions.WithObserver(c.metrics))
		branchOpts = append(branchOpts, branch.WithObserver(c.metrics))
	}
	c.vs = versions.New(store, vsOpts...)
	c.branches = branch.New(c.vs, branchOpts...)

	logging.Debug().
		Str("backend", o.backend).
		Int("max_versions_per_item", o.maxVersionsPerItem).
		Bool("metrics", o.metricsEnabled).
		Msg("Curator client created")

	if o.autoCleanupEnabled {
		if err := c.AutoCleanupOn(); err != nil {
			return nil, errors.WrapResource("start", "auto-cleanup", "", err)
		}
	}
	return c, nil
}

// Versions returns the version store.
func (c *client) Versions() *versions.VersionStore {
	return c.vs
}

// Branches returns the branch manager.
func (c *client) Branches() *branch.Manager {
	return c.branches
}

// Metrics returns the metrics recorder.
func (c *client) Metrics() *metrics.Recorder {
	return c.metrics
}

// Cleanup runs retention cleanup once.
func (c *client) Cleanup(ctx context.Context, opts ...versions.CleanupOptions) (*versions.CleanupResult, error) {
	policy := c.options.retention
	if len(opts) > 0 {
		policy = opts[0]
	}
	return c.vs.Cleanup(ctx, policy)
}

// Close stops scheduled cleanup.
func (c *client) Close() error {
	return c.AutoCleanupOff()
}
