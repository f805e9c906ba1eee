package curator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentstation/curator/pkg/clock"
	"github.com/agentstation/curator/pkg/constants"
	"github.com/agentstation/curator/pkg/errors"
	"github.com/agentstation/curator/pkg/versions"
)

// Option is a function that configures a Client.
type Option func(*options) error

// options holds the client configuration.
type options struct {
	store              versions.Store
	backend            string
	maxVersionsPerItem int
	minVersions        int
	clock              clock.Clock

	retention          versions.CleanupOptions
	autoCleanupEnabled bool
	cleanupInterval    time.Duration

	metricsEnabled bool
	registerer     prometheus.Registerer
}

func defaults() *options {
	return &options{
		store:              versions.NewMemoryStore(),
		backend:            "memory",
		maxVersionsPerItem: constants.DefaultMaxVersionsPerItem,
		minVersions:        constants.DefaultMinVersions,
		clock:              clock.New(),
		retention:          versions.DefaultCleanupOptions(),
		cleanupInterval:    constants.DefaultCleanupInterval,
	}
}

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithStore sets the persistence backend. name labels it in metrics and logs.
func WithStore(store versions.Store, name ...string) Option {
	return func(o *options) error {
		if store == nil {
			return errors.NewValidationError("store", nil, "store must not be nil")
		}
		o.store = store
		o.backend = "custom"
		if len(name) > 0 && name[0] != "" {
			o.backend = name[0]
		}
		return nil
	}
}

// WithMaxVersionsPerItem caps each entity's log. Zero disables the cap.
func WithMaxVersionsPerItem(n int) Option {
	return func(o *options) error {
		if n < 0 {
			return errors.NewValidationError("maxVersionsPerItem", n, "must not be negative")
		}
		o.maxVersionsPerItem = n
		return nil
	}
}

// WithMinVersions sets the floor the per-item cap never evicts below.
func WithMinVersions(n int) Option {
	return func(o *options) error {
		if n < 0 {
			return errors.NewValidationError("minVersions", n, "must not be negative")
		}
		o.minVersions = n
		return nil
	}
}

// WithClock sets the clock used for timestamps and scheduling.
func WithClock(c clock.Clock) Option {
	return func(o *options) error {
		o.clock = c
		return nil
	}
}

// WithRetentionPolicy sets the cleanup policy used by Cleanup and auto-cleanup.
func WithRetentionPolicy(policy versions.CleanupOptions) Option {
	return func(o *options) error {
		if err := policy.Validate(); err != nil {
			return err
		}
		o.retention = policy
		return nil
	}
}

// WithAutoCleanup configures whether scheduled cleanup starts with the client.
func WithAutoCleanup(enabled bool) Option {
	return func(o *options) error {
		o.autoCleanupEnabled = enabled
		return nil
	}
}

// WithCleanupInterval configures how often scheduled cleanup runs.
func WithCleanupInterval(interval time.Duration) Option {
	return func(o *options) error {
		o.cleanupInterval = interval
		return nil
	}
}

// WithMetrics registers Prometheus metrics with reg. A nil reg uses the
// default registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) error {
		o.metricsEnabled = true
		o.registerer = reg
		return nil
	}
}
