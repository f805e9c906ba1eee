package versions

import (
	"github.com/agentstation/curator/pkg/clock"
	"github.com/agentstation/curator/pkg/constants"
	"github.com/agentstation/curator/pkg/differ"
)

// Options configures a VersionStore.
type Options struct {
	// MaxVersionsPerItem caps each entity's log. Zero disables the cap.
	MaxVersionsPerItem int
	// MinVersions is the floor eviction never goes below.
	MinVersions int
	Clock       clock.Clock
	Differ      differ.Differ
	Observers   []Observer
}

// Option is a functional option for the version store.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		MaxVersionsPerItem: constants.DefaultMaxVersionsPerItem,
		MinVersions:        constants.DefaultMinVersions,
		Clock:              clock.New(),
		Differ:             differ.New(),
	}
}

// WithMaxVersionsPerItem caps the number of versions kept per entity.
func WithMaxVersionsPerItem(n int) Option {
	return func(o *Options) {
		if n >= 0 {
			o.MaxVersionsPerItem = n
		}
	}
}

// WithMinVersions sets the eviction floor.
func WithMinVersions(n int) Option {
	return func(o *Options) {
		if n >= 0 {
			o.MinVersions = n
		}
	}
}

// WithClock sets the clock used for timestamps and retention cutoffs.
func WithClock(c clock.Clock) Option {
	return func(o *Options) {
		if c != nil {
			o.Clock = c
		}
	}
}

// WithDiffer sets the differ used by CompareVersions.
func WithDiffer(d differ.Differ) Option {
	return func(o *Options) {
		if d != nil {
			o.Differ = d
		}
	}
}

// WithObserver registers an event observer.
func WithObserver(obs Observer) Option {
	return func(o *Options) {
		if obs != nil {
			o.Observers = append(o.Observers, obs)
		}
	}
}
