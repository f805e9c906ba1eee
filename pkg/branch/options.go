package branch

// Observer receives branch events. Implementations must be safe for
// concurrent use.
type Observer interface {
	BranchCreated(entityID, branchID string)
	MergeCompleted(result *MergeResult)
}

// Option configures a Manager.
type Option func(*Manager)

// WithObserver registers an event observer.
func WithObserver(obs Observer) Option {
	return func(m *Manager) {
		if obs != nil {
			m.observers = append(m.observers, obs)
		}
	}
}

// WithSource sets the metadata source recorded on branch and merge versions.
func WithSource(source string) Option {
	return func(m *Manager) {
		if source != "" {
			m.source = source
		}
	}
}
