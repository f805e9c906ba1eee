package curator

import (
	"context"

	"github.com/agentstation/curator/pkg/constants"
	"github.com/agentstation/curator/pkg/logging"
	"github.com/agentstation/curator/pkg/retention"
	"github.com/agentstation/curator/pkg/versions"
)

// Compile-time interface check to ensure proper implementation.
var _ AutoCleaner = (*client)(nil)

// AutoCleaner provides controls for scheduled retention cleanup.
type AutoCleaner interface {
	// AutoCleanupOn starts scheduled cleanup, restarting it if already running
	AutoCleanupOn() error

	// AutoCleanupOff stops scheduled cleanup
	AutoCleanupOff() error
}

// AutoCleanupOn starts scheduled cleanup with the configured interval and policy.
func (c *client) AutoCleanupOn() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.scheduler != nil {
		c.scheduler.Stop()
	}

	s := retention.NewScheduler(c.vs,
		retention.WithInterval(c.options.cleanupInterval),
		retention.WithTimeout(constants.CleanupTimeout),
		retention.WithPolicy(c.options.retention),
		retention.WithClock(c.options.clock),
		retention.WithRunHook(func(result *versions.CleanupResult, err error) {
			if err != nil {
				logging.Error().Err(err).Msg("Scheduled cleanup failed")
			}
		}),
	)
	if err := s.Start(context.Background()); err != nil {
		return err
	}
	c.scheduler = s

	logging.Info().
		Dur("interval", c.options.cleanupInterval).
		Msg("Auto-cleanup started")
	return nil
}

// AutoCleanupOff stops scheduled cleanup.
func (c *client) AutoCleanupOff() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.scheduler == nil {
		return nil
	}
	c.scheduler.Stop()
	c.scheduler = nil
	logging.Debug().Msg("Auto-cleanup stopped")
	return nil
}
