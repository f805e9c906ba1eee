// Package retention runs version cleanup on a schedule.
package retention

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/agentstation/curator/pkg/clock"
	"github.com/agentstation/curator/pkg/constants"
	"github.com/agentstation/curator/pkg/errors"
	"github.com/agentstation/curator/pkg/logging"
	"github.com/agentstation/curator/pkg/versions"
)

// Cleaner removes versions outside a retention policy.
type Cleaner interface {
	Cleanup(ctx context.Context, opts versions.CleanupOptions) (*versions.CleanupResult, error)
}

// Compile-time interface check.
var _ Cleaner = (*versions.VersionStore)(nil)

// Scheduler runs a Cleaner every interval until stopped.
type Scheduler struct {
	cleaner  Cleaner
	clock    clock.Clock
	interval time.Duration
	timeout  time.Duration
	policy   versions.CleanupOptions
	onRun    func(*versions.CleanupResult, error)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the time between runs.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithTimeout bounds a single run.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithPolicy sets the cleanup options used by every run.
func WithPolicy(policy versions.CleanupOptions) Option {
	return func(s *Scheduler) { s.policy = policy }
}

// WithClock sets the clock driving the schedule.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithRunHook is called after every scheduled run.
func WithRunHook(fn func(*versions.CleanupResult, error)) Option {
	return func(s *Scheduler) { s.onRun = fn }
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(cleaner Cleaner, opts ...Option) *Scheduler {
	s := &Scheduler{
		cleaner:  cleaner,
		clock:    clock.New(),
		interval: constants.DefaultCleanupInterval,
		timeout:  constants.CleanupTimeout,
		policy:   versions.DefaultCleanupOptions(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins running cleanup every interval. Starting a running
// scheduler restarts it.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return &errors.ValidationError{
			Field:   "interval",
			Value:   s.interval,
			Message: "cleanup interval must be positive",
		}
	}
	if err := s.policy.Validate(); err != nil {
		return err
	}

	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	ticker := s.clock.NewTicker(s.interval)
	runCtx, cancel := context.WithCancel(logging.WithComponent(ctx, "retention"))
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C():
				result, err := s.RunOnce(runCtx)
				if s.onRun != nil {
					s.onRun(result, err)
				}
				if err != nil && (runCtx.Err() != nil || stderrors.Is(err, context.Canceled)) {
					return
				}
			case <-runCtx.Done():
				return
			}
		}
	}()

	logging.FromContext(ctx).Debug().
		Dur("interval", s.interval).
		Msg("Cleanup scheduler started")
	return nil
}

// Stop halts the scheduler and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the scheduler is started.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// RunOnce runs a single cleanup with the scheduler's policy and timeout.
func (s *Scheduler) RunOnce(ctx context.Context) (*versions.CleanupResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.cleaner.Cleanup(runCtx, s.policy)
	if err != nil {
		logging.FromContext(ctx).Error().Err(err).Msg("Scheduled cleanup failed")
		return result, err
	}
	logging.FromContext(ctx).Info().
		Int("removed", result.Removed).
		Int("entities", result.Entities).
		Msg("Scheduled cleanup finished")
	return result, nil
}
