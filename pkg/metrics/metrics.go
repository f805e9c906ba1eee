// Package metrics exposes Prometheus instrumentation for the version
// store, branch merges, conflict detection and storage backends.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/agentstation/curator/pkg/branch"
	"github.com/agentstation/curator/pkg/versions"
)

const namespace = "curator"

// Compile-time interface checks.
var (
	_ versions.Observer = (*Recorder)(nil)
	_ branch.Observer   = (*Recorder)(nil)
)

// Recorder collects curator metrics into a registry.
type Recorder struct {
	versionsCreated   *prometheus.CounterVec
	duplicatesSkipped prometheus.Counter
	versionsEvicted   prometheus.Counter
	conflicts         *prometheus.CounterVec
	branches          prometheus.Counter
	merges            *prometheus.CounterVec
	cleanupRuns       prometheus.Counter
	cleanupVersions   *prometheus.CounterVec
	cleanupSkipped    prometheus.Counter
	cleanupDuration   prometheus.Histogram
	storeLatency      *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec
}

// New registers the curator metrics with reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Recorder{
		// versionsCreated counts committed versions.
		// Labels: operation (create, update, delete, restore)
		versionsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "versions",
			Name:      "created_total",
			Help:      "Versions committed, by operation",
		}, []string{"operation"}),

		duplicatesSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "versions",
			Name:      "duplicates_skipped_total",
			Help:      "Writes skipped because the data matched the latest version",
		}),

		versionsEvicted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "versions",
			Name:      "evicted_total",
			Help:      "Versions evicted by the per-item cap",
		}),

		// conflicts counts detected conflicts.
		// Labels: type (edit, add, delete)
		conflicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conflicts",
			Name:      "detected_total",
			Help:      "Conflicts detected between user edits and external data",
		}, []string{"type"}),

		branches: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "branches",
			Name:      "created_total",
			Help:      "Branches created",
		}),

		// merges counts branch merges.
		// Labels: outcome (committed, pending, conflict, up_to_date)
		merges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "branches",
			Name:      "merges_total",
			Help:      "Branch merges, by outcome",
		}, []string{"outcome"}),

		cleanupRuns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "runs_total",
			Help:      "Completed retention cleanups",
		}),

		// cleanupVersions counts versions seen by cleanup.
		// Labels: result (removed, preserved)
		cleanupVersions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "versions_total",
			Help:      "Versions removed or preserved by retention cleanup",
		}, []string{"result"}),

		cleanupSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "skipped_entities_total",
			Help:      "Entities skipped by cleanup because their log was unreadable",
		}),

		cleanupDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "duration_seconds",
			Help:      "Retention cleanup duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		}),

		// storeLatency measures backend calls.
		// Labels: backend, op (get, put, delete, list)
		storeLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_seconds",
			Help:      "Store operation latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"backend", "op"}),

		storeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Failed store operations",
		}, []string{"backend", "op"}),
	}
}

// VersionCreated implements versions.Observer.
func (r *Recorder) VersionCreated(v *versions.DataVersion) {
	r.versionsCreated.WithLabelValues(string(v.Metadata.Operation)).Inc()
}

// DuplicateSkipped implements versions.Observer.
func (r *Recorder) DuplicateSkipped(string) {
	r.duplicatesSkipped.Inc()
}

// VersionsEvicted implements versions.Observer.
func (r *Recorder) VersionsEvicted(_ string, ids []string) {
	r.versionsEvicted.Add(float64(len(ids)))
}

// CleanupCompleted implements versions.Observer.
func (r *Recorder) CleanupCompleted(result *versions.CleanupResult, elapsed time.Duration) {
	r.cleanupRuns.Inc()
	r.cleanupVersions.WithLabelValues("removed").Add(float64(result.Removed))
	r.cleanupVersions.WithLabelValues("preserved").Add(float64(result.Preserved))
	r.cleanupSkipped.Add(float64(len(result.Skipped)))
	r.cleanupDuration.Observe(elapsed.Seconds())
}

// BranchCreated implements branch.Observer.
func (r *Recorder) BranchCreated(string, string) {
	r.branches.Inc()
}

// MergeCompleted implements branch.Observer.
func (r *Recorder) MergeCompleted(result *branch.MergeResult) {
	r.merges.WithLabelValues(mergeOutcome(result)).Inc()
}

// ConflictDetected records one detected conflict of the given type.
func (r *Recorder) ConflictDetected(conflictType string) {
	r.conflicts.WithLabelValues(conflictType).Inc()
}

// StoreOperation records a backend call.
func (r *Recorder) StoreOperation(backend, op string, elapsed time.Duration, err error) {
	r.storeLatency.WithLabelValues(backend, op).Observe(elapsed.Seconds())
	if err != nil {
		r.storeErrors.WithLabelValues(backend, op).Inc()
	}
}

func mergeOutcome(result *branch.MergeResult) string {
	switch {
	case result.HasConflicts():
		return "conflict"
	case result.Committed:
		return "committed"
	case result.Strategy == branch.Manual && result.Version == nil:
		return "pending"
	default:
		return "up_to_date"
	}
}
