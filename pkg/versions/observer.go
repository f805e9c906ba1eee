package versions

import "time"

// Observer receives version store events. Implementations must be safe
// for concurrent use and must not call back into the store.
type Observer interface {
	VersionCreated(v *DataVersion)
	DuplicateSkipped(entityID string)
	VersionsEvicted(entityID string, ids []string)
	CleanupCompleted(result *CleanupResult, elapsed time.Duration)
}

type observers []Observer

func (o observers) versionCreated(v *DataVersion) {
	for _, obs := range o {
		obs.VersionCreated(v)
	}
}

func (o observers) duplicateSkipped(entityID string) {
	for _, obs := range o {
		obs.DuplicateSkipped(entityID)
	}
}

func (o observers) versionsEvicted(entityID string, ids []string) {
	if len(ids) == 0 {
		return
	}
	for _, obs := range o {
		obs.VersionsEvicted(entityID, ids)
	}
}

func (o observers) cleanupCompleted(result *CleanupResult, elapsed time.Duration) {
	for _, obs := range o {
		obs.CleanupCompleted(result, elapsed)
	}
}
