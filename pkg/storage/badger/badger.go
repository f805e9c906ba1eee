// Package badger persists entity version logs in an embedded BadgerDB.
//
// Each entity's log is stored under one key as a JSON array of versions,
// so a log is always read and replaced atomically.
package badger

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/agentstation/curator/pkg/constants"
	"github.com/agentstation/curator/pkg/errors"
	"github.com/agentstation/curator/pkg/logging"
	"github.com/agentstation/curator/pkg/versions"
)

const keyPrefix = "log/"

// Compile-time interface check.
var _ versions.Store = (*Store)(nil)

// Config configures the database.
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string
	// InMemory keeps everything in memory. Useful for testing.
	InMemory bool
	// SyncWrites fsyncs every write.
	SyncWrites bool
	// GCInterval is how often to run value log garbage collection. Zero
	// disables it.
	GCInterval time.Duration
	// GCDiscardRatio is the minimum discardable fraction before a value
	// log file is rewritten.
	GCDiscardRatio float64
	// Logger receives badger's internal logs. Nil silences them.
	Logger *zerolog.Logger
}

// DefaultConfig returns settings for an on-disk database at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     constants.BadgerGCInterval,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns settings for a throwaway in-memory database.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Store is a versions.Store backed by BadgerDB.
type Store struct {
	db *badger.DB
	gc *gcRunner
}

// Open opens or creates the database described by cfg.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.NewConfigError("badger", "path is required for a persistent database", nil)
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, constants.DirPermissions); err != nil {
			return nil, errors.WrapIO("create", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.WrapIO("open", cfg.Path, err)
	}

	s := &Store{db: db}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gc = newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio)
		s.gc.start()
	}
	return s, nil
}

// Close stops garbage collection and closes the database.
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.stop()
	}
	return s.db.Close()
}

// Get implements versions.Store.
func (s *Store) Get(ctx context.Context, entityID string) ([]versions.DataVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var log []versions.DataVersion
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(entityID))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &log); err != nil {
				return errors.WrapSerialization(entityID, err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("badger get %s: %w", entityID, err)
	}
	if log == nil {
		log = []versions.DataVersion{}
	}
	return log, nil
}

// Put implements versions.Store. An empty log deletes the entity.
func (s *Store) Put(ctx context.Context, entityID string, log []versions.DataVersion) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(log) == 0 {
		return s.Delete(ctx, entityID)
	}
	data, err := json.Marshal(log)
	if err != nil {
		return errors.WrapSerialization(entityID, err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(entityID), data)
	}); err != nil {
		return fmt.Errorf("badger put %s: %w", entityID, err)
	}
	return nil
}

// Delete implements versions.Store.
func (s *Store) Delete(ctx context.Context, entityID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(entityID))
	}); err != nil {
		return fmt.Errorf("badger delete %s: %w", entityID, err)
	}
	return nil
}

// List implements versions.Store. Keys iterate in byte order, so ids come
// back sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids := []string{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(keyPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger list: %w", err)
	}
	return ids, nil
}

func key(entityID string) []byte {
	return []byte(keyPrefix + entityID)
}

// gcRunner periodically reclaims value log space.
type gcRunner struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func newGCRunner(db *badger.DB, interval time.Duration, ratio float64) *gcRunner {
	if ratio <= 0 || ratio > 1 {
		ratio = 0.5
	}
	return &gcRunner{
		db:       db,
		interval: interval,
		ratio:    ratio,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (r *gcRunner) start() {
	go r.run()
}

func (r *gcRunner) stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *gcRunner) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.collect()
		}
	}
}

func (r *gcRunner) collect() {
	err := r.db.RunValueLogGC(r.ratio)
	switch {
	case err == nil:
		logging.Debug().Msg("Badger value log GC completed")
	case stderrors.Is(err, badger.ErrNoRewrite):
		// nothing to reclaim
	default:
		logging.Warn().Err(err).Msg("Badger value log GC failed")
	}
}

// badgerLogger adapts zerolog to badger.Logger.
type badgerLogger struct {
	logger *zerolog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info().Msgf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}
