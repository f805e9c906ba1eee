// Package instrumented decorates a versions.Store with tracing, latency
// metrics and debug logging.
package instrumented

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentstation/curator/pkg/logging"
	"github.com/agentstation/curator/pkg/versions"
)

var tracer = otel.Tracer("github.com/agentstation/curator/pkg/storage")

// Recorder receives one observation per store call.
type Recorder interface {
	StoreOperation(backend, op string, elapsed time.Duration, err error)
}

// New wraps w. backend names the wrapped store in spans and metrics.
func New(backend string, w versions.Store, rec Recorder) versions.Store {
	return &instrumentedStore{backend: backend, w: w, rec: rec}
}

type instrumentedStore struct {
	backend string
	w       versions.Store
	rec     Recorder
}

func (i *instrumentedStore) Get(ctx context.Context, entityID string) (log []versions.DataVersion, err error) {
	i.observe(ctx, "get", entityID, func(ctx context.Context) error {
		log, err = i.w.Get(ctx, entityID)
		return err
	})
	return
}

func (i *instrumentedStore) Put(ctx context.Context, entityID string, log []versions.DataVersion) (err error) {
	i.observe(ctx, "put", entityID, func(ctx context.Context) error {
		err = i.w.Put(ctx, entityID, log)
		return err
	})
	return
}

func (i *instrumentedStore) Delete(ctx context.Context, entityID string) (err error) {
	i.observe(ctx, "delete", entityID, func(ctx context.Context) error {
		err = i.w.Delete(ctx, entityID)
		return err
	})
	return
}

func (i *instrumentedStore) List(ctx context.Context) (ids []string, err error) {
	i.observe(ctx, "list", "", func(ctx context.Context) error {
		ids, err = i.w.List(ctx)
		return err
	})
	return
}

func (i *instrumentedStore) observe(ctx context.Context, op, entityID string, fn func(context.Context) error) {
	attrs := []attribute.KeyValue{
		attribute.String("curator.store.backend", i.backend),
		attribute.String("curator.store.op", op),
	}
	if entityID != "" {
		attrs = append(attrs, attribute.String("curator.entity_id", entityID))
	}
	ctx, span := tracer.Start(ctx, "store."+op, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logging.FromContext(ctx).Debug().
			Err(err).
			Str("backend", i.backend).
			Str("op", op).
			Str("entity_id", entityID).
			Msg("Store operation failed")
	}
	if i.rec != nil {
		i.rec.StoreOperation(i.backend, op, elapsed, err)
	}
}
