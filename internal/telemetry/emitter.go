// Package telemetry records operational events for background failures.
//
// Background work (snapshot archiving, per-user bookkeeping after a
// collective update) must never surface its failures to the user-facing
// contribution flow; the emitter is the sink those paths report into.
package telemetry

import (
	"context"
	"time"

	"github.com/moodtide/moodtide.app/internal/services/mood/storage"
	"go.opentelemetry.io/otel/trace"
)

// Severity describes the telemetry severity level.
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

// Emitter records operational telemetry events.
type Emitter struct {
	store storage.TelemetryStore
	clock func() time.Time
}

// NewEmitter creates a new telemetry emitter.
func NewEmitter(store storage.TelemetryStore) *Emitter {
	return &Emitter{store: store, clock: time.Now}
}

// WithClock returns an emitter using clock for event timestamps.
func (e *Emitter) WithClock(clock func() time.Time) *Emitter {
	if e == nil {
		return nil
	}
	return &Emitter{store: e.store, clock: clock}
}

// Emit records a telemetry event. It is a no-op when the store is nil, and
// it stamps the event with the active trace context when one is present.
func (e *Emitter) Emit(ctx context.Context, evt storage.TelemetryEvent) error {
	if e == nil || e.store == nil {
		return nil
	}
	if evt.Timestamp.IsZero() {
		if e.clock == nil {
			evt.Timestamp = time.Now().UTC()
		} else {
			evt.Timestamp = e.clock().UTC()
		}
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		if evt.TraceID == "" {
			evt.TraceID = sc.TraceID().String()
		}
		if evt.SpanID == "" {
			evt.SpanID = sc.SpanID().String()
		}
	}
	return e.store.AppendTelemetryEvent(ctx, evt)
}
