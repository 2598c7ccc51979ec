// Package workerpresentation decorates background event handlers the way the
// HTTP middleware decorates requests.
package workerpresentation

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	domoutbox "github.com/vechnost/storefront/internal/domain/outbox"
	"github.com/vechnost/storefront/internal/observability"
	"github.com/vechnost/storefront/internal/observability/logctx"
)

// WithEventContext injects an event-scoped logger for a background execution.
// Dynamic fields only: event_id (generated if empty), trace_id/span_id when
// the context carries a valid span, plus caller-provided low-cardinality
// attributes such as "subscriber" or "event".
func WithEventContext(ctx context.Context, base observability.Logger, attrs map[string]string) context.Context {
	base = logctx.FromOr(ctx, base)
	if base == nil {
		base = observability.NopLogger()
	}

	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields := []observability.Field{observability.F("event_id", evtID)}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	for k, v := range attrs {
		if k == "event_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}
	return logctx.With(ctx, base.With(fields...))
}

// Subscriber wraps every handler registered through it with WithEventContext.
type Subscriber struct {
	next domoutbox.Subscriber
	name string
	log  observability.Logger
}

// NewSubscriber decorates next. name identifies the consumer in log lines.
func NewSubscriber(next domoutbox.Subscriber, name string, logger observability.Logger) *Subscriber {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Subscriber{next: next, name: name, log: logger}
}

func (s *Subscriber) Subscribe(eventName string, h domoutbox.Handler) func() {
	return s.next.Subscribe(eventName, func(ctx context.Context, e domoutbox.Event) error {
		ctx = WithEventContext(ctx, s.log, map[string]string{
			"subscriber": s.name,
			"event":      e.EventName(),
		})
		return h(ctx, e)
	})
}
