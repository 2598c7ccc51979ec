package storefront

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vechnost/storefront/internal/application/resource"
	"github.com/vechnost/storefront/internal/domain/catalog"
	domorder "github.com/vechnost/storefront/internal/domain/order"
	domoutbox "github.com/vechnost/storefront/internal/domain/outbox"
	"github.com/vechnost/storefront/internal/observability"
	"github.com/vechnost/storefront/internal/observability/logctx"
)

const (
	refresherService = "storefront-refresher"
	spanPrefix       = "EV."
)

// Refresher keeps every live synchronizer of a resource current: when a
// mutation is announced on the bus, each registered synchronizer of that
// resource is refetched. Registrations end with their scope.
type Refresher struct {
	subscriber domoutbox.Subscriber
	tel        observability.Observability

	mu     sync.Mutex
	live   map[catalog.Resource]map[*resource.Synchronizer]struct{}
	unsubs []func()

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

func NewRefresher(subscriber domoutbox.Subscriber, tel observability.Observability) *Refresher {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Refresher{
		subscriber:   subscriber,
		tel:          tel,
		live:         make(map[catalog.Resource]map[*resource.Synchronizer]struct{}),
		log:          tel.Logger().With(observability.F("service", refresherService)),
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
	}
}

// Start subscribes to change announcements.
func (r *Refresher) Start() {
	if r.subscriber == nil {
		r.log.Warn("refresher_not_started", observability.F("reason", "no subscriber"))
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsubs = append(r.unsubs,
		r.subscriber.Subscribe(catalog.ResourceChangedEvent{}.EventName(), r.handleResourceChanged),
		r.subscriber.Subscribe(domorder.OrderSubmittedEvent{}.EventName(), r.handleOrderSubmitted),
	)
	r.log.Info("refresher_started")
}

func (r *Refresher) Stop() {
	r.mu.Lock()
	unsubs := r.unsubs
	r.unsubs = nil
	r.mu.Unlock()
	for _, fn := range unsubs {
		fn()
	}
}

// Register implements resource.Registry.
func (r *Refresher) Register(name string, s *resource.Synchronizer) func() {
	res := catalog.Resource(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.live[res]
	if set == nil {
		set = make(map[*resource.Synchronizer]struct{})
		r.live[res] = set
	}
	set[s] = struct{}{}

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.live[res], s)
		if len(r.live[res]) == 0 {
			delete(r.live, res)
		}
	}
}

// Live counts the registered synchronizers of res.
func (r *Refresher) Live(res catalog.Resource) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live[res])
}

// Refresh refetches every live synchronizer of the given resources and
// reports how many were refetched.
func (r *Refresher) Refresh(resources ...catalog.Resource) int {
	return r.refreshExcept("", resources...)
}

// refreshExcept is Refresh leaving out the synchronizer whose ID is skip.
func (r *Refresher) refreshExcept(skip string, resources ...catalog.Resource) int {
	var targets []*resource.Synchronizer
	r.mu.Lock()
	for _, res := range resources {
		for s := range r.live[res] {
			if skip != "" && s.ID() == skip {
				continue
			}
			targets = append(targets, s)
		}
	}
	r.mu.Unlock()

	n := 0
	for _, s := range targets {
		if s.Refetch() {
			n++
		}
	}
	return n
}

// affected lists the resources whose views depend on a change to res.
// Every catalog mutation shifts the admin overview counts.
func affected(res catalog.Resource) []catalog.Resource {
	switch res {
	case catalog.ResourceOverview:
		return []catalog.Resource{res}
	case catalog.ResourceProducts:
		return []catalog.Resource{res, catalog.ResourceTop, catalog.ResourceOverview}
	default:
		return []catalog.Resource{res, catalog.ResourceOverview}
	}
}

func (r *Refresher) handleResourceChanged(ctx context.Context, e domoutbox.Event) error {
	const useCase = "storefront.refresh.resource_changed"
	evt, ok := e.(catalog.ResourceChangedEvent)
	if !ok {
		r.count(useCase, "ignored")
		return nil
	}
	return r.handle(ctx, useCase, e, evt.Origin, affected(evt.Resource),
		attribute.String("resource", string(evt.Resource)),
		attribute.String("action", evt.Action),
	)
}

func (r *Refresher) handleOrderSubmitted(ctx context.Context, e domoutbox.Event) error {
	const useCase = "storefront.refresh.order_submitted"
	evt, ok := e.(domorder.OrderSubmittedEvent)
	if !ok {
		r.count(useCase, "ignored")
		return nil
	}
	return r.handle(ctx, useCase, e, "", []catalog.Resource{catalog.ResourceOverview, catalog.ResourceTop},
		attribute.String("order.id", evt.OrderID),
	)
}

func (r *Refresher) handle(ctx context.Context, useCase string, e domoutbox.Event, skip string, targets []catalog.Resource, attrs ...attribute.KeyValue) error {
	ctx, span := r.tel.Tracer().Start(ctx, spanPrefix+"Refresh",
		append(attrs,
			attribute.String("use_case", useCase),
			attribute.String("event", e.EventName()),
		)...,
	)
	start := time.Now()

	logger := logctx.FromOr(ctx, r.log).With(
		observability.F("use_case", useCase),
		observability.F("event", e.EventName()),
	)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		logger = logger.With(
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}

	n := r.refreshExcept(skip, targets...)

	lat := time.Since(start).Seconds()
	r.observe(useCase, "success", lat)
	logger.Info("use_case_done",
		observability.F("outcome", "success"),
		observability.F("refetched", n),
		observability.F("latency_seconds", lat),
	)
	span.SetAttributes(attribute.Int("refetched", n))
	span.SetStatus(codes.Ok, "OK")
	span.End()
	return nil
}

func (r *Refresher) count(useCase, outcome string) {
	r.reqCounter.Add(1,
		observability.L("use_case", useCase),
		observability.L("outcome", outcome),
	)
}

func (r *Refresher) observe(useCase string, outcome string, latencySeconds float64) {
	r.count(useCase, outcome)
	r.durHistogram.Observe(latencySeconds,
		observability.L("use_case", useCase),
	)
}
