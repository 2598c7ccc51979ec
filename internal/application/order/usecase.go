package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vechnost/storefront/internal/application"
	"github.com/vechnost/storefront/internal/domain/fetch"
	domain "github.com/vechnost/storefront/internal/domain/order"
	domoutbox "github.com/vechnost/storefront/internal/domain/outbox"
	"github.com/vechnost/storefront/internal/observability"
	"github.com/vechnost/storefront/internal/observability/logctx"
)

const (
	orderService       = "order-service"
	useCaseOrderSubmit = "order.submit"
	spanPrefix         = "UC."
	ordersEndpoint     = "orders"
	publishPeer        = "outbox"
	publishEndpoint    = "order.submitted"
	publishTimeout     = 300 * time.Millisecond
)

// SubmitOrderUseCase posts a resolved order draft to the backend exactly once.
type SubmitOrderUseCase struct {
	sender    Sender
	baseURL   string
	publisher domoutbox.Publisher
	tel       observability.Observability

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}

	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

var _ application.UseCase[domain.Draft, *domain.Receipt] = (*SubmitOrderUseCase)(nil)

// NewSubmitOrderUseCase wires the use case. baseURL is the backend API root, e.g. "http://host/api".
func NewSubmitOrderUseCase(
	sender Sender,
	baseURL string,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *SubmitOrderUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	metricsProvider := tel.Metrics()

	return &SubmitOrderUseCase{
		sender:       sender,
		baseURL:      baseURL,
		publisher:    publisher,
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", orderService)),
		reqCounter:   metricsProvider.Counter(observability.MUsecaseRequests),
		durHistogram: metricsProvider.Histogram(observability.MUsecaseDuration),
		extCounter:   metricsProvider.Counter(observability.MExternalRequests),
		extHistogram: metricsProvider.Histogram(observability.MExternalRequestDuration),
	}
}

// Execute submits d as-is; field validation is left to the backend. A non-2xx
// answer is returned as *fetch.HTTPError whose Body carries the backend's
// error payload for display.
func (uc *SubmitOrderUseCase) Execute(ctx context.Context, d domain.Draft) (_ *domain.Receipt, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(observability.F("use_case", useCaseOrderSubmit))

	var receipt domain.Receipt
	var publishErr error

	ctx, span := uc.tel.Tracer().Start(ctx, spanPrefix+"SubmitOrder",
		attribute.String("use_case", useCaseOrderSubmit),
		attribute.String("order.product_id", d.ProductID),
		attribute.String("order.provider", d.Provider),
		attribute.Int("order.amount", d.Quantity),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

	defer func() {
		lat := time.Since(start).Seconds()

		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, statusText)
			} else {
				span.SetStatus(codes.Ok, statusText)
			}
			span.End()
		}

		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseOrderSubmit),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat,
			observability.L("use_case", useCaseOrderSubmit),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
			observability.F("provider", d.Provider),
		}
		if receipt.ID != "" {
			fields = append(fields, observability.F("order_id", receipt.ID))
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if publishErr != nil {
			fields = append(fields, observability.F("event_publish_error", publishErr.Error()))
		}
		if err != nil {
			fields = append(fields, observability.Err(err))
		}

		logger.Info("use_case_done", fields...)
	}()

	if err := ctx.Err(); err != nil {
		outcome, statusText = "error", "CONTEXT_CANCELED"
		return nil, err
	}

	cfg, err := fetch.JSON(http.MethodPost, d)
	if err != nil {
		outcome, statusText = "error", "ENCODE_FAILED"
		return nil, fmt.Errorf("order: encode draft: %w", err)
	}

	payload, err := uc.sender.Send(ctx, fetch.Request{
		Endpoint: ordersEndpoint,
		Locator:  fetch.Join(uc.baseURL, ordersEndpoint),
		Config:   cfg,
	})
	if err != nil {
		outcome = "error"
		statusText = "BACKEND_" + backendStatus(err)
		return nil, err
	}

	receipt = domain.ParseReceipt(payload)

	if uc.publisher != nil {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		pubStart := time.Now()
		pubOutcome := "success"

		publishErr = uc.publisher.Publish(pubCtx, domain.NewOrderSubmittedEvent(d, receipt))
		if publishErr != nil {
			pubOutcome = "error"
			statusText = "EVENT_PUBLISH_FAILED"
		}
		cancel()

		uc.extCounter.Add(1,
			observability.L("peer", publishPeer),
			observability.L("endpoint", publishEndpoint),
			observability.L("outcome", pubOutcome),
		)
		uc.extHistogram.Observe(time.Since(pubStart).Seconds(),
			observability.L("peer", publishPeer),
			observability.L("endpoint", publishEndpoint),
		)
	}

	span.SetAttributes(attribute.String("order.status", receipt.Status))
	span.AddEvent("order.submitted",
		trace.WithAttributes(
			attribute.String("order.id", receipt.ID),
		),
	)

	return &receipt, nil
}

func backendStatus(err error) string {
	var he *fetch.HTTPError
	if errors.As(err, &he) {
		return strconv.Itoa(he.StatusCode)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "CANCELED"
	}
	switch fetch.Kind(err) {
	case "parse":
		return "PARSE_FAILED"
	default:
		return "UNREACHABLE"
	}
}
