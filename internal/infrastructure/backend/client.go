// Package backend is the HTTP transport to the top-up backend API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vechnost/storefront/internal/domain/fetch"
	"github.com/vechnost/storefront/internal/observability"
	"github.com/vechnost/storefront/internal/observability/logctx"
)

const (
	peerBackend     = "backend"
	requestIDHeader = "X-Request-ID"
	spanPrefix      = "HTTP "
	maxBodyBytes    = 8 << 20
)

// IDGenerator issues request ids for outbound calls that have none on their context.
type IDGenerator interface {
	NewID() string
}

// Client performs backend requests. It never retries and sets no timeout of
// its own; a hung request stays pending until ctx is done.
type Client struct {
	httpClient *http.Client
	ids        IDGenerator
	tel        observability.Observability

	log          observability.Logger
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

// NewClient wires a backend client. A nil httpClient uses a client without timeout.
func NewClient(httpClient *http.Client, ids IDGenerator, tel observability.Observability) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if tel == nil {
		tel = observability.Nop()
	}
	return &Client{
		httpClient:   httpClient,
		ids:          ids,
		tel:          tel,
		log:          tel.Logger().With(observability.F("component", "backend_client")),
		extCounter:   tel.Metrics().Counter(observability.MExternalRequests),
		extHistogram: tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

// Fetch performs a read. Non-2xx responses fail with *fetch.HTTPError without
// reading the body; a 2xx body that is not JSON fails with *fetch.ParseError.
func (c *Client) Fetch(ctx context.Context, req fetch.Request) (json.RawMessage, error) {
	return c.do(ctx, req, false)
}

// Send performs a mutation. Unlike Fetch, a non-2xx response keeps its JSON
// error payload on the returned *fetch.HTTPError so it can be displayed, and
// an empty 2xx body is accepted.
func (c *Client) Send(ctx context.Context, req fetch.Request) (json.RawMessage, error) {
	return c.do(ctx, req, true)
}

func (c *Client) do(ctx context.Context, req fetch.Request, mutation bool) (_ json.RawMessage, err error) {
	cfg := req.Config.Normalized()
	endpoint := req.Endpoint
	if endpoint == "" {
		endpoint = "unknown"
	}

	requestID := logctx.RequestID(ctx)
	if requestID == "" && c.ids != nil {
		requestID = c.ids.NewID()
	}

	ctx, span := c.tel.Tracer().Start(ctx, spanPrefix+cfg.Method+" "+endpoint,
		attribute.String("peer.service", peerBackend),
		attribute.String("http.request.method", cfg.Method),
		attribute.String("backend.endpoint", endpoint),
	)
	start := time.Now()
	outcome := "success"
	statusCode := 0

	defer func() {
		lat := time.Since(start).Seconds()
		if err != nil {
			outcome = fetch.Kind(err)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				outcome = "canceled"
			}
		}

		if span != nil {
			span.SetAttributes(attribute.Int("http.response.status_code", statusCode))
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, outcome)
			} else {
				span.SetStatus(codes.Ok, outcome)
			}
			span.End()
		}

		c.extCounter.Add(1,
			observability.L("peer", peerBackend),
			observability.L("endpoint", endpoint),
			observability.L("outcome", outcome),
		)
		c.extHistogram.Observe(lat,
			observability.L("peer", peerBackend),
			observability.L("endpoint", endpoint),
		)

		fields := []observability.Field{
			observability.F("endpoint", endpoint),
			observability.F("method", cfg.Method),
			observability.F("request_id", requestID),
			observability.F("status_code", statusCode),
			observability.F("outcome", outcome),
			observability.F("latency_seconds", lat),
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		logger := logctx.FromOr(ctx, c.log)
		if err != nil {
			logger.Warn("backend_request_done", append(fields, observability.Err(err))...)
			return
		}
		logger.Debug("backend_request_done", fields...)
	}()

	var body io.Reader
	if cfg.Body != nil {
		body = bytes.NewReader(cfg.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, cfg.Method, req.Locator.String(), body)
	if err != nil {
		return nil, &fetch.TransportError{Op: "build request", Err: err}
	}
	for k, vs := range cfg.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if requestID != "" {
		httpReq.Header.Set(requestIDHeader, requestID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &fetch.TransportError{Op: "send", Err: err}
	}
	defer resp.Body.Close()
	statusCode = resp.StatusCode

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok && !mutation {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &fetch.HTTPError{StatusCode: resp.StatusCode}
	}

	raw, err := readBody(resp.Body)
	if err != nil {
		return nil, &fetch.TransportError{Op: "read body", Err: err}
	}

	if !ok {
		httpErr := &fetch.HTTPError{StatusCode: resp.StatusCode}
		if json.Valid(raw) {
			httpErr.Body = raw
		}
		return nil, httpErr
	}
	if mutation && len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, &fetch.ParseError{Err: fmt.Errorf("%s response is not valid JSON", endpoint)}
	}
	return raw, nil
}

func readBody(r io.Reader) (json.RawMessage, error) {
	raw, err := io.ReadAll(io.LimitReader(r, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(raw) > maxBodyBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes", maxBodyBytes)
	}
	return raw, nil
}
