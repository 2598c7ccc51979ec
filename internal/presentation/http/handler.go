package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vechnost/storefront/internal/application/resource"
	"github.com/vechnost/storefront/internal/application/storefront"
	"github.com/vechnost/storefront/internal/domain/fetch"
	"github.com/vechnost/storefront/internal/observability"
	"github.com/vechnost/storefront/internal/observability/logctx"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	maxRequestBody       = 1 << 20
)

var (
	errRateLimited  = errors.New("rate limit exceeded")
	errNotFound     = errors.New("not found")
	errBadRequest   = errors.New("malformed request body")
	errUpstreamWait = errors.New("backend did not answer in time")
)

// Handler is the storefront console API. Every request gets its own
// resource scope, closed when the response is written.
type Handler struct {
	svc     *storefront.Service
	limiter *RateLimiter
	metrics http.Handler
	log     observability.Logger
	tel     observability.Observability
}

// NewHandler wires the API. limiter and metrics may be nil.
func NewHandler(svc *storefront.Service, limiter *RateLimiter, metrics http.Handler, logger observability.Logger, tel observability.Observability) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	if logger == nil {
		logger = tel.Logger()
	}
	return &Handler{
		svc:     svc,
		limiter: limiter,
		metrics: metrics,
		log:     logger.With(observability.F("component", componentHTTPHandler)),
		tel:     tel,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(ObservabilityMiddleware(h.log, h.tel))
	r.Use(middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errNotFound)
	})

	r.Get("/health", h.handleHealth)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/categories", h.handleCategories)
		r.Get("/products", h.handleProducts)
		r.Get("/payment-methods", h.handlePaymentMethods)
		r.Get("/top", h.handleTop)
		r.Get("/ratings/{productID}", h.handleRatings)
		r.Get("/admin/overview", h.handleOverview)

		r.Group(func(r chi.Router) {
			if h.limiter != nil {
				r.Use(h.limiter.Handler)
			}
			r.Post("/ratings", h.handlePostRating)
			r.Post("/quote", h.handleQuote)
			r.Post("/check-id", h.handleCheckID)
			r.Post("/orders", h.handleCreateOrder)
			r.Post("/auth/{action}", h.handleAuth)
			r.Post("/admin/{resource}", h.handleAdminCreate)
			r.Delete("/admin/{resource}/{id}", h.handleAdminDelete)
		})
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// scoped runs fn inside a fresh scope tied to the request.
func (h *Handler) scoped(r *http.Request, fn func(*resource.Scope)) {
	scope := h.svc.NewScope(r.Context())
	defer func() {
		if err := scope.Close(); err != nil {
			logctx.FromOr(r.Context(), h.log).Warn("scope_close_failed", observability.Err(err))
		}
	}()
	fn(scope)
}

// settle waits for every synchronizer and returns their states in order.
func settle(ctx context.Context, syncs ...*resource.Synchronizer) []fetch.State {
	out := make([]fetch.State, len(syncs))
	for i, sy := range syncs {
		st, _ := sy.Await(ctx)
		out[i] = st
	}
	return out
}

// stateStatus maps the worst state to an HTTP status: a failure upstream is a
// bad gateway, a state still pending when the request ended is a timeout.
func stateStatus(states ...fetch.State) int {
	status := http.StatusOK
	for _, st := range states {
		switch {
		case st.IsFailed():
			status = http.StatusBadGateway
		case st.IsPending() && status == http.StatusOK:
			status = http.StatusGatewayTimeout
		}
	}
	return status
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

type upstreamError struct {
	Error         string          `json:"error"`
	BackendStatus int             `json:"backend_status,omitempty"`
	Backend       json.RawMessage `json:"backend,omitempty"`
}

// writeDomainError is the single place errors become HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var he *fetch.HTTPError
	switch {
	case errors.Is(err, storefront.ErrBlankField),
		errors.Is(err, errBadRequest):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, storefront.ErrUnknownResource):
		writeError(w, http.StatusNotFound, err)
	case errors.As(err, &he):
		status := http.StatusBadGateway
		if he.StatusCode >= 400 && he.StatusCode < 500 {
			status = he.StatusCode
		}
		writeJSON(w, status, upstreamError{Error: err.Error(), BackendStatus: he.StatusCode, Backend: he.Body})
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, errUpstreamWait)
	case errors.Is(err, storefront.ErrOrdersUnavailable):
		writeError(w, http.StatusServiceUnavailable, err)
	case fetch.Kind(err) == "transport", fetch.Kind(err) == "parse":
		writeError(w, http.StatusBadGateway, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

// statusText renders a backend status for log fields.
func statusText(code int) string {
	if code == 0 {
		return "none"
	}
	return strconv.Itoa(code)
}
