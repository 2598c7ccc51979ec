// Package storefront composes the storefront's views out of resource
// synchronizers and one-shot backend calls.
package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/vechnost/storefront/internal/application"
	"github.com/vechnost/storefront/internal/application/resource"
	"github.com/vechnost/storefront/internal/domain/catalog"
	"github.com/vechnost/storefront/internal/domain/fetch"
	domorder "github.com/vechnost/storefront/internal/domain/order"
	domoutbox "github.com/vechnost/storefront/internal/domain/outbox"
	"github.com/vechnost/storefront/internal/observability"
)

const storefrontService = "storefront"

var ErrBlankField = errors.New("storefront: required field is blank")

// Sender performs one-shot mutations and tool calls.
type Sender interface {
	Send(ctx context.Context, req fetch.Request) (json.RawMessage, error)
}

// SubmitOrder is the order submission use case as seen by the order form.
type SubmitOrder = application.UseCase[domorder.Draft, *domorder.Receipt]

type Deps struct {
	Fetcher   resource.Fetcher
	Sender    Sender
	Orders    SubmitOrder
	Publisher domoutbox.Publisher
	Refresher *Refresher
	// BaseURL is the backend API root, e.g. "http://localhost:8000/api".
	BaseURL string
	Tel     observability.Observability
}

// Service hands out views bound to a caller-owned resource.Scope.
type Service struct {
	fetcher   resource.Fetcher
	sender    Sender
	orders    SubmitOrder
	publisher domoutbox.Publisher
	refresher *Refresher
	api       endpoints
	tel       observability.Observability
	log       observability.Logger

	parityMismatch observability.Counter // pricing_parity_mismatch_total
}

func NewService(d Deps) *Service {
	if d.Tel == nil {
		d.Tel = observability.Nop()
	}
	return &Service{
		fetcher:        d.Fetcher,
		sender:         d.Sender,
		orders:         d.Orders,
		publisher:      d.Publisher,
		refresher:      d.Refresher,
		api:            endpoints{base: strings.TrimRight(d.BaseURL, "/")},
		tel:            d.Tel,
		log:            d.Tel.Logger().With(observability.F("service", storefrontService)),
		parityMismatch: d.Tel.Metrics().Counter(observability.MPricingParityMismatch),
	}
}

// NewScope opens a view lifetime. Synchronizers mounted on it are refreshed
// by the service's Refresher until the scope is closed.
func (s *Service) NewScope(ctx context.Context) *resource.Scope {
	opts := resource.Options{
		Logger:  s.tel.Logger(),
		Metrics: s.tel.Metrics(),
	}
	if s.refresher != nil {
		opts.Registry = s.refresher
	}
	return resource.NewScope(ctx, s.fetcher, opts)
}

// Reply is a backend answer relayed as-is, whatever its status.
type Reply struct {
	StatusCode int             `json:"status_code"`
	Payload    json.RawMessage `json:"payload"`
}

// relay turns a mutation outcome into a Reply. HTTP errors that carried a
// JSON payload are relayed; anything else is returned as an error.
func relay(payload json.RawMessage, err error) (Reply, error) {
	if err == nil {
		return Reply{StatusCode: 200, Payload: payload}, nil
	}
	var he *fetch.HTTPError
	if errors.As(err, &he) && he.Body != nil {
		return Reply{StatusCode: he.StatusCode, Payload: he.Body}, nil
	}
	return Reply{}, err
}

func (s *Service) send(ctx context.Context, endpoint string, loc fetch.Locator, method string, body any) (json.RawMessage, error) {
	cfg := fetch.RequestConfig{Method: method}
	if body != nil {
		var err error
		if cfg, err = fetch.JSON(method, body); err != nil {
			return nil, err
		}
	}
	return s.sender.Send(ctx, fetch.Request{Endpoint: endpoint, Locator: loc, Config: cfg})
}

type originKey struct{}

// withOrigin marks ctx as a mutation issued by a view that refetches sy itself.
func withOrigin(ctx context.Context, sy *resource.Synchronizer) context.Context {
	if sy == nil {
		return ctx
	}
	return context.WithValue(ctx, originKey{}, sy.ID())
}

func originOf(ctx context.Context) string {
	id, _ := ctx.Value(originKey{}).(string)
	return id
}

// changed announces a successful mutation of r. Publishing is best effort.
func (s *Service) changed(ctx context.Context, r catalog.Resource, action string) {
	if s.publisher == nil {
		return
	}
	evt := catalog.NewResourceChangedEvent(r, action)
	evt.Origin = originOf(ctx)
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn("event_publish_failed",
			observability.F("event", "resource.changed"),
			observability.F("resource", string(r)),
			observability.Err(err),
		)
	}
}

// endpoints derives backend locators from the API root.
type endpoints struct{ base string }

func (e endpoints) categories() fetch.Locator     { return fetch.Join(e.base, "categories") }
func (e endpoints) paymentMethods() fetch.Locator { return fetch.Join(e.base, "payment-methods") }
func (e endpoints) top() fetch.Locator            { return fetch.Join(e.base, "top") }
func (e endpoints) ratings() fetch.Locator        { return fetch.Join(e.base, "ratings") }
func (e endpoints) overview() fetch.Locator       { return fetch.Join(e.base, "admin", "overview") }
func (e endpoints) calc() fetch.Locator           { return fetch.Join(e.base, "tools", "calc") }
func (e endpoints) checkGameID() fetch.Locator    { return fetch.Join(e.base, "tools", "check-game-id") }

func (e endpoints) products(category, q string) fetch.Locator {
	return fetch.Compose(fetch.Join(e.base, "products").String(),
		fetch.Filter{Name: "category", Value: category},
		fetch.Filter{Name: "q", Value: q},
	)
}

func (e endpoints) productRatings(productID string) fetch.Locator {
	return fetch.Join(e.base, "ratings", productID)
}

func (e endpoints) auth(action string) fetch.Locator {
	return fetch.Join(e.base, "auth", action)
}

func (e endpoints) admin(r catalog.Resource, id ...string) fetch.Locator {
	return fetch.Join(e.base, append([]string{"admin", string(r)}, id...)...)
}
