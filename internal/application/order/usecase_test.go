package order

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechnost/storefront/internal/domain/fetch"
	domain "github.com/vechnost/storefront/internal/domain/order"
	domoutbox "github.com/vechnost/storefront/internal/domain/outbox"
	"github.com/vechnost/storefront/internal/observability"
)

type stubSender struct {
	reqs    []fetch.Request
	payload json.RawMessage
	err     error
}

func (s *stubSender) Send(_ context.Context, req fetch.Request) (json.RawMessage, error) {
	s.reqs = append(s.reqs, req)
	return s.payload, s.err
}

type capturePublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func draft(productID, target, method string) domain.Draft {
	return domain.Resolve(domain.Form{
		ProductID:         productID,
		Quantity:          "2",
		TargetID:          target,
		PaymentMethodCode: method,
	}, json.RawMessage(`[{"id":"p1","provider":"digiflazz"}]`))
}

func TestSubmitOrder_PostsDraftAndReturnsReceipt(t *testing.T) {
	sender := &stubSender{payload: json.RawMessage(`{"_id":"o-9","status":"pending","total_price":30000,"payment_url":"https://pay/x"}`)}
	pub := &capturePublisher{}
	uc := NewSubmitOrderUseCase(sender, "http://backend/api", pub, observability.Nop())

	r, err := uc.Execute(context.Background(), draft("p1", "", "QRIS"))
	require.NoError(t, err)

	assert.Equal(t, "o-9", r.ID)
	assert.Equal(t, "pending", r.Status)
	assert.Equal(t, "https://pay/x", r.PaymentURL)
	assert.InDelta(t, 30000, r.Total, 1e-9)

	require.Len(t, sender.reqs, 1)
	req := sender.reqs[0]
	assert.Equal(t, "orders", req.Endpoint)
	assert.Equal(t, fetch.Locator("http://backend/api/orders"), req.Locator)
	assert.Equal(t, "POST", req.Config.Method)
	assert.JSONEq(t,
		`{"product_id":"p1","amount":2,"target_id":null,"payment_method_code":"QRIS","provider":"digiflazz"}`,
		string(req.Config.Body))

	require.Len(t, pub.events, 1)
	evt, ok := pub.events[0].(domain.OrderSubmittedEvent)
	require.True(t, ok)
	assert.Equal(t, "o-9", evt.OrderID)
	assert.Equal(t, "digiflazz", evt.Provider)
}

func TestSubmitOrder_UnknownProductStillSubmitsWithManualProvider(t *testing.T) {
	sender := &stubSender{payload: json.RawMessage(`{"id":"o-1"}`)}
	uc := NewSubmitOrderUseCase(sender, "http://backend/api", nil, nil)

	_, err := uc.Execute(context.Background(), draft("", "", ""))
	require.NoError(t, err)
	require.Len(t, sender.reqs, 1)
	assert.JSONEq(t,
		`{"product_id":"","amount":2,"target_id":null,"payment_method_code":null,"provider":"manual"}`,
		string(sender.reqs[0].Config.Body))
}

func TestSubmitOrder_BackendRejectionCarriesPayload(t *testing.T) {
	sender := &stubSender{err: &fetch.HTTPError{StatusCode: 422, Body: json.RawMessage(`{"detail":"target required"}`)}}
	pub := &capturePublisher{}
	uc := NewSubmitOrderUseCase(sender, "http://backend/api", pub, observability.Nop())

	r, err := uc.Execute(context.Background(), draft("p1", "", ""))
	assert.Nil(t, r)
	var he *fetch.HTTPError
	require.ErrorAs(t, err, &he)
	assert.JSONEq(t, `{"detail":"target required"}`, string(he.Body))
	assert.Empty(t, pub.events)
	assert.Len(t, sender.reqs, 1)
}

func TestSubmitOrder_PublishFailureDoesNotFailOrder(t *testing.T) {
	sender := &stubSender{payload: json.RawMessage(`{"id":"o-2"}`)}
	pub := &capturePublisher{err: errors.New("queue full")}
	uc := NewSubmitOrderUseCase(sender, "http://backend/api", pub, observability.Nop())

	r, err := uc.Execute(context.Background(), draft("p1", "1", ""))
	require.NoError(t, err)
	assert.Equal(t, "o-2", r.ID)
}

func TestSubmitOrder_CanceledContextSendsNothing(t *testing.T) {
	sender := &stubSender{}
	uc := NewSubmitOrderUseCase(sender, "http://backend/api", nil, observability.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := uc.Execute(ctx, draft("p1", "", ""))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sender.reqs)
}

func TestBackendStatus(t *testing.T) {
	assert.Equal(t, "502", backendStatus(&fetch.HTTPError{StatusCode: 502}))
	assert.Equal(t, "PARSE_FAILED", backendStatus(&fetch.ParseError{Err: errors.New("x")}))
	assert.Equal(t, "CANCELED", backendStatus(&fetch.TransportError{Op: "send", Err: context.Canceled}))
	assert.Equal(t, "UNREACHABLE", backendStatus(&fetch.TransportError{Op: "send", Err: errors.New("refused")}))
}
