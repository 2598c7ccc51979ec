package storefront

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vechnost/storefront/internal/application/resource"
	"github.com/vechnost/storefront/internal/domain/fetch"
	domoutbox "github.com/vechnost/storefront/internal/domain/outbox"
)

const testBase = "http://backend/api"

// fakeBackend answers by locator and records every request it sees.
type fakeBackend struct {
	mu       sync.Mutex
	routes   map[fetch.Locator]json.RawMessage
	failures map[fetch.Locator]error
	reqs     []fetch.Request
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		routes:   make(map[fetch.Locator]json.RawMessage),
		failures: make(map[fetch.Locator]error),
	}
}

func (b *fakeBackend) on(loc string, payload string) *fakeBackend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[fetch.Locator(loc)] = json.RawMessage(payload)
	return b
}

func (b *fakeBackend) fail(loc string, err error) *fakeBackend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[fetch.Locator(loc)] = err
	return b
}

func (b *fakeBackend) answer(req fetch.Request) (json.RawMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reqs = append(b.reqs, req)
	if err, ok := b.failures[req.Locator]; ok {
		return nil, err
	}
	if p, ok := b.routes[req.Locator]; ok {
		return p, nil
	}
	return nil, &fetch.HTTPError{StatusCode: 404}
}

func (b *fakeBackend) Fetch(_ context.Context, req fetch.Request) (json.RawMessage, error) {
	return b.answer(req)
}

func (b *fakeBackend) Send(_ context.Context, req fetch.Request) (json.RawMessage, error) {
	return b.answer(req)
}

func (b *fakeBackend) requests(method string, loc string) []fetch.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []fetch.Request
	for _, r := range b.reqs {
		if r.Config.Normalized().Method == method && r.Locator == fetch.Locator(loc) {
			out = append(out, r)
		}
	}
	return out
}

// syncBus delivers events inline, which keeps refresh assertions deterministic.
type syncBus struct {
	mu   sync.Mutex
	subs map[string][]domoutbox.Handler
	sent []domoutbox.Event
}

func (b *syncBus) Subscribe(name string, h domoutbox.Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[string][]domoutbox.Handler)
	}
	b.subs[name] = append(b.subs[name], h)
	i := len(b.subs[name]) - 1
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.subs[name][i] = nil
	}
}

func (b *syncBus) Publish(ctx context.Context, e domoutbox.Event) error {
	b.mu.Lock()
	b.sent = append(b.sent, e)
	hs := append([]domoutbox.Handler(nil), b.subs[e.EventName()]...)
	b.mu.Unlock()
	for _, h := range hs {
		if h != nil {
			_ = h(ctx, e)
		}
	}
	return nil
}

func (b *syncBus) events() []domoutbox.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domoutbox.Event(nil), b.sent...)
}

func newTestService(b *fakeBackend, bus *syncBus) (*Service, *Refresher) {
	var ref *Refresher
	deps := Deps{Fetcher: b, Sender: b, BaseURL: testBase + "/"}
	if bus != nil {
		ref = NewRefresher(bus, nil)
		ref.Start()
		deps.Publisher = bus
		deps.Refresher = ref
	}
	return NewService(deps), ref
}

func await(t *testing.T, sy *resource.Synchronizer) fetch.State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	st, err := sy.Await(ctx)
	require.NoError(t, err)
	return st
}
