package resource

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechnost/storefront/internal/domain/fetch"
)

// gatedFetcher blocks every call until the test releases it with a result.
type gatedFetcher struct {
	mu    sync.Mutex
	calls []*gatedCall
	seen  chan *gatedCall
}

type gatedCall struct {
	req    fetch.Request
	result chan gatedResult
}

type gatedResult struct {
	raw json.RawMessage
	err error
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{seen: make(chan *gatedCall, 64)}
}

func (f *gatedFetcher) Fetch(ctx context.Context, req fetch.Request) (json.RawMessage, error) {
	c := &gatedCall{req: req, result: make(chan gatedResult, 1)}
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
	f.seen <- c
	select {
	case r := <-c.result:
		return r.raw, r.err
	case <-ctx.Done():
		return nil, &fetch.TransportError{Op: "send", Err: ctx.Err()}
	}
}

func (f *gatedFetcher) next(t *testing.T) *gatedCall {
	t.Helper()
	select {
	case c := <-f.seen:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no fetch issued")
		return nil
	}
}

func (f *gatedFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (c *gatedCall) reply(raw string) { c.result <- gatedResult{raw: json.RawMessage(raw)} }
func (c *gatedCall) fail(err error)   { c.result <- gatedResult{err: err} }

func awaitState(t *testing.T, sy *Synchronizer) fetch.State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	st, err := sy.Await(ctx)
	require.NoError(t, err)
	return st
}

func TestMountStartsPendingThenReady(t *testing.T) {
	f := newGatedFetcher()
	scope := NewScope(context.Background(), f, Options{})
	defer scope.Close()

	sy := scope.Mount("products", fetch.Locator("/api/products"), fetch.RequestConfig{})
	assert.True(t, sy.State().IsPending())

	call := f.next(t)
	assert.Equal(t, "products", call.req.Endpoint)
	assert.Equal(t, fetch.Locator("/api/products"), call.req.Locator)
	assert.Equal(t, "GET", call.req.Config.Method)
	call.reply(`[{"id":1}]`)

	st := awaitState(t, sy)
	require.True(t, st.IsReady())
	assert.JSONEq(t, `[{"id":1}]`, string(st.Payload()))
}

func TestFailureIsCapturedIntoState(t *testing.T) {
	f := newGatedFetcher()
	scope := NewScope(context.Background(), f, Options{})
	defer scope.Close()

	sy := scope.Mount("top", fetch.Locator("/api/top"), fetch.RequestConfig{})
	f.next(t).fail(&fetch.HTTPError{StatusCode: 500})

	st := awaitState(t, sy)
	require.True(t, st.IsFailed())
	assert.Equal(t, "500", fetch.Describe(st.Err()))
	assert.Nil(t, st.Payload())
}

func TestSetLocatorOnlyReinvokesOnChange(t *testing.T) {
	f := newGatedFetcher()
	scope := NewScope(context.Background(), f, Options{})
	defer scope.Close()

	sy := scope.Mount("products", fetch.Locator("/api/products"), fetch.RequestConfig{})
	f.next(t).reply(`[]`)
	awaitState(t, sy)

	assert.False(t, sy.SetLocator(fetch.Locator("/api/products")))
	assert.True(t, sy.State().IsReady())
	assert.Equal(t, 1, f.count())

	assert.True(t, sy.SetLocator(fetch.Locator("/api/products?category=ff")))
	assert.True(t, sy.State().IsPending())
	call := f.next(t)
	assert.Equal(t, fetch.Locator("/api/products?category=ff"), call.req.Locator)
	call.reply(`[{"id":2}]`)
	assert.JSONEq(t, `[{"id":2}]`, string(awaitState(t, sy).Payload()))
}

func TestLastInvokedWins(t *testing.T) {
	f := newGatedFetcher()
	scope := NewScope(context.Background(), f, Options{})
	defer scope.Close()

	sy := scope.Mount("products", fetch.Locator("/api/products?category=a"), fetch.RequestConfig{})
	first := f.next(t)
	sy.SetLocator(fetch.Locator("/api/products?category=b"))
	second := f.next(t)

	second.reply(`"b"`)
	first.reply(`"a"`)

	st := awaitState(t, sy)
	assert.JSONEq(t, `"b"`, string(st.Payload()))

	// The stale response arriving later must not overwrite the newest.
	time.Sleep(20 * time.Millisecond)
	assert.JSONEq(t, `"b"`, string(sy.State().Payload()))
}

func TestStaleResultResolvingFirstIsDropped(t *testing.T) {
	f := newGatedFetcher()
	scope := NewScope(context.Background(), f, Options{})
	defer scope.Close()

	sy := scope.Mount("products", fetch.Locator("/a"), fetch.RequestConfig{})
	first := f.next(t)
	sy.SetLocator(fetch.Locator("/b"))
	second := f.next(t)

	first.reply(`"a"`)
	time.Sleep(20 * time.Millisecond)
	assert.True(t, sy.State().IsPending())

	second.reply(`"b"`)
	assert.JSONEq(t, `"b"`, string(awaitState(t, sy).Payload()))
}

func TestRefetchTwiceIssuesTwoRequests(t *testing.T) {
	f := newGatedFetcher()
	scope := NewScope(context.Background(), f, Options{})
	defer scope.Close()

	sy := scope.Mount("ratings", fetch.Locator("/api/ratings/7"), fetch.RequestConfig{})
	f.next(t).reply(`[]`)
	awaitState(t, sy)

	require.True(t, sy.Refetch())
	require.True(t, sy.Refetch())
	a, b := f.next(t), f.next(t)
	assert.Equal(t, 3, f.count())
	assert.Equal(t, a.req.Locator, b.req.Locator)

	a.reply(`["r"]`)
	b.reply(`["r"]`)
	assert.JSONEq(t, `["r"]`, string(awaitState(t, sy).Payload()))
}

func TestRefetchAfterFailureRecovers(t *testing.T) {
	f := newGatedFetcher()
	scope := NewScope(context.Background(), f, Options{})
	defer scope.Close()

	sy := scope.Mount("top", fetch.Locator("/api/top"), fetch.RequestConfig{})
	f.next(t).fail(&fetch.TransportError{Op: "send", Err: context.DeadlineExceeded})
	require.True(t, awaitState(t, sy).IsFailed())

	sy.Refetch()
	assert.True(t, sy.State().IsPending())
	f.next(t).reply(`[{"name":"a","total":3}]`)
	assert.True(t, awaitState(t, sy).IsReady())
}

func TestChangedSignalsEveryTransition(t *testing.T) {
	f := newGatedFetcher()
	scope := NewScope(context.Background(), f, Options{})
	defer scope.Close()

	sy := scope.Mount("top", fetch.Locator("/api/top"), fetch.RequestConfig{})
	ch := sy.Changed()
	f.next(t).reply(`[]`)

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("no change signalled")
	}
	assert.True(t, sy.State().IsReady())
}

func TestCloseDiscardsLateResults(t *testing.T) {
	f := newGatedFetcher()
	scope := NewScope(context.Background(), f, Options{})

	sy := scope.Mount("products", fetch.Locator("/api/products"), fetch.RequestConfig{})
	call := f.next(t)
	call.reply(`[{"id":1}]`) // buffered; the fetcher may or may not see it before cancel

	require.NoError(t, scope.Close())
	st := sy.State()
	// Either the reply won the race before Close or nothing was applied; a
	// cancellation failure must never surface.
	assert.False(t, st.IsFailed())

	assert.False(t, sy.Refetch())
	assert.False(t, sy.SetLocator(fetch.Locator("/api/products?q=x")))
	assert.Equal(t, 1, f.count())
}

func TestCloseCancelsInFlightAndStaysPending(t *testing.T) {
	f := newGatedFetcher()
	scope := NewScope(context.Background(), f, Options{})

	sy := scope.Mount("products", fetch.Locator("/api/products"), fetch.RequestConfig{})
	f.next(t)

	require.NoError(t, scope.Close())
	assert.True(t, sy.State().IsPending())

	_, err := sy.Await(context.Background())
	assert.ErrorIs(t, err, ErrScopeClosed)
	assert.NoError(t, scope.Close())
}

// lingeringFetcher keeps running for a while after its context is cancelled.
type lingeringFetcher struct {
	started  chan struct{}
	finished atomic.Bool
}

func (f *lingeringFetcher) Fetch(ctx context.Context, _ fetch.Request) (json.RawMessage, error) {
	close(f.started)
	<-ctx.Done()
	time.Sleep(50 * time.Millisecond)
	f.finished.Store(true)
	return nil, ctx.Err()
}

func TestConcurrentCloseWaitsForJoin(t *testing.T) {
	f := &lingeringFetcher{started: make(chan struct{})}
	scope := NewScope(context.Background(), f, Options{})
	scope.Mount("products", fetch.Locator("/api/products"), fetch.RequestConfig{})
	<-f.started

	var wg sync.WaitGroup
	joined := make([]bool, 4)
	for i := range joined {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, scope.Close())
			joined[i] = f.finished.Load()
		}()
	}
	wg.Wait()

	for i, ok := range joined {
		assert.True(t, ok, "Close call %d returned before the fetch ended", i)
	}
}

type recordingRegistry struct {
	mu      sync.Mutex
	live    map[*Synchronizer]string
	removed int
}

func (r *recordingRegistry) Register(name string, s *Synchronizer) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.live == nil {
		r.live = make(map[*Synchronizer]string)
	}
	r.live[s] = name
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.live, s)
		r.removed++
	}
}

func TestRegistryFollowsScopeLifetime(t *testing.T) {
	f := newGatedFetcher()
	reg := &recordingRegistry{}
	scope := NewScope(context.Background(), f, Options{Registry: reg})

	a := scope.Mount("products", fetch.Locator("/p"), fetch.RequestConfig{})
	b := scope.Mount("categories", fetch.Locator("/c"), fetch.RequestConfig{})
	f.next(t).reply(`[]`)
	f.next(t).reply(`[]`)

	reg.mu.Lock()
	assert.Equal(t, "products", reg.live[a])
	assert.Equal(t, "categories", reg.live[b])
	reg.mu.Unlock()

	require.NoError(t, scope.Close())
	reg.mu.Lock()
	assert.Empty(t, reg.live)
	assert.Equal(t, 2, reg.removed)
	reg.mu.Unlock()
}
