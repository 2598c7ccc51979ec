// Package resource keeps remote JSON resources in sync with the views that
// display them. A Scope is the lifetime of one view; every Synchronizer
// mounted on it stops applying results once the scope is closed.
package resource

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vechnost/storefront/internal/domain/fetch"
	"github.com/vechnost/storefront/internal/observability"
	"github.com/vechnost/storefront/internal/observability/logctx"
)

var ErrScopeClosed = errors.New("resource: scope closed")

// Fetcher performs one read against the backend.
type Fetcher interface {
	Fetch(ctx context.Context, req fetch.Request) (json.RawMessage, error)
}

// Registry tracks live synchronizers by resource name so they can be
// refetched from elsewhere. The returned func removes the registration.
type Registry interface {
	Register(resource string, s *Synchronizer) (unregister func())
}

type Options struct {
	Logger   observability.Logger
	Metrics  observability.Metrics
	Registry Registry
}

// Scope owns the in-flight invocations of its synchronizers.
type Scope struct {
	ctx     context.Context
	cancel  context.CancelFunc
	group   *errgroup.Group
	fetcher Fetcher
	reg     Registry

	log      observability.Logger
	refetchC observability.Counter

	mu     sync.Mutex
	closed bool
	unreg  []func()

	closeOnce sync.Once
	closeErr  error
}

// NewScope starts a scope bound to ctx. Cancelling ctx has the same effect
// on in-flight requests as Close, but results are only discarded after Close.
func NewScope(ctx context.Context, fetcher Fetcher, opts Options) *Scope {
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NopMetrics()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Scope{
		ctx:      ctx,
		cancel:   cancel,
		group:    &errgroup.Group{},
		fetcher:  fetcher,
		reg:      opts.Registry,
		log:      opts.Logger.With(observability.F("component", "resource_scope")),
		refetchC: opts.Metrics.Counter(observability.MResourceRefetches),
	}
}

// Mount creates a synchronizer for name at loc and invokes it immediately.
// On a closed scope the synchronizer stays Pending forever.
func (s *Scope) Mount(name string, loc fetch.Locator, cfg fetch.RequestConfig) *Synchronizer {
	sy := &Synchronizer{
		id:      uuid.NewString(),
		scope:   s,
		name:    name,
		loc:     loc,
		cfg:     cfg.Normalized(),
		state:   fetch.Pending(),
		changed: make(chan struct{}),
		settled: make(chan struct{}),
	}

	s.mu.Lock()
	if !s.closed && s.reg != nil {
		s.unreg = append(s.unreg, s.reg.Register(name, sy))
	}
	s.mu.Unlock()

	sy.invoke(false)
	return sy
}

// Done is closed when the scope is closed or its parent context ends.
func (s *Scope) Done() <-chan struct{} { return s.ctx.Done() }

// Close cancels every in-flight invocation, waits for all of them to return
// and removes the scope's synchronizers from the registry. It is idempotent;
// concurrent callers all return after the join.
func (s *Scope) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		unreg := s.unreg
		s.unreg = nil
		s.mu.Unlock()

		for _, fn := range unreg {
			fn()
		}
		s.cancel()
		s.closeErr = s.group.Wait()
		logctx.FromOr(s.ctx, s.log).Debug("resource_scope_closed")
	})
	return s.closeErr
}

func (s *Scope) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// spawn runs fn on the scope's group unless the scope is already closed.
func (s *Scope) spawn(fn func(ctx context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.group.Go(func() error {
		fn(s.ctx)
		return nil
	})
	return true
}
