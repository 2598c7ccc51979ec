package resource

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/vechnost/storefront/internal/domain/fetch"
	"github.com/vechnost/storefront/internal/observability"
	"github.com/vechnost/storefront/internal/observability/logctx"
)

// Synchronizer keeps one fetch.State in step with the remote resource at its
// locator. Invocations are ordered by token: only the newest one applies its
// result, older ones still complete but are dropped.
type Synchronizer struct {
	id    string
	scope *Scope
	name  string

	mu      sync.Mutex
	loc     fetch.Locator
	cfg     fetch.RequestConfig
	token   uint64
	state   fetch.State
	changed chan struct{}
	settled chan struct{}
}

func (sy *Synchronizer) Name() string { return sy.name }

// ID is unique per mounted synchronizer.
func (sy *Synchronizer) ID() string { return sy.id }

// Locator is the address of the current invocation.
func (sy *Synchronizer) Locator() fetch.Locator {
	sy.mu.Lock()
	defer sy.mu.Unlock()
	return sy.loc
}

// State is the state of the newest invocation.
func (sy *Synchronizer) State() fetch.State {
	sy.mu.Lock()
	defer sy.mu.Unlock()
	return sy.state
}

// Changed returns a channel that is closed on the next state change.
func (sy *Synchronizer) Changed() <-chan struct{} {
	sy.mu.Lock()
	defer sy.mu.Unlock()
	return sy.changed
}

// SetLocator re-invokes only when loc differs from the current locator.
// It reports whether an invocation was started.
func (sy *Synchronizer) SetLocator(loc fetch.Locator) bool {
	sy.mu.Lock()
	if loc == sy.loc {
		sy.mu.Unlock()
		return false
	}
	sy.loc = loc
	sy.mu.Unlock()
	return sy.invoke(false)
}

// Refetch re-runs the request with the current locator and config. Every call
// issues its own request; nothing is coalesced.
func (sy *Synchronizer) Refetch() bool {
	return sy.invoke(true)
}

// Await blocks until the newest invocation has resolved and returns its
// state. A later invocation started while waiting extends the wait.
func (sy *Synchronizer) Await(ctx context.Context) (fetch.State, error) {
	for {
		sy.mu.Lock()
		st, settled := sy.state, sy.settled
		sy.mu.Unlock()
		if !st.IsPending() {
			return st, nil
		}
		select {
		case <-settled:
		case <-ctx.Done():
			return st, ctx.Err()
		case <-sy.scope.Done():
			if sy.scope.isClosed() {
				return sy.State(), ErrScopeClosed
			}
			return sy.State(), sy.scope.ctx.Err()
		}
	}
}

func (sy *Synchronizer) invoke(refetch bool) bool {
	sy.mu.Lock()
	if sy.scope.isClosed() {
		sy.mu.Unlock()
		return false
	}
	sy.token++
	token := sy.token
	if !sy.state.IsPending() {
		sy.settled = make(chan struct{})
	}
	sy.state = fetch.Pending()
	sy.broadcastLocked()
	req := fetch.Request{Endpoint: sy.name, Locator: sy.loc, Config: sy.cfg.Normalized()}
	sy.mu.Unlock()

	if refetch {
		sy.scope.refetchC.Add(1, observability.L("resource", sy.name))
	}

	return sy.scope.spawn(func(ctx context.Context) {
		start := time.Now()
		raw, err := sy.scope.fetcher.Fetch(ctx, req)
		sy.apply(ctx, token, req.Locator, raw, err, time.Since(start))
	})
}

func (sy *Synchronizer) apply(ctx context.Context, token uint64, loc fetch.Locator, raw json.RawMessage, err error, took time.Duration) {
	logger := logctx.FromOr(ctx, sy.scope.log).With(
		observability.F("resource", sy.name),
		observability.F("locator", loc.String()),
		observability.F("token", token),
	)

	sy.mu.Lock()
	defer sy.mu.Unlock()
	// Holding the scope lock orders this write against Close.
	sy.scope.mu.Lock()
	defer sy.scope.mu.Unlock()
	if sy.scope.closed {
		logger.Debug("fetch_discarded", observability.F("reason", "scope_closed"))
		return
	}
	if token != sy.token {
		logger.Debug("fetch_discarded", observability.F("reason", "superseded"), observability.F("latest", sy.token))
		return
	}

	next := fetch.Ready(raw)
	if err != nil {
		next = fetch.Failed(err)
	}
	resolved, terr := sy.state.Resolve(next)
	if terr != nil {
		logger.Error("fetch_state_invalid", observability.Err(terr))
		return
	}
	sy.state = resolved
	sy.broadcastLocked()
	close(sy.settled)

	logger.Debug("fetch_done",
		observability.F("status", string(resolved.Status())),
		observability.F("latency_seconds", took.Seconds()),
	)
}

func (sy *Synchronizer) broadcastLocked() {
	close(sy.changed)
	sy.changed = make(chan struct{})
}
