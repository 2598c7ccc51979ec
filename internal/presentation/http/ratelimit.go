package httppresentation

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vechnost/storefront/internal/observability"
	"github.com/vechnost/storefront/internal/observability/logctx"
)

const (
	// maxClients bounds the per-client table.
	maxClients = 10000
	// clientIdleTTL is how long an unused bucket is kept once the table is full.
	clientIdleTTL = 10 * time.Minute
)

type client struct {
	limiter *rate.Limiter
	seen    time.Time
}

// RateLimiter throttles each client (by remote IP) with a token bucket.
// When the table is full, idle clients are dropped first and then the least
// recently seen one, so active clients keep their budget.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	max     int
	idle    time.Duration
	now     func() time.Time
	rate    rate.Limit
	burst   int
	log     observability.Logger
}

func NewRateLimiter(requestsPerSecond float64, burst int, logger observability.Logger) *RateLimiter {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &RateLimiter{
		clients: make(map[string]*client),
		max:     maxClients,
		idle:    clientIdleTTL,
		now:     time.Now,
		rate:    rate.Limit(requestsPerSecond),
		burst:   burst,
		log:     logger.With(observability.F("component", "rate_limiter")),
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	c, ok := rl.clients[key]
	if !ok {
		if len(rl.clients) >= rl.max {
			rl.evictLocked(now)
		}
		c = &client{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[key] = c
	}
	c.seen = now
	return c.limiter
}

// evictLocked drops every client idle for longer than rl.idle, or the least
// recently seen one when none is.
func (rl *RateLimiter) evictLocked(now time.Time) {
	var oldest string
	var oldestSeen time.Time
	dropped := 0
	for k, c := range rl.clients {
		if now.Sub(c.seen) > rl.idle {
			delete(rl.clients, k)
			dropped++
			continue
		}
		if oldest == "" || c.seen.Before(oldestSeen) {
			oldest, oldestSeen = k, c.seen
		}
	}
	if dropped == 0 && oldest != "" {
		delete(rl.clients, oldest)
		dropped++
	}
	rl.log.Debug("rate_limiter_evicted",
		observability.F("dropped", dropped),
		observability.F("clients", len(rl.clients)),
	)
}

// Handler rejects requests over budget with 429.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !rl.limiter(key).Allow() {
			logctx.FromOr(r.Context(), rl.log).Warn("rate_limit_exceeded",
				observability.F("client", key),
				observability.F("path", r.URL.Path),
				observability.F("method", r.Method),
			)
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, errRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
