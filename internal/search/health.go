package search

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/scenelocate/scenelocate-agent/internal/metrics"
)

const DefaultHealthTTL = 30 * time.Second

// Health is the outcome of one backend reachability probe.
type Health struct {
	Reachable bool          `json:"reachable"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"latency_ns"`
	CheckedAt time.Time     `json:"checked_at"`
}

// HealthCache wraps a Client to cache Ping results for a TTL so status
// polling does not hit the backend on every call.
type HealthCache struct {
	client Client
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	cached *Health
}

func NewHealthCache(client Client, ttl time.Duration, logger *slog.Logger) *HealthCache {
	if ttl <= 0 {
		ttl = DefaultHealthTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &HealthCache{client: client, ttl: ttl, logger: logger, now: time.Now}
}

// Get returns the cached result if fresh, otherwise probes again.
func (h *HealthCache) Get(ctx context.Context) Health {
	h.mu.RLock()
	if h.cached != nil && h.now().Sub(h.cached.CheckedAt) < h.ttl {
		res := *h.cached
		h.mu.RUnlock()
		return res
	}
	h.mu.RUnlock()

	return h.Refresh(ctx)
}

// Peek returns the last result without probing. ok is false before the
// first probe.
func (h *HealthCache) Peek() (Health, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.cached == nil {
		return Health{}, false
	}
	return *h.cached, true
}

// Refresh probes the backend regardless of cache freshness.
func (h *HealthCache) Refresh(ctx context.Context) Health {
	h.mu.Lock()
	defer h.mu.Unlock()

	start := h.now()
	err := h.client.Ping(ctx)
	res := Health{
		Reachable: err == nil,
		Latency:   h.now().Sub(start),
		CheckedAt: h.now(),
	}
	if err != nil {
		res.Error = err.Error()
		h.logger.Warn("search backend unreachable", "error", err)
		metrics.BackendUp.Set(0)
	} else {
		metrics.BackendUp.Set(1)
	}

	h.cached = &res
	return res
}

// Invalidate clears the cached result.
func (h *HealthCache) Invalidate() {
	h.mu.Lock()
	h.cached = nil
	h.mu.Unlock()
}
