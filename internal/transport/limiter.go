package transport

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// hostLimiter throttles outbound calls per upstream host. It is independent
// of the circuit breaker: the breaker reacts to failures, this caps
// steady-state request rate so a burst of player lookups doesn't trip an
// upstream's own rate limiting in the first place. Grounded on the teacher's
// per-IP RateLimiter (internal/auth/middleware.go), keyed here by upstream
// host instead of client IP.
type hostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newHostLimiter(limit rate.Limit, burst int) *hostLimiter {
	return &hostLimiter{limiters: make(map[string]*rate.Limiter), limit: limit, burst: burst}
}

func (h *hostLimiter) wait(ctx context.Context, host string) error {
	h.mu.Lock()
	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(h.limit, h.burst)
		h.limiters[host] = l
	}
	h.mu.Unlock()
	return l.Wait(ctx)
}
