package transport

import (
	"context"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/nodecraft/identity-gateway/internal/logging"
	"github.com/nodecraft/identity-gateway/internal/metrics"
)

// BreakerClient wraps a FetchClient with one circuit breaker per upstream
// host, so a single struggling host (Mojang under a platform incident, say)
// can't exhaust the whole process's retry budget against every other
// platform. Raw-TLS and proxy calls deliberately bypass this wrapper: they
// exist to route around a host the breaker has already opened on.
type BreakerClient struct {
	fetch *FetchClient

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[*Result]
}

// NewBreakerClient builds a BreakerClient over fetch.
func NewBreakerClient(fetch *FetchClient) *BreakerClient {
	return &BreakerClient{
		fetch:    fetch,
		breakers: make(map[string]*gobreaker.CircuitBreaker[*Result]),
	}
}

// breakerFor returns the circuit breaker for host, creating it on first use.
func (c *BreakerClient) breakerFor(host string) *gobreaker.CircuitBreaker[*Result] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[host]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker[*Result](gobreaker.Settings{
		Name:        host,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			logging.Warn().Str("host", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state transition")
		},
	})
	c.breakers[host] = cb
	return cb
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Call routes req.host() through its breaker before delegating to Fetch. A
// tripped breaker returns gobreaker.ErrOpenState, on which Client.Call moves
// on to the next stage the caller listed.
func (c *BreakerClient) Call(ctx context.Context, req Request, opts Options) (*Result, error) {
	host := req.host()
	cb := c.breakerFor(host)

	result, err := cb.Execute(func() (*Result, error) {
		res, callErr := c.fetch.Call(ctx, req, opts)
		if callErr != nil {
			return res, callErr
		}
		return res, nil
	})

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(host, string(RequestTypeFetch), outcome).Inc()

	return result, err
}
