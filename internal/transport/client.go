package transport

import (
	"context"
	"errors"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/nodecraft/identity-gateway/internal/apperr"
	"github.com/nodecraft/identity-gateway/internal/logging"
)

// defaultHostRateLimit caps outbound requests to any single upstream host.
// Platform APIs (Mojang, Steam, Xbox, Hytale) all enforce their own limits
// well under this; it exists as a backstop against a caller misusing the
// pipelines in a tight loop.
const (
	defaultHostRateLimit = rate.Limit(20)
	defaultHostBurst     = 10
)

// Client orchestrates the upstream fallback across three stages: a
// circuit-broken Fetch, a raw-TLS socket call, and an off-box proxy call.
// Each platform pipeline decides which stages apply to it, and in what
// order, through the stages it passes to Call (only Hytale and Minecraft
// ever reach the proxy stage).
type Client struct {
	breaker *BreakerClient
	rawTLS  *RawTLSClient
	proxy   *ProxyClient
	limiter *hostLimiter
}

// NewClient builds a Client. proxyURLs may be empty, in which case the
// proxy stage is skipped even if requested.
func NewClient(proxyURLs []string) *Client {
	return &Client{
		breaker: NewBreakerClient(NewFetchClient()),
		rawTLS:  NewRawTLSClient(),
		proxy:   NewProxyClient(proxyURLs),
		limiter: newHostLimiter(defaultHostRateLimit, defaultHostBurst),
	}
}

// Stage names a fallback step a pipeline allows Call to attempt.
type Stage int

const (
	StageFetch Stage = iota
	StageRawTLS
	StageProxy
)

// Call attempts req in order through stages, returning the first stage's
// result that doesn't fail, or the last stage's error if all fail. A
// fail-kind apperr.Error (e.g. a platform-confirmed not_found) short-
// circuits the fallback immediately: retrying on a different socket won't
// change a definitive "no such player" answer.
func (c *Client) Call(ctx context.Context, req Request, opts Options, stages ...Stage) (*Result, error) {
	if len(stages) == 0 {
		stages = []Stage{StageFetch}
	}

	if err := c.limiter.wait(ctx, req.host()); err != nil {
		return nil, err
	}

	var lastErr error
	for _, stage := range stages {
		var result *Result
		var err error

		switch stage {
		case StageFetch:
			result, err = c.breaker.Call(ctx, req, opts)
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				logging.Ctx(ctx).Warn().Str("host", req.host()).Msg("fetch circuit open, falling back")
				lastErr = err
				continue
			}
		case StageRawTLS:
			result, err = c.rawTLS.Call(ctx, req, opts)
		case StageProxy:
			if !c.proxy.Available() {
				continue
			}
			result, err = c.proxy.Call(ctx, req, opts)
		}

		if err == nil {
			return result, nil
		}

		lastErr = err
		if appErr, ok := apperr.As(err); ok && appErr.Kind == apperr.KindFail {
			return result, err
		}
	}

	return nil, lastErr
}
