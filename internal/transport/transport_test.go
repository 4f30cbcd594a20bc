package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/nodecraft/identity-gateway/internal/apperr"
)

func TestRequestFullURLAppendsQuery(t *testing.T) {
	req := Request{URL: "https://example.com/path", Query: map[string]string{"key": "abc", "steamids": "1"}}
	full, err := req.fullURL()
	require.NoError(t, err)
	assert.Contains(t, full, "key=abc")
	assert.Contains(t, full, "steamids=1")
}

func TestRequestHost(t *testing.T) {
	req := Request{URL: "https://sessionserver.mojang.com/session/minecraft/profile/abc"}
	assert.Equal(t, "sessionserver.mojang.com", req.host())
}

func TestRequestMethodDefaultsToGet(t *testing.T) {
	assert.Equal(t, "GET", Request{}.method())
	assert.Equal(t, "POST", Request{Method: "POST"}.method())
}

func TestOptionsTimeoutDefault(t *testing.T) {
	assert.Equal(t, DefaultTimeout, Options{}.timeout())
	assert.Equal(t, 2*time.Second, Options{Timeout: 2 * time.Second}.timeout())
}

func TestOptionsPassthrough(t *testing.T) {
	opts := Options{PassthroughStatuses: []int{204, 404}}
	assert.True(t, opts.passthrough(204))
	assert.True(t, opts.passthrough(404))
	assert.False(t, opts.passthrough(200))
}

func TestClassifyRejectsNonJSON(t *testing.T) {
	_, err := classify(Options{Prefix: "xbox"}, 200, map[string]string{"content-type": "text/html"}, nil, RequestTypeFetch)
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Code("xbox.non_json"), appErr.Code)
}

func TestClassifyRateLimited(t *testing.T) {
	_, err := classify(Options{Prefix: "minecraft"}, 429, map[string]string{"content-type": "application/json"}, []byte(`{}`), RequestTypeFetch)
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Code("minecraft.rate_limited"), appErr.Code)
}

func TestClassifyPassthroughStatus(t *testing.T) {
	result, err := classify(Options{Prefix: "minecraft", PassthroughStatuses: []int{404}}, 404, map[string]string{"content-type": "application/json"}, []byte(`{}`), RequestTypeFetch)
	require.NoError(t, err)
	assert.Equal(t, 404, result.Status)
}

func TestClassifyNonPassthroughErrorStatus(t *testing.T) {
	_, err := classify(Options{Prefix: "xbox", NonPassthroughErrorCode: apperr.CodeXboxBadResponseCode}, 500, map[string]string{"content-type": "application/json"}, []byte(`{}`), RequestTypeFetch)
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeXboxBadResponseCode, appErr.Code)
}

func TestClassifySuccess(t *testing.T) {
	result, err := classify(Options{Prefix: "steam"}, 200, map[string]string{"content-type": "application/json; charset=utf-8"}, []byte(`{"ok":true}`), RequestTypeFetch)
	require.NoError(t, err)
	assert.Equal(t, true, result.JSON["ok"])
}

func TestClassifyMalformedBodyDegradesToEmpty(t *testing.T) {
	result, err := classify(Options{Prefix: "steam"}, 200, map[string]string{"content-type": "application/json"}, []byte(`not json`), RequestTypeFetch)
	require.NoError(t, err)
	assert.Nil(t, result.JSON)
}

func TestHostLimiterSeparatesHosts(t *testing.T) {
	limiter := newHostLimiter(rate.Limit(1), 1)
	ctx := context.Background()

	require.NoError(t, limiter.wait(ctx, "a.example.com"))
	require.NoError(t, limiter.wait(ctx, "b.example.com"), "a distinct host should have its own untouched bucket")
}

func TestHostLimiterBlocksUntilCancelled(t *testing.T) {
	limiter := newHostLimiter(rate.Limit(0.001), 1)
	ctx := context.Background()
	require.NoError(t, limiter.wait(ctx, "throttled.example.com"))

	cancelCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	err := limiter.wait(cancelCtx, "throttled.example.com")
	assert.Error(t, err, "a second call against an exhausted bucket should block past the short deadline")
}

func TestProxyClientPickStaysWithinConfiguredSet(t *testing.T) {
	urls := []string{"https://proxy-a.internal", "https://proxy-b.internal", "https://proxy-c.internal"}
	client := NewProxyClient(urls)

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		picked := client.pick()
		assert.Contains(t, urls, picked)
		seen[picked] = true
	}
	assert.Len(t, seen, len(urls), "200 random picks across 3 proxies should eventually hit all of them")
}
