package transport

import (
	"context"
	"io"
	"net/http"
	"strings"
)

// FetchClient issues regular HTTPS calls through the standard library
// client. It is the default transport; breaker.go wraps it per host.
type FetchClient struct {
	httpClient *http.Client
}

// NewFetchClient builds a FetchClient. The client itself carries no
// timeout — each call derives its own from ctx so DefaultTimeout/
// HytaleTimeout/opts.Timeout apply per request, not per client.
func NewFetchClient() *FetchClient {
	return &FetchClient{httpClient: &http.Client{}}
}

// Call performs req and classifies the response per opts.
func (c *FetchClient) Call(ctx context.Context, req Request, opts Options) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	fullURL, err := req.fullURL()
	if err != nil {
		return nil, parseError(opts.Prefix, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method(), fullURL, nil)
	if err != nil {
		return nil, parseError(opts.Prefix, err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, timeoutError(opts.Prefix)
		}
		return nil, parseError(opts.Prefix, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, parseError(opts.Prefix, err)
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[strings.ToLower(k)] = resp.Header.Get(k)
	}

	return classify(opts, resp.StatusCode, headers, body, RequestTypeFetch)
}
