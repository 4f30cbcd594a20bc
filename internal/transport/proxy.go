package transport

import (
	"bytes"
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/nodecraft/identity-gateway/internal/metrics"
)

// proxyEnvelope is the body the gateway posts to an off-box proxy: the
// proxy dials the target itself (from a different egress IP) and relays
// the raw response back.
type proxyEnvelope struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Query   map[string]string `json:"query,omitempty"`
}

// ProxyClient forwards calls through one of a configured set of off-box
// proxy containers, chosen uniformly at random per call. It is the
// last-resort transport used only for hosts where both Fetch and raw-TLS
// are exhausted (Hytale, Minecraft).
type ProxyClient struct {
	httpClient *http.Client
	proxyURLs  []string
}

// NewProxyClient builds a ProxyClient over proxyURLs, each a full endpoint
// the gateway POSTs a proxyEnvelope to.
func NewProxyClient(proxyURLs []string) *ProxyClient {
	return &ProxyClient{httpClient: &http.Client{}, proxyURLs: proxyURLs}
}

// Available reports whether any proxy endpoint is configured.
func (c *ProxyClient) Available() bool {
	return len(c.proxyURLs) > 0
}

func (c *ProxyClient) pick() string {
	return c.proxyURLs[rand.IntN(len(c.proxyURLs))]
}

// Call relays req through a proxy endpoint. The proxy forces its own
// User-Agent on the upstream call; the gateway's Headers are forwarded but
// the proxy is free to ignore User-Agent.
func (c *ProxyClient) Call(ctx context.Context, req Request, opts Options) (result *Result, err error) {
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		metrics.UpstreamRequestsTotal.WithLabelValues(req.host(), string(RequestTypeContainer), outcome).Inc()
	}()

	if !c.Available() {
		return nil, parseError(opts.Prefix, errNoProxyConfigured)
	}

	ctx, cancel := context.WithTimeout(ctx, HytaleTimeout)
	defer cancel()

	envelope := proxyEnvelope{URL: req.URL, Method: req.method(), Headers: req.Headers, Query: req.Query}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, parseError(opts.Prefix, err)
	}

	endpoint := c.pick()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, parseError(opts.Prefix, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

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

	return classify(opts, resp.StatusCode, headers, body, RequestTypeContainer)
}

type proxyError string

func (e proxyError) Error() string { return string(e) }

const errNoProxyConfigured = proxyError("no proxy endpoints configured")
