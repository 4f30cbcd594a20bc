// Package transport implements the gateway's three upstream call styles: a
// regular HTTPS fetch, a raw-TLS socket call that bypasses the fetch stack's
// IP for rate-limit evasion, and an off-box proxy call. All three share
// timeout handling, JSON content-type checking, and status-code triage;
// only Fetch is wrapped in a per-host circuit breaker (see breaker.go),
// since raw-TLS and the proxy exist precisely to route around a host Fetch
// currently cannot reach.
package transport

import (
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/nodecraft/identity-gateway/internal/apperr"
)

// DefaultTimeout is the 5s default call timeout; Hytale's HTTP calls use
// HytaleTimeout instead.
const DefaultTimeout = 5 * time.Second

// HytaleTimeout is the 10s timeout used for Hytale HTTP calls.
const HytaleTimeout = 10 * time.Second

// Request describes a single upstream call.
type Request struct {
	URL     string
	Method  string // default GET
	Headers map[string]string
	Query   map[string]string
}

func (r Request) fullURL() (string, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return "", err
	}
	if len(r.Query) > 0 {
		q := u.Query()
		for k, v := range r.Query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (r Request) host() string {
	u, err := url.Parse(r.URL)
	if err != nil {
		return r.URL
	}
	return u.Host
}

func (r Request) method() string {
	if r.Method == "" {
		return "GET"
	}
	return r.Method
}

// RequestType records which transport style ultimately produced a Result,
// surfaced on analytics points.
type RequestType string

const (
	RequestTypeFetch     RequestType = "fetch"
	RequestTypeTCP       RequestType = "tcp"
	RequestTypeContainer RequestType = "container"
)

// Result is a classified upstream response.
type Result struct {
	Status      int
	Headers     map[string]string
	Body        []byte
	JSON        map[string]any
	RequestType RequestType
}

// Options configures how a Call classifies the response it receives.
type Options struct {
	// Prefix is the platform error-code prefix, e.g. "minecraft", "xbox".
	Prefix string

	// Timeout overrides DefaultTimeout/HytaleTimeout for this call.
	Timeout time.Duration

	// PassthroughStatuses lists statuses that should NOT be converted to
	// an error — the caller inspects status/body itself (Minecraft's
	// 204/404 "no such profile" handling, Xbox's 200-with-business-error
	// bodies, Hytale's 401/403/404 retry handling).
	PassthroughStatuses []int

	// NonPassthroughErrorCode overrides the default "<prefix>.api_failure"
	// code used for a non-200, non-429, non-passthrough status (Xbox uses
	// "xbox.bad_response_code").
	NonPassthroughErrorCode apperr.Code
}

func (o Options) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return DefaultTimeout
}

func (o Options) passthrough(status int) bool {
	for _, s := range o.PassthroughStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// classify applies the common status-code/content-type triage to a raw
// (status, headers, body) tuple.
func classify(opts Options, status int, headers map[string]string, body []byte, reqType RequestType) (*Result, error) {
	contentType := headers["content-type"]
	if !strings.Contains(strings.ToLower(contentType), "json") {
		return nil, apperr.Internal(apperr.Code(opts.Prefix+".non_json"), map[string]any{"content_type": contentType})
	}

	var parsed map[string]any
	if len(body) > 0 {
		// A JSON parse failure degrades to an empty body, not an error.
		_ = json.Unmarshal(body, &parsed)
	}

	result := &Result{Status: status, Headers: headers, Body: body, JSON: parsed, RequestType: reqType}

	switch {
	case status == 429:
		return result, apperr.Internal(apperr.Code(opts.Prefix+".rate_limited"), map[string]any{"status": status})
	case opts.passthrough(status):
		return result, nil
	case status != 200:
		code := opts.NonPassthroughErrorCode
		if code == "" {
			code = apperr.Code(opts.Prefix + ".api_failure")
		}
		return result, apperr.Internal(code, map[string]any{"status": status})
	default:
		return result, nil
	}
}

// timeoutError reports a context deadline as the platform's api_failure code.
func timeoutError(prefix string) error {
	return apperr.Internal(apperr.Code(prefix+".api_failure"), map[string]any{"reason": "timeout"})
}

// parseError reports a malformed upstream response as the platform's
// api_failure code.
func parseError(prefix string, err error) error {
	return apperr.Internal(apperr.Code(prefix+".api_failure"), map[string]any{"reason": err.Error()})
}
