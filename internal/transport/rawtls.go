package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/nodecraft/identity-gateway/internal/httpcodec"
	"github.com/nodecraft/identity-gateway/internal/metrics"
)

// RawTLSClient opens its own TLS socket and writes a hand-built HTTP/1.1
// request, bypassing the process's normal outbound connection pool. It
// exists for hosts that rate-limit by source IP/connection fingerprint
// rather than by credential, where a fresh raw socket sometimes succeeds
// after the pooled Fetch client has been throttled.
type RawTLSClient struct {
	dialer *net.Dialer
}

// NewRawTLSClient builds a RawTLSClient.
func NewRawTLSClient() *RawTLSClient {
	return &RawTLSClient{dialer: &net.Dialer{}}
}

// Call opens a TLS connection to req's host on port 443, writes a manual
// GET request, reads the full response, and classifies it per opts.
func (c *RawTLSClient) Call(ctx context.Context, req Request, opts Options) (result *Result, err error) {
	metricHost := req.host()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		metrics.UpstreamRequestsTotal.WithLabelValues(metricHost, string(RequestTypeTCP), outcome).Inc()
	}()

	ctx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	host := req.host()
	hostname := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		hostname = h
	} else {
		host = host + ":443"
	}

	rawConn, err := c.dialer.DialContext(ctx, "tcp", host)
	if err != nil {
		return nil, parseError(opts.Prefix, err)
	}
	defer rawConn.Close()

	conn := tls.Client(rawConn, &tls.Config{ServerName: hostname})
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if err := conn.HandshakeContext(ctx); err != nil {
		return nil, parseError(opts.Prefix, err)
	}
	defer conn.Close()

	u, err := req.fullURL()
	if err != nil {
		return nil, parseError(opts.Prefix, err)
	}
	path := u
	if idx := strings.Index(u, hostname); idx >= 0 {
		if slash := strings.Index(u[idx:], "/"); slash >= 0 {
			path = u[idx+slash:]
		} else {
			path = "/"
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", req.method(), path)
	fmt.Fprintf(&b, "Host: %s\r\n", hostname)
	fmt.Fprintf(&b, "Connection: close\r\n")
	for k, v := range req.Headers {
		fmt.Fprintf(&b, "%s: %s\r\n", k, v)
	}
	b.WriteString("\r\n")

	if _, err := conn.Write([]byte(b.String())); err != nil {
		return nil, parseError(opts.Prefix, err)
	}

	raw, err := io.ReadAll(conn)
	if err != nil && len(raw) == 0 {
		if ctx.Err() != nil {
			return nil, timeoutError(opts.Prefix)
		}
		return nil, parseError(opts.Prefix, err)
	}

	parsed, err := httpcodec.ParseResponse(raw)
	if err != nil {
		return nil, parseError(opts.Prefix, err)
	}

	headers := make(map[string]string, len(parsed.Headers))
	for k, v := range parsed.Headers {
		headers[strings.ToLower(k)] = v
	}

	return classify(opts, parsed.Status, headers, parsed.Body, RequestTypeTCP)
}
