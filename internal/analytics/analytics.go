// Package analytics implements the gateway's write-only telemetry sink: one
// append-only table recording every request outcome, written through
// database/sql against an embedded DuckDB file so the gateway never depends
// on a network analytics service being reachable.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/nodecraft/identity-gateway/internal/background"
	"github.com/nodecraft/identity-gateway/internal/logging"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS request_points (
	type             VARCHAR,
	error            VARCHAR,
	request_type     VARCHAR,
	url              VARCHAR,
	user_agent       VARCHAR,
	referer          VARCHAR,
	protocol         VARCHAR,
	city             VARCHAR,
	colo             VARCHAR,
	country          VARCHAR,
	tls_version      VARCHAR,
	asn              BIGINT,
	cached           TINYINT,
	response_time_ms BIGINT,
	status           BIGINT,
	recorded_at      TIMESTAMP DEFAULT current_timestamp
)`

// Column order here is part of the external contract: every insert must
// list them in exactly this sequence.
const insertSQL = `INSERT INTO request_points (
	type, error, request_type, url, user_agent, referer, protocol,
	city, colo, country, tls_version, asn, cached, response_time_ms, status
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// writeDeadline bounds a single detached analytics write.
const writeDeadline = 10 * time.Second

// Point is one recorded request outcome.
type Point struct {
	Type           string
	Error          string // error code; empty for a successful lookup
	RequestType    string // "fetch", "tcp", "container", or "" for a cache hit
	URL            string
	UserAgent      string
	Referer        string
	Protocol       string
	City           string
	Colo           string
	Country        string
	TLSVersion     string
	ASN            int64
	Cached         bool
	ResponseTimeMs int64
	Status         int
}

// Sink writes Points to the embedded analytics database.
type Sink struct {
	db    *sql.DB
	group *background.Group
}

// Open opens (creating if absent) a DuckDB file at path and ensures the
// request_points table exists.
func Open(path string, group *background.Group) (*Sink, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create analytics directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open analytics database: %w", err)
	}

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create request_points table: %w", err)
	}

	return &Sink{db: db, group: group}, nil
}

// Close closes the underlying database connection.
func (s *Sink) Close() error {
	return s.db.Close()
}

// WritePoint anonymizes p.UserAgent and dispatches the insert onto the
// sink's background group so it never blocks the response that triggered it.
func (s *Sink) WritePoint(ctx context.Context, p Point) {
	p.UserAgent = AnonymizeUserAgent(p.UserAgent)
	cached := 0
	if p.Cached {
		cached = 1
	}

	s.group.Detached(ctx, writeDeadline, func(bgCtx context.Context) {
		_, err := s.db.ExecContext(bgCtx, insertSQL,
			p.Type, nullableString(p.Error), nullableString(p.RequestType), p.URL, p.UserAgent,
			p.Referer, p.Protocol, p.City, p.Colo, p.Country, p.TLSVersion,
			p.ASN, cached, p.ResponseTimeMs, p.Status,
		)
		if err != nil {
			logging.Warn().Err(err).Msg("analytics write failed")
		}
	})
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// tierMarker and playedByMarker implement the user-agent anonymization
// rule: a "Tiers " prefixed agent string that also contains "played by "
// is truncated right at that substring, discarding the subscriber-identifying
// suffix.
const (
	tierMarker    = "Tiers "
	playedByMarker = "played by "
)

// AnonymizeUserAgent truncates a "Tiers ...played by <name>" user agent at
// the played-by marker; any other user agent passes through unchanged.
func AnonymizeUserAgent(ua string) string {
	if !strings.HasPrefix(ua, tierMarker) {
		return ua
	}
	if idx := strings.Index(ua, playedByMarker); idx >= 0 {
		return ua[:idx]
	}
	return ua
}
