package api

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/nodecraft/identity-gateway/internal/background"
	"github.com/nodecraft/identity-gateway/internal/cache"
	"github.com/nodecraft/identity-gateway/internal/logging"
	"github.com/nodecraft/identity-gateway/internal/metrics"
)

// edgeCacheLayer labels the in-process edge response cache in the
// CacheHits/CacheMisses metrics, distinct from the persistent facade's
// "badger" layer.
const edgeCacheLayer = "memory"

// writeDeadline bounds a single detached edge-cache write.
const writeDeadline = 10 * time.Second

// edgeTTL and edgeErrorTTL mirror the 5-day success / 5-minute error
// Cache-Control the HTTP layer advertises, applied to the in-process edge
// cache that stands in for the hosting runtime's ambient response cache.
const (
	edgeTTL      = 5 * 24 * time.Hour
	edgeErrorTTL = 5 * time.Minute
)

// cachedResponse is the JSON shape stored under an edge cache key.
type cachedResponse struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    []byte            `json:"body"`
}

// recorder captures a handler's response so the edge-cache middleware can
// both forward it to the real client and store it for next time.
type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// edgeCacheKey lowercases the request path, matching the contract that the
// edge cache is keyed by the URL with pathname lowercased.
func edgeCacheKey(path string) string {
	return strings.ToLower(path)
}

// EdgeCache serves a cached response for any /api/ path on a hit, and on a
// miss records the handler's response for next time. Non-API paths pass
// through untouched.
func EdgeCache(store cache.Store, group *background.Group) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}

			key := edgeCacheKey(r.URL.Path)
			if raw, ok, err := store.Get(r.Context(), key); err == nil && ok {
				var cached cachedResponse
				if json.Unmarshal(raw, &cached) == nil {
					metrics.CacheHits.WithLabelValues(edgeCacheLayer).Inc()
					for k, v := range cached.Headers {
						w.Header().Set(k, v)
					}
					w.Header().Set("X-Worker-Cache", "true")
					w.WriteHeader(cached.Status)
					_, _ = w.Write(cached.Body)
					return
				}
			}
			metrics.CacheMisses.WithLabelValues(edgeCacheLayer).Inc()

			holder := &resolvedPlayerID{}
			r = r.WithContext(context.WithValue(r.Context(), playerIDContextKey{}, holder))

			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			ttl := edgeTTL
			if rec.status >= 400 {
				ttl = edgeErrorTTL
			}
			entry := cachedResponse{
				Status: rec.status,
				Headers: map[string]string{
					"Content-Type": rec.Header().Get("Content-Type"),
				},
				Body: rec.body.Bytes(),
			}
			raw, err := json.Marshal(entry)
			if err != nil {
				return
			}
			// The primary entry is stored before the handler returns, so an
			// identical follow-up request hits it; only the secondary entry
			// below is written in the background.
			if err := store.Put(r.Context(), key, raw, ttl); err != nil {
				logging.Warn().Err(err).Str("key", key).Msg("edge cache write failed")
			}

			if holder.id != "" {
				secondaryKey := secondaryEdgeCacheKey(r.URL.Path, holder.id)
				if secondaryKey != key {
					putEdgeEntry(r.Context(), group, store, secondaryKey, raw, ttl)
				}
			}
		})
	}
}

// putEdgeEntry dispatches a cache write onto group so the response send is
// never delayed by it.
func putEdgeEntry(ctx context.Context, group *background.Group, store cache.Store, key string, raw []byte, ttl time.Duration) {
	group.Detached(ctx, writeDeadline, func(bgCtx context.Context) {
		if err := store.Put(bgCtx, key, raw, ttl); err != nil {
			logging.Warn().Err(err).Str("key", key).Msg("edge cache write failed")
		}
	})
}

// secondaryEdgeCacheKey replaces the final path segment (the query the
// caller supplied) with the resolved player id, so a later lookup by either
// spelling hits the cache.
func secondaryEdgeCacheKey(path, playerID string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return edgeCacheKey(path)
	}
	return edgeCacheKey(path[:idx+1] + strings.ToLower(playerID))
}

// playerIDContextKey is the context key under which EdgeCache stashes a
// *resolvedPlayerID for the handler to fill in.
type playerIDContextKey struct{}

// resolvedPlayerID lets the player handler report the id it resolved back
// to the EdgeCache middleware wrapping it, without coupling the two through
// a return value threaded back up the handler chain.
type resolvedPlayerID struct {
	id string
}

// setResolvedPlayerID records id on ctx's holder, if EdgeCache set one up.
func setResolvedPlayerID(ctx context.Context, id string) {
	if holder, ok := ctx.Value(playerIDContextKey{}).(*resolvedPlayerID); ok {
		holder.id = id
	}
}
