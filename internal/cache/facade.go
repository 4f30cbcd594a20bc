package cache

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/nodecraft/identity-gateway/internal/background"
	"github.com/nodecraft/identity-gateway/internal/logging"
	"github.com/nodecraft/identity-gateway/internal/metrics"
)

// facadeLayer labels this facade's cache hits/misses in the persistent
// (Badger-backed) layer, distinct from the edge response cache's "memory"
// layer recorded by the api package's EdgeCache middleware.
const facadeLayer = "badger"

// negativeSentinel marks a definitive upstream "not found", cached briefly
// to avoid re-burning quota on repeated misses (Xbox only).
type negativeSentinel struct {
	NotFound bool `json:"not_found"`
}

// writeDeadline bounds a detached cache write, matching the shutdown grace
// period the rest of the gateway's background work uses.
const writeDeadline = 10 * time.Second

// Facade wraps a persistent Store with the BYPASS_CACHE read-bypass switch
// and negative-entry helpers. It never returns an error that should fail a
// request: Get degrades to a miss on any underlying failure, and Put never
// blocks the caller — writes run on group and may still be in flight when
// Put returns.
type Facade struct {
	store       Store
	bypassReads bool
	group       *background.Group
}

// NewFacade builds a Facade over store. bypassReads mirrors the
// BYPASS_CACHE environment flag: when true, Get always reports a miss
// (writes are unaffected; only reads are suppressed). Writes are dispatched
// onto group so they outlive the request that triggered them.
func NewFacade(store Store, bypassReads bool, group *background.Group) *Facade {
	return &Facade{store: store, bypassReads: bypassReads, group: group}
}

// Get returns the raw cached bytes for key, or a miss. Never returns an
// error.
func (f *Facade) Get(ctx context.Context, key string) ([]byte, bool) {
	if f.bypassReads {
		return nil, false
	}
	value, ok, err := f.store.Get(ctx, key)
	if err != nil || !ok {
		metrics.CacheMisses.WithLabelValues(facadeLayer).Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues(facadeLayer).Inc()
	return value, true
}

// GetJSON fetches key and unmarshals it into dst, returning false on a miss
// or a decode failure (a corrupt cache entry degrades to a miss, never an
// error).
func (f *Facade) GetJSON(ctx context.Context, key string, dst any) bool {
	raw, ok := f.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false
	}
	return true
}

// IsNegative reports whether the cached value at key is the negative
// sentinel (Xbox-only).
func (f *Facade) IsNegative(ctx context.Context, key string) bool {
	var sentinel negativeSentinel
	if !f.GetJSON(ctx, key, &sentinel) {
		return false
	}
	return sentinel.NotFound
}

// Put dispatches a write of value under key with the given TTL onto the
// background group and returns immediately; the caller never observes a
// store-level error.
func (f *Facade) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.group.Detached(ctx, writeDeadline, func(bgCtx context.Context) {
		if err := f.store.Put(bgCtx, key, value, ttl); err != nil {
			logWriteFailure(key, err)
		}
	})
	return nil
}

// PutJSON marshals v and writes it under key with the given TTL.
func (f *Facade) PutJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return f.Put(ctx, key, raw, ttl)
}

// PutNegative writes the negative sentinel under key with the given TTL.
func (f *Facade) PutNegative(ctx context.Context, key string, ttl time.Duration) error {
	return f.PutJSON(ctx, key, negativeSentinel{NotFound: true}, ttl)
}

func logWriteFailure(key string, err error) {
	logging.Warn().Str("key", key).Err(err).Msg("detached cache write failed")
}
