// Package cache implements the gateway's cache facade: a
// uniform get/put-with-TTL contract over a persistent byte store, plus a
// process-ambient in-memory cache for the edge response cache and the
// upstream fetch-cache hint layer, with a BYPASS_CACHE read-bypass switch.
//
// Cache reads never block or fail the request: a miss, a timeout, or a
// store error are all treated identically by Facade.Get — the caller
// proceeds as if the entry were absent. Writes should be handed to
// internal/background so they outlive the response.
package cache

import (
	"context"
	"time"
)

// Store is a namespaced byte-value key/value store with per-entry TTLs.
// Implementations: BadgerStore (persistent) and MemoryStore (in-process).
type Store interface {
	// Get returns (value, true, nil) on a hit, (nil, false, nil) on a
	// clean miss, and (nil, false, err) only for genuine store failures —
	// callers besides Facade should still treat a non-nil err as a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put writes value under key with the given TTL.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
