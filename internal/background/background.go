// Package background supplies a "detached task" primitive for
// work that must outlive the HTTP response that triggered it
// (cache writes, analytics points) but must still be drained before the
// process exits, in lieu of a hosting runtime's native waitUntil.
package background

import (
	"context"
	"sync"
	"time"

	"github.com/nodecraft/identity-gateway/internal/logging"
)

// Group tracks in-flight detached tasks so a graceful shutdown can wait for
// them (bounded by its own timeout) instead of dropping work on the floor.
type Group struct {
	wg sync.WaitGroup
}

// New creates an empty Group.
func New() *Group {
	return &Group{}
}

// Detached runs fn on its own goroutine with a fresh deadline derived from
// base (normally the server's shutdown context, not the inbound request's
// context, which is canceled as soon as the response is sent). Panics in fn
// are recovered and logged rather than crashing the process.
func (g *Group) Detached(base context.Context, deadline time.Duration, fn func(ctx context.Context)) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logging.Error().Interface("panic", r).Msg("recovered panic in detached task")
			}
		}()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(base), deadline)
		defer cancel()
		fn(ctx)
	}()
}

// Wait blocks until every task started with Detached has returned, or until
// ctx is done, whichever comes first.
func (g *Group) Wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		logging.Warn().Msg("shutdown deadline reached before all detached tasks finished")
	}
}
