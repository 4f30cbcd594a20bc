// Package scheduler runs the Hytale token manager's proactive maintenance
// tick, following the teacher's newsletter scheduler shape (internal/
// newsletter/scheduler/scheduler.go): a ticker loop with Start/Stop guarded
// by a mutex and a stop channel, minus the per-tick delivery fan-out this
// job doesn't need.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nodecraft/identity-gateway/internal/logging"
)

// Config holds configuration for the rotation scheduler.
type Config struct {
	// Interval is how often proactive_refresh runs. Default: 1 hour.
	Interval time.Duration

	// Enabled controls whether the scheduler actually ticks.
	Enabled bool
}

// DefaultConfig returns the default rotation schedule: hourly, enabled.
func DefaultConfig() Config {
	return Config{Interval: time.Hour, Enabled: true}
}

// Refresher is the subset of hytale.Manager the rotator needs.
type Refresher interface {
	ProactiveRefresh(ctx context.Context) error
}

// Rotator periodically calls ProactiveRefresh on the Hytale token manager.
// No per-request work happens here; it is purely liveness maintenance for
// the refresh token and the session pool.
type Rotator struct {
	manager Refresher
	config  Config

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New builds a Rotator over manager.
func New(manager Refresher, config Config) *Rotator {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	return &Rotator{manager: manager, config: config}
}

// Start begins the ticker loop.
func (r *Rotator) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("rotator already running")
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	if !r.config.Enabled {
		logging.Info().Msg("hytale token rotation disabled")
		go func() {
			defer close(r.doneCh)
			<-r.stopCh
		}()
		return nil
	}

	logging.Info().Dur("interval", r.config.Interval).Msg("starting hytale token rotation")
	go r.run(ctx)
	return nil
}

// Stop stops the ticker loop and waits for it to exit.
func (r *Rotator) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
	return nil
}

func (r *Rotator) run(ctx context.Context) {
	defer close(r.doneCh)

	if err := r.manager.ProactiveRefresh(ctx); err != nil {
		logging.Warn().Err(err).Msg("hytale proactive refresh failed")
	}

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.manager.ProactiveRefresh(ctx); err != nil {
				logging.Warn().Err(err).Msg("hytale proactive refresh failed")
			}
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
