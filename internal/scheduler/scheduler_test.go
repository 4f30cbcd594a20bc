package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	calls int32
}

func (c *countingRefresher) ProactiveRefresh(_ context.Context) error {
	atomic.AddInt32(&c.calls, 1)
	return nil
}

func TestRotatorTicksImmediatelyAndRepeatedly(t *testing.T) {
	refresher := &countingRefresher{}
	r := New(refresher, Config{Interval: 10 * time.Millisecond, Enabled: true})

	require.NoError(t, r.Start(context.Background()))
	time.Sleep(55 * time.Millisecond)
	require.NoError(t, r.Stop())

	assert.GreaterOrEqual(t, atomic.LoadInt32(&refresher.calls), int32(3))
}

func TestRotatorDisabledNeverTicks(t *testing.T) {
	refresher := &countingRefresher{}
	r := New(refresher, Config{Interval: 10 * time.Millisecond, Enabled: false})

	require.NoError(t, r.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, r.Stop())

	assert.Equal(t, int32(0), atomic.LoadInt32(&refresher.calls))
}

func TestRotatorDoubleStartErrors(t *testing.T) {
	refresher := &countingRefresher{}
	r := New(refresher, Config{Interval: time.Hour, Enabled: true})

	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()

	assert.Error(t, r.Start(context.Background()))
}

func TestRotatorStopWithoutStartIsNoop(t *testing.T) {
	refresher := &countingRefresher{}
	r := New(refresher, Config{Interval: time.Hour, Enabled: true})
	assert.NoError(t, r.Stop())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, time.Hour, cfg.Interval)
	assert.True(t, cfg.Enabled)
}
