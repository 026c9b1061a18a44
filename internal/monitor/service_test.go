package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netoptimizer/internal/assess"
	"netoptimizer/internal/eventbus"
)

func TestRefreshCachesSnapshot(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	s := New(func(context.Context) (*assess.SnapshotResult, error) {
		return &assess.SnapshotResult{PingMs: 12, DownloadMbps: 50, UploadMbps: 10, Timestamp: now}, nil
	}, WithBus(bus), WithNow(func() time.Time { return now }))

	_, ok := s.Latest()
	assert.False(t, ok)

	require.NoError(t, s.Refresh(context.Background()))
	snap, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, 50.0, snap.DownloadMbps)

	ev := <-events
	assert.Equal(t, eventbus.TopicSnapshot, ev.Topic)
}

func TestLatestExpires(t *testing.T) {
	taken := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	now := taken
	s := New(func(context.Context) (*assess.SnapshotResult, error) {
		return &assess.SnapshotResult{Timestamp: taken}, nil
	}, WithNow(func() time.Time { return now }))
	s.cfg.MaxAge = time.Minute

	require.NoError(t, s.Refresh(context.Background()))
	now = taken.Add(59 * time.Second)
	_, ok := s.Latest()
	assert.True(t, ok)

	now = taken.Add(61 * time.Second)
	_, ok = s.Latest()
	assert.False(t, ok)
}

func TestRefreshFailureKeepsPrevious(t *testing.T) {
	calls := 0
	s := New(func(context.Context) (*assess.SnapshotResult, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("upstream down")
		}
		return &assess.SnapshotResult{PingMs: 9, Timestamp: time.Now()}, nil
	})

	require.NoError(t, s.Refresh(context.Background()))
	assert.Error(t, s.Refresh(context.Background()))
	snap, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, 9.0, snap.PingMs)
}

func TestReconfigureLifecycle(t *testing.T) {
	s := New(func(context.Context) (*assess.SnapshotResult, error) { return &assess.SnapshotResult{}, nil })
	ctx := context.Background()

	assert.Error(t, s.Reconfigure(ctx, Config{Enabled: true, Schedule: "nope"}))

	require.NoError(t, s.Reconfigure(ctx, Config{Enabled: true, Schedule: "1h"}))
	assert.NotNil(t, s.cron)
	assert.Equal(t, 2*time.Hour, s.cfg.MaxAge)

	require.NoError(t, s.Reconfigure(ctx, Config{Enabled: false}))
	assert.Nil(t, s.cron)

	require.NoError(t, s.Reconfigure(ctx, Config{Enabled: true, Schedule: "@hourly", MaxAge: time.Minute}))
	s.Stop(ctx)
	assert.Nil(t, s.cron)
}
