package cleanup

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triad-ai/triad/pkg/models"
	"github.com/triad-ai/triad/pkg/session"
	"github.com/triad-ai/triad/pkg/telemetry"
)

func TestSweepRemovesExpiredSessions(t *testing.T) {
	now := time.Date(2026, 8, 24, 14, 5, 0, 0, time.UTC)
	mgr := session.NewManager(telemetry.NopSink{}, slog.Default(), func() time.Time { return now })

	stale := mgr.GetOrCreate("stale")
	stale.LastActivity = now.Add(-25 * time.Hour)

	fresh := mgr.GetOrCreate("fresh")
	fresh.LastActivity = now.Add(-time.Minute)
	fresh.ActiveTask = &models.ActiveTask{
		TaskID:    "t1",
		CreatedAt: now.Add(-2 * time.Hour),
		State:     models.NewExecutionState(),
	}

	svc := NewService(mgr, nil, slog.Default(), 5*time.Millisecond)
	svc.Start(context.Background())
	defer svc.Stop()

	require.Eventually(t, func() bool {
		return mgr.Count() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Nil(t, fresh.ActiveTask)
}

func TestStopIsIdempotent(t *testing.T) {
	mgr := session.NewManager(telemetry.NopSink{}, slog.Default(), nil)
	svc := NewService(mgr, nil, slog.Default(), 0)
	assert.Equal(t, DefaultInterval, svc.interval)

	svc.Stop() // never started

	svc.Start(context.Background())
	svc.Start(context.Background()) // second start is a no-op
	svc.Stop()
}
