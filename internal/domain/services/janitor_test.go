package services

import (
	"context"
	"testing"
	"time"

	"github.com/athebyme/listing-publisher/internal/domain/models"
	"github.com/athebyme/listing-publisher/pkg/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJanitor_Sweep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	seedJob(h, "failed-expired", models.PlatformEbay, interfaces.JobStateFailed, testNow.Add(-48*time.Hour), testNow.Add(-25*time.Hour))
	seedJob(h, "failed-fresh", models.PlatformEbay, interfaces.JobStateFailed, testNow.Add(-2*time.Hour), testNow.Add(-time.Hour))
	seedJob(h, "done-1", models.PlatformEbay, interfaces.JobStateCompleted, testNow.Add(-3*time.Hour), testNow.Add(-3*time.Hour))
	seedJob(h, "done-2", models.PlatformEbay, interfaces.JobStateCompleted, testNow.Add(-2*time.Hour), testNow.Add(-2*time.Hour))
	seedJob(h, "done-3", models.PlatformEbay, interfaces.JobStateCompleted, testNow.Add(-time.Hour), testNow.Add(-time.Hour))
	seedJob(h, "waiting-1", models.PlatformEbay, interfaces.JobStateWaiting, testNow.Add(-72*time.Hour), time.Time{})
	seedJob(h, "waiting-2", models.PlatformEbay, interfaces.JobStateWaiting, testNow.Add(-72*time.Hour), time.Time{})
	seedJob(h, "waiting-3", models.PlatformEbay, interfaces.JobStateWaiting, testNow.Add(-72*time.Hour), time.Time{})

	janitor := NewJanitor(h.queue, h.metrics, JanitorSettings{FailedRetention: 24 * time.Hour, MaxRetained: 2}, newTestLogger())
	janitor.Sweep(ctx)

	completed, err := h.queue.ListJobs(ctx, interfaces.JobStateCompleted, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"done-2", "done-3"}, sortedIDs(completed))

	failed, err := h.queue.ListJobs(ctx, interfaces.JobStateFailed, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"failed-fresh"}, sortedIDs(failed))

	// ожидающие задачи не ограничиваются
	waiting, err := h.queue.ListJobs(ctx, interfaces.JobStateWaiting, 0, 10)
	require.NoError(t, err)
	assert.Len(t, waiting, 3)
}

func TestJanitor_RunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	janitor := NewJanitor(h.queue, nil, JanitorSettings{Interval: time.Millisecond}, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		janitor.Run(ctx)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
