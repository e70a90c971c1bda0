package metrics

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcollado/adforge/internal/domain"
	"github.com/lcollado/adforge/internal/events"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	return rec.Body.String()
}

func taskEvent(status domain.TaskStatus, attempt int) *events.TaskEvent {
	return events.NewTaskEvent(domain.TaskSnapshot{
		ID:         uuid.New(),
		ProviderID: "video-luma",
		Status:     status,
		Attempt:    attempt,
	}, "test")
}

func TestMetrics_TaskLifecycleCounters(t *testing.T) {
	t.Parallel()

	m := New()
	ctx := context.Background()

	require.NoError(t, m.HandleEvent(ctx, taskEvent(domain.TaskStatusQueued, 0)))
	require.NoError(t, m.HandleEvent(ctx, taskEvent(domain.TaskStatusQueued, 0)))
	require.NoError(t, m.HandleEvent(ctx, taskEvent(domain.TaskStatusSucceeded, 2)))
	require.NoError(t, m.HandleEvent(ctx, taskEvent(domain.TaskStatusFailed, 3)))

	body := scrape(t, m)
	assert.Contains(t, body, `adforge_tasks_total{provider="video-luma",status="succeeded"} 1`)
	assert.Contains(t, body, `adforge_tasks_total{provider="video-luma",status="failed"} 1`)
	assert.Contains(t, body, `adforge_task_attempts_total{provider="video-luma"} 5`)
	assert.Contains(t, body, `adforge_tasks_in_flight{provider="video-luma"} 0`)
}

func TestMetrics_HealthCollector(t *testing.T) {
	t.Parallel()

	m := New()
	m.RegisterHealth(func() []HealthSample {
		return []HealthSample{
			{ProviderID: "video-luma", BreakerState: "open", ConsecutiveFailures: 5, QueueDepth: 3},
			{ProviderID: "compositor", BreakerState: "closed"},
		}
	})

	body := scrape(t, m)
	assert.Contains(t, body, `adforge_breaker_state{provider="video-luma"} 2`)
	assert.Contains(t, body, `adforge_breaker_state{provider="compositor"} 0`)
	assert.Contains(t, body, `adforge_breaker_consecutive_failures{provider="video-luma"} 5`)
	assert.Contains(t, body, `adforge_provider_queue_depth{provider="video-luma"} 3`)
}

func TestMetrics_RunningEventsDoNotDoubleCount(t *testing.T) {
	t.Parallel()

	m := New()
	ctx := context.Background()

	require.NoError(t, m.HandleEvent(ctx, taskEvent(domain.TaskStatusQueued, 0)))
	require.NoError(t, m.HandleEvent(ctx, taskEvent(domain.TaskStatusRunning, 1)))
	require.NoError(t, m.HandleEvent(ctx, taskEvent(domain.TaskStatusRunning, 2)))
	require.NoError(t, m.HandleEvent(ctx, taskEvent(domain.TaskStatusSucceeded, 2)))

	body := scrape(t, m)
	assert.Contains(t, body, `adforge_tasks_in_flight{provider="video-luma"} 0`)
	assert.False(t, strings.Contains(body, `adforge_tasks_total{provider="video-luma",status="running"}`))
}
