package activity

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/sashi/internal/model"
	"github.com/ent0n29/sashi/internal/observability"
	"github.com/ent0n29/sashi/internal/store"
)

func newTestService(t *testing.T) (*Service, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetricsWith(prometheus.NewRegistry(), "test")
	svc := NewService(store.NewMemoryStore(), metrics, zerolog.Nop())
	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return svc, metrics
}

func ptr(s string) *string { return &s }

func TestLogValidatesAndStores(t *testing.T) {
	ctx := context.Background()
	svc, metrics := newTestService(t)

	_, err := svc.Log(ctx, LogInput{Message: "no type"})
	assert.True(t, model.IsValidation(err))
	_, err = svc.Log(ctx, LogInput{Type: "agent_status_changed", Message: "  "})
	assert.True(t, model.IsValidation(err))
	_, err = svc.Log(ctx, LogInput{Type: "x", Message: "m", Metadata: json.RawMessage(`{broken`)})
	assert.True(t, model.IsValidation(err))

	a, err := svc.Log(ctx, LogInput{
		Type:     "agent_status_changed",
		AgentID:  ptr(" jarvis "),
		TaskID:   ptr(""),
		Message:  " Jarvis went idle ",
		Metadata: json.RawMessage(`{"status":"idle"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "Jarvis went idle", a.Message)
	assert.Equal(t, "jarvis", model.StringValue(a.AgentID))
	assert.Nil(t, a.TaskID)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ActivityRecorded.WithLabelValues("agent_status_changed", "ok")))

	list, err := svc.List(ctx, ListInput{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.JSONEq(t, `{"status":"idle"}`, string(list[0].Metadata))
}

func TestListFiltersAndLimits(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	first, err := svc.Log(ctx, LogInput{Type: "task_created", AgentID: ptr("jarvis"), Message: "one"})
	require.NoError(t, err)
	_, err = svc.Log(ctx, LogInput{Type: "comment_added", AgentID: ptr("friday"), Message: "two"})
	require.NoError(t, err)
	third, err := svc.Log(ctx, LogInput{Type: "task_created", Message: "three"})
	require.NoError(t, err)

	all, err := svc.List(ctx, ListInput{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, third.ID, all[0].ID)

	byAgent, err := svc.List(ctx, ListInput{AgentID: "jarvis"})
	require.NoError(t, err)
	require.Len(t, byAgent, 1)
	assert.Equal(t, first.ID, byAgent[0].ID)

	byType, err := svc.List(ctx, ListInput{Type: "task_created", Limit: "1"})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, third.ID, byType[0].ID)

	since, err := svc.List(ctx, ListInput{Since: third.CreatedAt.Format(time.RFC3339)})
	require.NoError(t, err)
	require.Len(t, since, 1)

	sinceMillis, err := svc.List(ctx, ListInput{Since: "0"})
	require.NoError(t, err)
	assert.Len(t, sinceMillis, 3)

	_, err = svc.List(ctx, ListInput{Since: "yesterday"})
	assert.True(t, model.IsValidation(err))
	_, err = svc.List(ctx, ListInput{Limit: "-1"})
	assert.True(t, model.IsValidation(err))
}

func TestParseSince(t *testing.T) {
	got, err := parseSince("2025-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = parseSince("2025-03-01T10:00:00+01:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), got)

	got, err = parseSince("1740819600000")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), got)
}
