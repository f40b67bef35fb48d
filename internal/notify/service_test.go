package notify

import (
	"context"
	"fmt"
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
	svc := NewService(store.NewMemoryStore(), nil, metrics, zerolog.Nop())
	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc, metrics
}

func boolPtr(b bool) *bool { return &b }

func mustCreate(t *testing.T, svc *Service, agent string) model.Notification {
	t.Helper()
	n, err := svc.Create(context.Background(), CreateInput{AgentID: agent, Content: "task assigned"})
	require.NoError(t, err)
	return n
}

func TestDeliverThenRead(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	n := mustCreate(t, svc, "agent-1")
	assert.False(t, n.Delivered)
	assert.False(t, n.Read)

	m, err := svc.UpdateFlags(ctx, n.ID, FlagsInput{Delivered: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, m.Notification.Delivered)
	assert.False(t, m.Notification.Read)
	assert.False(t, m.Previous.Delivered)

	m, err = svc.UpdateFlags(ctx, n.ID, FlagsInput{Read: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, m.Notification.Delivered)
	assert.True(t, m.Notification.Read)
}

func TestReadAutoPromotesDelivered(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	n := mustCreate(t, svc, "agent-1")

	m, err := svc.UpdateFlags(ctx, n.ID, FlagsInput{Read: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, m.Notification.Read)
	assert.True(t, m.Notification.Delivered, "read must imply delivered")
}

func TestReadWithExplicitUndeliveredRejected(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	n := mustCreate(t, svc, "agent-1")

	_, err := svc.UpdateFlags(ctx, n.ID, FlagsInput{Read: boolPtr(true), Delivered: boolPtr(false)})
	assert.True(t, model.IsValidation(err))

	got, err := svc.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.False(t, got.Read)
}

func TestNoFieldsRejected(t *testing.T) {
	svc, metrics := newTestService(t)
	n := mustCreate(t, svc, "agent-1")

	_, err := svc.UpdateFlags(context.Background(), n.ID, FlagsInput{})
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NotificationUpdates.WithLabelValues("rejected")))
}

func TestCannotRevertFlags(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	n := mustCreate(t, svc, "agent-1")

	_, err := svc.UpdateFlags(ctx, n.ID, FlagsInput{Read: boolPtr(true)})
	require.NoError(t, err)

	_, err = svc.UpdateFlags(ctx, n.ID, FlagsInput{Delivered: boolPtr(false)})
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
	_, err = svc.UpdateFlags(ctx, n.ID, FlagsInput{Read: boolPtr(false)})
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestClearingUnsetFlagIsNoop(t *testing.T) {
	svc, metrics := newTestService(t)
	n := mustCreate(t, svc, "agent-1")

	m, err := svc.UpdateFlags(context.Background(), n.ID, FlagsInput{Read: boolPtr(false), Delivered: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, m.Notification.Delivered)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NotificationUpdates.WithLabelValues("noop")))
}

func TestUpdateMissingNotification(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.UpdateFlags(context.Background(), "nope", FlagsInput{Delivered: boolPtr(true)})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestListFiltersAndLimits(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	var ids []string
	for i := 0; i < 3; i++ {
		ids = append(ids, mustCreate(t, svc, "agent-1").ID)
	}
	mustCreate(t, svc, "agent-2")
	_, err := svc.UpdateFlags(ctx, ids[0], FlagsInput{Delivered: boolPtr(true)})
	require.NoError(t, err)

	all, err := svc.List(ctx, ListInput{AgentID: "agent-1"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID, "newest first")

	undelivered, err := svc.List(ctx, ListInput{AgentID: "agent-1", Undelivered: true})
	require.NoError(t, err)
	assert.Len(t, undelivered, 2)

	limited, err := svc.List(ctx, ListInput{AgentID: "agent-1", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = svc.List(ctx, ListInput{})
	assert.True(t, model.IsValidation(err))
}

// Exhaustive check over every flag combination: after any accepted update,
// read never holds without delivered.
func TestReadImpliesDeliveredForAllInputs(t *testing.T) {
	ctx := context.Background()
	options := []*bool{nil, boolPtr(false), boolPtr(true)}
	for _, startDelivered := range []bool{false, true} {
		for _, d := range options {
			for _, r := range options {
				name := fmt.Sprintf("start=%v/d=%v/r=%v", startDelivered, fmtBool(d), fmtBool(r))
				t.Run(name, func(t *testing.T) {
					svc, _ := newTestService(t)
					n := mustCreate(t, svc, "agent-1")
					if startDelivered {
						_, err := svc.UpdateFlags(ctx, n.ID, FlagsInput{Delivered: boolPtr(true)})
						require.NoError(t, err)
					}
					_, _ = svc.UpdateFlags(ctx, n.ID, FlagsInput{Delivered: d, Read: r})
					got, err := svc.Get(ctx, n.ID)
					require.NoError(t, err)
					if got.Read {
						assert.True(t, got.Delivered)
					}
				})
			}
		}
	}
}

func fmtBool(b *bool) string {
	if b == nil {
		return "nil"
	}
	return fmt.Sprint(*b)
}
