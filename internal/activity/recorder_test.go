package activity

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/sashi/internal/events"
	"github.com/ent0n29/sashi/internal/inbox"
	"github.com/ent0n29/sashi/internal/model"
	"github.com/ent0n29/sashi/internal/notify"
	"github.com/ent0n29/sashi/internal/queue"
	"github.com/ent0n29/sashi/internal/store"
	"github.com/ent0n29/sashi/internal/tasks"
)

func TestRecorderPersistsLifecycleEvents(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	hub := events.NewHub(nil)
	svc := NewService(st, nil, zerolog.Nop())
	rec := NewRecorder(svc, hub, zerolog.Nop())
	rec.Start(ctx)

	notifier := notify.NewService(st, hub, nil, zerolog.Nop())
	taskSvc := tasks.NewService(st, notifier, hub, nil, zerolog.Nop())
	queueSvc := queue.NewService(st, hub, nil, zerolog.Nop())
	inboxSvc := inbox.NewService(st, hub, nil, inbox.Limits{}, zerolog.Nop())

	task, err := taskSvc.Create(ctx, tasks.CreateInput{Name: "Ship release", AssignedAgentID: ptr("jarvis")})
	require.NoError(t, err)
	comment, err := taskSvc.AddComment(ctx, task.ID, tasks.CommentInput{AgentID: "friday", Content: "looks good @jarvis"})
	require.NoError(t, err)
	item, err := queueSvc.Create(ctx, queue.CreateInput{Task: "sync calendar"})
	require.NoError(t, err)
	_, err = queueSvc.Transition(ctx, item.ID, "done")
	require.NoError(t, err)
	_, err = inboxSvc.Capture(ctx, inbox.CaptureInput{Content: "buy milk"})
	require.NoError(t, err)

	rec.Stop()

	feed, err := svc.List(ctx, ListInput{Limit: "100"})
	require.NoError(t, err)
	byType := make(map[string][]model.Activity)
	for _, a := range feed {
		byType[a.Type] = append(byType[a.Type], a)
	}

	require.Len(t, byType[TypeTaskCreated], 1)
	created := byType[TypeTaskCreated][0]
	assert.Equal(t, task.ID, model.StringValue(created.TaskID))
	assert.Equal(t, "jarvis", model.StringValue(created.AgentID))
	assert.Equal(t, "Task created: Ship release", created.Message)

	require.Len(t, byType[TypeTaskAssigned], 1)
	require.Len(t, byType[TypeCommentAdded], 1)
	commented := byType[TypeCommentAdded][0]
	assert.Equal(t, "friday", model.StringValue(commented.AgentID))
	assert.Equal(t, `friday commented on "Ship release"`, commented.Message)
	assert.JSONEq(t, `{"commentId":"`+comment.ID+`"}`, string(commented.Metadata))

	require.Len(t, byType[TypeQueueItemCreated], 1)
	require.Len(t, byType[TypeQueueItemProgress], 1)
	assert.Contains(t, byType[TypeQueueItemProgress][0].Message, "from queued to done")
	require.Len(t, byType[TypeInboxCaptured], 1)

	assert.Empty(t, byType[string(events.NotificationCreated)], "notifications are not mirrored into the feed")
}

func TestRecorderStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := events.NewHub(nil)
	rec := NewRecorder(NewService(store.NewMemoryStore(), nil, zerolog.Nop()), hub, zerolog.Nop())
	rec.Start(ctx)
	require.Equal(t, 1, hub.SubscriberCount())

	cancel()
	rec.Stop()
	assert.Zero(t, hub.SubscriberCount())
}

func TestDescribeSkipsUnknownPayloads(t *testing.T) {
	rec := NewRecorder(NewService(store.NewMemoryStore(), nil, zerolog.Nop()), events.NewHub(nil), zerolog.Nop())
	_, ok := rec.describe(context.Background(), events.Event{Type: events.TaskCreated, Payload: "not a task"})
	assert.False(t, ok)
	_, ok = rec.describe(context.Background(), events.Event{Type: events.NotificationUpdated})
	assert.False(t, ok)
}
