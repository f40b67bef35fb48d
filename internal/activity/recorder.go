package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/sashi/internal/events"
	"github.com/ent0n29/sashi/internal/model"
	"github.com/ent0n29/sashi/internal/policy"
	"github.com/ent0n29/sashi/internal/reliability"
)

// RecorderBuffer sizes the recorder's hub subscription. It is well above the
// websocket default so write bursts are not dropped from the feed.
const RecorderBuffer = 4096

// Recorder turns lifecycle events into feed entries.
type Recorder struct {
	svc *Service
	hub *events.Hub
	log zerolog.Logger

	mu    sync.Mutex
	unsub func()
	done  chan struct{}
}

func NewRecorder(svc *Service, hub *events.Hub, log zerolog.Logger) *Recorder {
	return &Recorder{
		svc: svc,
		hub: hub,
		log: log.With().Str("component", "activity_recorder").Logger(),
	}
}

// Start subscribes before returning, so every event published afterwards is
// recorded. The recorder runs until ctx ends or Stop is called.
func (r *Recorder) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != nil {
		return
	}
	ch, unsub := r.hub.SubscribeSize(RecorderBuffer)
	done := make(chan struct{})
	r.unsub, r.done = unsub, done

	go func() {
		select {
		case <-ctx.Done():
			unsub()
		case <-done:
		}
	}()

	go func() {
		defer close(done)
		// Writes outlive ctx so buffered events drain after shutdown starts.
		writeCtx := context.WithoutCancel(ctx)
		for evt := range ch {
			r.persist(writeCtx, evt)
		}
	}()
}

// Stop unsubscribes and waits until buffered events are written.
func (r *Recorder) Stop() {
	r.mu.Lock()
	unsub, done := r.unsub, r.done
	r.mu.Unlock()
	if unsub == nil {
		return
	}
	unsub()
	<-done
}

func (r *Recorder) persist(ctx context.Context, evt events.Event) {
	a, ok := r.describe(ctx, evt)
	if !ok {
		return
	}
	err := reliability.Retry(ctx, 3, 50*time.Millisecond, time.Second, func(ctx context.Context) error {
		return r.svc.record(ctx, a)
	})
	if err != nil {
		r.log.Error().Err(err).Str("op", "activity.record").Str("type", a.Type).Str("id", evt.EntityID).Msg("activity entry lost")
	}
}

// describe maps an event to a feed entry. Notification events are not
// recorded; the comment or assignment behind them already is.
func (r *Recorder) describe(ctx context.Context, evt events.Event) (model.Activity, bool) {
	a := model.Activity{
		ID:        model.NewID(),
		AgentID:   model.StringPtr(evt.AgentID),
		CreatedAt: evt.At.UTC().Truncate(time.Millisecond),
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.svc.now()
	}

	switch evt.Type {
	case events.TaskCreated:
		t, ok := evt.Payload.(model.Task)
		if !ok {
			return a, false
		}
		a.Type = TypeTaskCreated
		a.TaskID = &t.ID
		a.AgentID = t.AssignedAgentID
		a.Message = fmt.Sprintf("Task created: %s", preview(t.Name))
		if t.ParentID != nil {
			a.Metadata = metadata(map[string]string{"parentId": *t.ParentID})
		}
	case events.TaskUpdated:
		t, ok := evt.Payload.(model.Task)
		if !ok {
			return a, false
		}
		a.Type = TypeTaskUpdated
		a.TaskID = &t.ID
		if evt.From != evt.To {
			a.Message = fmt.Sprintf("Task %s moved from %s to %s", preview(t.Name), evt.From, evt.To)
		} else {
			a.Message = fmt.Sprintf("Task updated: %s", preview(t.Name))
		}
		a.Metadata = metadata(map[string]string{"from": evt.From, "to": evt.To})
	case events.TaskAssigned:
		t, ok := evt.Payload.(model.Task)
		if !ok {
			return a, false
		}
		a.Type = TypeTaskAssigned
		a.TaskID = &t.ID
		a.Message = fmt.Sprintf("Task %s assigned to %s", preview(t.Name), evt.AgentID)
	case events.TaskDeleted:
		t, ok := evt.Payload.(model.Task)
		if !ok {
			return a, false
		}
		a.Type = TypeTaskDeleted
		a.TaskID = &t.ID
		a.Message = fmt.Sprintf("Task deleted: %s", preview(t.Name))
	case events.CommentAdded:
		c, ok := evt.Payload.(model.TaskComment)
		if !ok {
			return a, false
		}
		a.Type = TypeCommentAdded
		a.TaskID = &c.TaskID
		a.Message = fmt.Sprintf("%s commented on %s", c.AgentID, r.taskLabel(ctx, c.TaskID))
		a.Metadata = metadata(map[string]string{"commentId": c.ID})
	case events.QueueItemCreated:
		q, ok := evt.Payload.(model.QueueItem)
		if !ok {
			return a, false
		}
		a.Type = TypeQueueItemCreated
		a.Message = fmt.Sprintf("Queued: %s", preview(q.Task))
		a.Metadata = metadata(map[string]string{"queueItemId": q.ID, "status": string(q.Status)})
	case events.QueueItemTransitioned:
		q, ok := evt.Payload.(model.QueueItem)
		if !ok {
			return a, false
		}
		a.Type = TypeQueueItemProgress
		a.Message = fmt.Sprintf("Queue item moved from %s to %s: %s", evt.From, evt.To, preview(q.Task))
		a.Metadata = metadata(map[string]string{"queueItemId": q.ID, "from": evt.From, "to": evt.To})
	case events.InboxCaptured:
		item, ok := evt.Payload.(model.InboxItem)
		if !ok {
			return a, false
		}
		a.Type = TypeInboxCaptured
		a.Message = fmt.Sprintf("Captured %s: %s", item.Type, preview(item.Content))
		a.Metadata = metadata(map[string]string{"inboxItemId": item.ID})
	default:
		return a, false
	}
	return a, true
}

// taskLabel prefers the task name and falls back to its id.
func (r *Recorder) taskLabel(ctx context.Context, taskID string) string {
	t, err := r.svc.store.GetTask(ctx, taskID)
	if err != nil {
		return taskID
	}
	return fmt.Sprintf("%q", t.Name)
}

func preview(s string) string {
	return policy.LogPreview(s, policy.DefaultPreviewRunes)
}

func metadata(fields map[string]string) json.RawMessage {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return raw
}
