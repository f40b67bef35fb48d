package events

import (
	"sync"
	"time"

	"github.com/ent0n29/sashi/internal/observability"
)

type Type string

const (
	QueueItemCreated      Type = "queue_item_created"
	QueueItemTransitioned Type = "queue_item_transitioned"
	TaskCreated           Type = "task_created"
	TaskAssigned          Type = "task_assigned"
	TaskUpdated           Type = "task_updated"
	TaskDeleted           Type = "task_deleted"
	CommentAdded          Type = "comment_added"
	NotificationCreated   Type = "notification_created"
	NotificationUpdated   Type = "notification_updated"
	InboxCaptured         Type = "inbox_captured"
)

// Event is one lifecycle change. Payload carries the affected record.
type Event struct {
	Type     Type      `json:"type"`
	EntityID string    `json:"entityId"`
	From     string    `json:"from,omitempty"`
	To       string    `json:"to,omitempty"`
	AgentID  string    `json:"agentId,omitempty"`
	Payload  any       `json:"payload,omitempty"`
	At       time.Time `json:"at"`
}

const (
	subscriberBuffer   = 256
	defaultHistorySize = 128
)

// Hub fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type Hub struct {
	mu sync.RWMutex

	subscribers map[int]chan Event
	nextSubID   int

	history    []Event
	historyMax int

	metrics *observability.Metrics
}

func NewHub(metrics *observability.Metrics) *Hub {
	return &Hub{
		subscribers: make(map[int]chan Event),
		historyMax:  defaultHistorySize,
		metrics:     metrics,
	}
}

// Subscribe returns a buffered channel of future events and a function that
// unsubscribes and closes it.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	return h.SubscribeSize(subscriberBuffer)
}

// SubscribeSize is Subscribe with a caller-chosen buffer, for consumers that
// must not miss bursts.
func (h *Hub) SubscribeSize(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = subscriberBuffer
	}
	ch := make(chan Event, buffer)
	h.mu.Lock()
	h.nextSubID++
	id := h.nextSubID
	h.subscribers[id] = ch
	if h.metrics != nil {
		h.metrics.EventSubscribers.Inc()
	}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subscribers[id]; ok {
				delete(h.subscribers, id)
				close(c)
				if h.metrics != nil {
					h.metrics.EventSubscribers.Dec()
				}
			}
		})
	}
}

func (h *Hub) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.history = append(h.history, evt)
	if max := h.historyMax; max > 0 && len(h.history) > max {
		h.history = append([]Event(nil), h.history[len(h.history)-max:]...)
	}

	for _, ch := range h.subscribers {
		select {
		case ch <- evt:
		default:
			if h.metrics != nil {
				h.metrics.EventsDropped.Inc()
			}
		}
	}
}

// Recent returns up to n of the latest events, oldest first.
func (h *Hub) Recent(n int) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 || n > len(h.history) {
		n = len(h.history)
	}
	return append([]Event(nil), h.history[len(h.history)-n:]...)
}

func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
