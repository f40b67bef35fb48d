package events

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/sashi/internal/observability"
)

func TestHubDeliversToSubscribers(t *testing.T) {
	hub := NewHub(nil)
	a, unsubA := hub.Subscribe()
	b, unsubB := hub.Subscribe()
	defer unsubA()
	defer unsubB()

	hub.Publish(Event{Type: QueueItemCreated, EntityID: "q1"})

	for _, ch := range []<-chan Event{a, b} {
		select {
		case evt := <-ch:
			assert.Equal(t, QueueItemCreated, evt.Type)
			assert.Equal(t, "q1", evt.EntityID)
			assert.False(t, evt.At.IsZero())
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	metrics := observability.NewMetricsWith(prometheus.NewRegistry(), "test")
	hub := NewHub(metrics)
	ch, unsub := hub.Subscribe()
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EventSubscribers))

	unsub()
	unsub()
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, hub.SubscriberCount())
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.EventSubscribers))
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	metrics := observability.NewMetricsWith(prometheus.NewRegistry(), "test")
	hub := NewHub(metrics)
	_, unsub := hub.Subscribe()
	defer unsub()

	for i := 0; i < subscriberBuffer+5; i++ {
		hub.Publish(Event{Type: InboxCaptured})
	}
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.EventsDropped))
}

func TestHubRecentKeepsBoundedHistory(t *testing.T) {
	hub := NewHub(nil)
	for i := 0; i < defaultHistorySize+10; i++ {
		hub.Publish(Event{Type: TaskUpdated})
	}
	require.Len(t, hub.Recent(0), defaultHistorySize)
	assert.Len(t, hub.Recent(3), 3)
}

func TestHubSubscribeSizeHoldsLargerBursts(t *testing.T) {
	metrics := observability.NewMetricsWith(prometheus.NewRegistry(), "test")
	hub := NewHub(metrics)
	ch, unsub := hub.SubscribeSize(subscriberBuffer * 4)
	defer unsub()

	for i := 0; i < subscriberBuffer*2; i++ {
		hub.Publish(Event{Type: CommentAdded})
	}
	assert.Len(t, ch, subscriberBuffer*2)
	assert.Zero(t, testutil.ToFloat64(metrics.EventsDropped))
}
