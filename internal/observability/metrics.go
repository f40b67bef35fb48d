package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	QueueTransitions    *prometheus.CounterVec
	QueueItemsCreated   *prometheus.CounterVec
	NotificationUpdates *prometheus.CounterVec
	TaskMutations       *prometheus.CounterVec
	InboxCaptures       *prometheus.CounterVec
	StoreErrors         *prometheus.CounterVec
	HTTPRequests        *prometheus.CounterVec
	EventSubscribers    prometheus.Gauge
	EventsDropped       prometheus.Counter
	ActivityRecorded    *prometheus.CounterVec
}

// NewMetrics registers instruments on the default registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith registers instruments on reg. Tests pass a fresh registry so
// repeated construction does not collide.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		QueueTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_transitions_total",
			Help:      "Applied queue item status transitions.",
		}, []string{"from", "to"}),
		QueueItemsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_items_created_total",
			Help:      "Queue items created by initial status.",
		}, []string{"status"}),
		NotificationUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_updates_total",
			Help:      "Notification flag updates by result.",
		}, []string{"result"}),
		TaskMutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_mutations_total",
			Help:      "Task mutations by operation.",
		}, []string{"op"}),
		InboxCaptures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbox_captures_total",
			Help:      "Inbox captures by item type.",
		}, []string{"type"}),
		StoreErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Durable store failures by operation and class.",
		}, []string{"op", "class"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"}),
		EventSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_subscribers",
			Help:      "Connected lifecycle event subscribers.",
		}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Lifecycle events dropped for slow subscribers.",
		}),
		ActivityRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_recorded_total",
			Help:      "Activity feed entries by type and result.",
		}, []string{"type", "result"}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// Discard returns instruments bound to a private registry, for callers that
// do not export metrics.
func Discard() *Metrics {
	return NewMetricsWith(prometheus.NewRegistry(), "discard")
}
