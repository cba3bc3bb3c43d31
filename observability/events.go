package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"stakevault/core/events"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking emitted ledger events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakevault",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of ledger events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted)
	})
	return eventRegistry
}

// Record increments the counter for the supplied event type.
func (m *eventMetrics) Record(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(eventType)
	if normalized == "" {
		normalized = "unknown"
	}
	m.emitted.WithLabelValues(normalized).Inc()
}

// EventCounter is an events.Emitter that counts every event before
// forwarding it to Next.
type EventCounter struct {
	Next events.Emitter
}

// Emit implements events.Emitter.
func (c EventCounter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	Events().Record(evt.EventType())
	if c.Next != nil {
		c.Next.Emit(evt)
	}
}
