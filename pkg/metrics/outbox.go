package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outbox publish outcomes.
const (
	OutboxPublished = "published"
	OutboxRetrying  = "retrying"
	OutboxTerminal  = "terminal"
)

// Outbox records what the publisher did with each row it picked up.
type Outbox struct {
	events *prometheus.CounterVec
}

// NewOutbox registers the publisher metrics. A nil registerer yields no-ops.
func NewOutbox(reg prometheus.Registerer) *Outbox {
	if reg == nil {
		return &Outbox{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "farmx_outbox_events_total",
		Help: "Outbox rows handled by the publisher by event type and outcome.",
	}, []string{"event_type", "result"})
	reg.MustRegister(events)
	return &Outbox{events: events}
}

func (o *Outbox) Observe(eventType, result string) {
	if o == nil || o.events == nil {
		return
	}
	o.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}
