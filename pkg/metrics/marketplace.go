package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels shared by the marketplace counters.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Marketplace records purchase and decision outcomes plus HTTP traffic.
type Marketplace struct {
	purchases    *prometheus.CounterVec
	decisions    *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewMarketplace registers the marketplace metrics on the provided registerer.
// A nil registerer yields a recorder whose methods are no-ops.
func NewMarketplace(reg prometheus.Registerer) *Marketplace {
	if reg == nil {
		return &Marketplace{}
	}
	purchases := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "farmx_purchases_total",
		Help: "Purchase attempts by outcome.",
	}, []string{"result"})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "farmx_transaction_decisions_total",
		Help: "Seller decisions on pending transactions by outcome.",
	}, []string{"decision", "result"})
	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "farmx_http_requests_total",
		Help: "HTTP requests served.",
	}, []string{"method", "route", "status"})
	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "farmx_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	reg.MustRegister(purchases, decisions, httpRequests, httpDuration)
	return &Marketplace{
		purchases:    purchases,
		decisions:    decisions,
		httpRequests: httpRequests,
		httpDuration: httpDuration,
	}
}

// ObservePurchase counts a purchase attempt. result is normally ResultSuccess
// or an error code.
func (m *Marketplace) ObservePurchase(result string) {
	if m == nil || m.purchases == nil {
		return
	}
	m.purchases.WithLabelValues(normalizeLabel(result)).Inc()
}

// ObserveDecision counts an approve, reject or cancel attempt.
func (m *Marketplace) ObserveDecision(decision, result string) {
	if m == nil || m.decisions == nil {
		return
	}
	m.decisions.WithLabelValues(normalizeLabel(decision), normalizeLabel(result)).Inc()
}

// ObserveHTTP records one served request against its route pattern.
func (m *Marketplace) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil || m.httpRequests == nil {
		return
	}
	route = normalizeLabel(route)
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
