package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds all dynwall metrics.
type Registry struct {
	// Address detection
	ResolveAttempts *prometheus.CounterVec
	CurrentAddress  *prometheus.GaugeVec
	AddressChanges  prometheus.Counter
	LastChange      prometheus.Gauge

	// Rule reconciliation
	Reconciles   *prometheus.CounterVec
	RuleUpdates  *prometheus.CounterVec
	PollTicks    *prometheus.CounterVec
	PassDuration prometheus.Histogram

	// Remote API
	APIRequests *prometheus.CounterVec
	APILatency  *prometheus.HistogramVec
}

// Get returns the global metrics registry, creating it if necessary.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	r.ResolveAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dynwall_resolve_attempts_total",
		Help: "Public address lookups per family, endpoint tier and outcome",
	}, []string{"family", "tier", "result"})

	r.CurrentAddress = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dynwall_current_address_info",
		Help: "Currently detected public address (value is always 1)",
	}, []string{"family", "address"})

	r.AddressChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dynwall_address_changes_total",
		Help: "Number of times the detected address set changed",
	})

	r.LastChange = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dynwall_last_change_timestamp_seconds",
		Help: "Unix timestamp of the last detected address change",
	})

	r.Reconciles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dynwall_reconcile_targets_total",
		Help: "Rule targets processed per outcome (unchanged, updated, skipped, failed)",
	}, []string{"result"})

	r.RuleUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dynwall_rule_updates_total",
		Help: "Filter expressions written per rule",
	}, []string{"zone", "rule"})

	r.PollTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dynwall_poll_ticks_total",
		Help: "Poll ticks, labelled by whether reconciliation ran",
	}, []string{"reconciled"})

	r.PassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dynwall_pass_duration_seconds",
		Help:    "Duration of one resolve and reconcile pass",
		Buckets: prometheus.DefBuckets,
	})

	r.APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dynwall_api_requests_total",
		Help: "Requests to the rule management API",
	}, []string{"method", "result"})

	r.APILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dynwall_api_request_duration_seconds",
		Help:    "Rule management API latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	return r
}

// RecordResolve records one endpoint attempt.
func (r *Registry) RecordResolve(family, tier string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.ResolveAttempts.WithLabelValues(family, tier, result).Inc()
}

// RecordAddresses replaces the current address gauges with addrs
// (family -> address) and bumps the change counters.
func (r *Registry) RecordAddresses(addrs map[string]string, at time.Time) {
	r.CurrentAddress.Reset()
	for family, addr := range addrs {
		r.CurrentAddress.WithLabelValues(family, addr).Set(1)
	}
	r.AddressChanges.Inc()
	r.LastChange.Set(float64(at.Unix()))
}

// RecordAPIRequest records a request to the rule management API.
func (r *Registry) RecordAPIRequest(method, result string, duration time.Duration) {
	r.APIRequests.WithLabelValues(method, result).Inc()
	r.APILatency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordTick records one poll tick.
func (r *Registry) RecordTick(reconciled bool, duration time.Duration) {
	label := "false"
	if reconciled {
		label = "true"
	}
	r.PollTicks.WithLabelValues(label).Inc()
	r.PassDuration.Observe(duration.Seconds())
}
