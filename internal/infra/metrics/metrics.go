package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pvpescrow"

// Escrow groups the collectors of the escrow service. A nil *Escrow is
// valid and records nothing.
type Escrow struct {
	transitions *prometheus.CounterVec
	volume      *prometheus.CounterVec
	fees        prometheus.Counter
	latency     *prometheus.HistogramVec
	keeperRuns  *prometheus.CounterVec
	http        *prometheus.CounterVec
	throttled   prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Escrow {
	m := &Escrow{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "match",
			Name:      "transitions_total",
			Help:      "Match operations segmented by operation and outcome reason.",
		}, []string{"operation", "reason"}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "moved_total",
			Help:      "Minor units moved in or out of match vaults, by transfer kind.",
		}, []string{"kind"}),
		fees: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "fees_total",
			Help:      "Protocol fees collected by settled matches.",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "match",
			Name:      "operation_duration_seconds",
			Help:      "Latency of match operations including the database transaction.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		keeperRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "keeper",
			Name:      "refunds_total",
			Help:      "Timeout refunds attempted by the keeper, by outcome reason.",
		}, []string{"reason"}),
		http: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "status"}),
		throttled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "throttled_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.transitions, m.volume, m.fees, m.latency, m.keeperRuns, m.http, m.throttled)
	}

	return m
}

// ObserveOperation records one match operation.
func (m *Escrow) ObserveOperation(operation, reason string, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.transitions.WithLabelValues(operation, reason).Inc()
	m.latency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Escrow) AddVolume(kind string, amount uint64) {
	if m == nil || amount == 0 {
		return
	}

	m.volume.WithLabelValues(kind).Add(float64(amount))
}

func (m *Escrow) AddFee(amount uint64) {
	if m == nil || amount == 0 {
		return
	}

	m.fees.Add(float64(amount))
}

func (m *Escrow) ObserveKeeperRefund(reason string) {
	if m == nil {
		return
	}

	m.keeperRuns.WithLabelValues(reason).Inc()
}

func (m *Escrow) ObserveHTTP(route, method, status string) {
	if m == nil {
		return
	}

	m.http.WithLabelValues(route, method, status).Inc()
}

func (m *Escrow) Throttled() {
	if m == nil {
		return
	}

	m.throttled.Inc()
}
