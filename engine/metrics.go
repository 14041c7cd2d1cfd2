package engine

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the engine's observability collaborator: a small set of
// counters and gauges a host can wire to whatever collector it runs,
// analogous to the Metrics/GetMetrics() pattern this package was adapted
// from, but exported as real counters/gauges for a host to scrape rather
// than an in-process snapshot struct.
type Metrics interface {
	IncCompletedLocks()
	IncRejectedRequests()
	IncEquivocations()
	SetPendingCandidates(n int)
	SetOrphanVotes(n int)
}

// NopMetrics discards every observation. It is the default when a host
// does not supply a Metrics collaborator.
type NopMetrics struct{}

func (NopMetrics) IncCompletedLocks()       {}
func (NopMetrics) IncRejectedRequests()     {}
func (NopMetrics) IncEquivocations()        {}
func (NopMetrics) SetPendingCandidates(int) {}
func (NopMetrics) SetOrphanVotes(int)       {}

var _ Metrics = NopMetrics{}

// PrometheusMetrics is a Metrics implementation backed by real Prometheus
// collectors under the directsend_ namespace.
type PrometheusMetrics struct {
	completedLocks    prometheus.Counter
	rejectedRequests  prometheus.Counter
	equivocations     prometheus.Counter
	pendingCandidates prometheus.Gauge
	orphanVotes       prometheus.Gauge
}

// NewPrometheusMetrics registers the directsend_* collectors against reg
// and returns a Metrics implementation backed by them.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		completedLocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "directsend_completed_locks_total",
			Help: "Total number of lock candidates that reached readiness on every input.",
		}),
		rejectedRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "directsend_rejected_requests_total",
			Help: "Total number of lock requests rejected, by any reason.",
		}),
		equivocations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "directsend_equivocations_total",
			Help: "Total number of confirmed validator equivocations detected.",
		}),
		pendingCandidates: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "directsend_pending_candidates",
			Help: "Number of lock candidates currently tracked by the engine.",
		}),
		orphanVotes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "directsend_orphan_votes",
			Help: "Number of votes buffered awaiting their lock request.",
		}),
	}
	reg.MustRegister(m.completedLocks, m.rejectedRequests, m.equivocations, m.pendingCandidates, m.orphanVotes)
	return m
}

func (m *PrometheusMetrics) IncCompletedLocks()         { m.completedLocks.Inc() }
func (m *PrometheusMetrics) IncRejectedRequests()       { m.rejectedRequests.Inc() }
func (m *PrometheusMetrics) IncEquivocations()          { m.equivocations.Inc() }
func (m *PrometheusMetrics) SetPendingCandidates(n int) { m.pendingCandidates.Set(float64(n)) }
func (m *PrometheusMetrics) SetOrphanVotes(n int)       { m.orphanVotes.Set(float64(n)) }

var _ Metrics = (*PrometheusMetrics)(nil)
