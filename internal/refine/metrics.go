package refine

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the orchestrator's Prometheus counters. A nil *Metrics is
// valid everywhere it is used: every method call is a no-op, so callers that
// don't care about metrics can simply omit them.
type Metrics struct {
	requests        *prometheus.CounterVec
	specialistCalls *prometheus.CounterVec
	errors          *prometheus.CounterVec
}

// NewMetrics registers the orchestrator's counters against reg and returns
// a Metrics ready to pass to New. Grounded on the teacher's use of
// github.com/prometheus/client_golang for swarm-level instrumentation.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "refinequery_requests_total",
			Help: "Completed orchestrator runs by route decision.",
		}, []string{"route"}),
		specialistCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "refinequery_specialist_calls_total",
			Help: "Analyzer invocations by role and outcome.",
		}, []string{"role", "outcome"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "refinequery_errors_total",
			Help: "Orchestrator runs that ended in an error, by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.requests, m.specialistCalls, m.errors)
	return m
}

func (m *Metrics) observeRequest(route string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route).Inc()
}

func (m *Metrics) observeSpecialistCall(role, outcome string) {
	if m == nil {
		return
	}
	m.specialistCalls.WithLabelValues(role, outcome).Inc()
}

func (m *Metrics) observeError(kind string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(kind).Inc()
}
