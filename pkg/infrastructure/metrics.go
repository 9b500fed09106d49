package infrastructure

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus collectors for commit latency, dispatcher
// failures and rejected commands, each labelled by aggregate_type. It is
// constructed once per process and registered against a single registry.
// Within this module only DispatcherFailures is updated, through
// ErrorHandler; the engine and event store do not record to the
// collectors themselves.
type Metrics struct {
	CommitDuration     *prometheus.HistogramVec
	DispatcherFailures *prometheus.CounterVec
	CommandsRejected   *prometheus.CounterVec
}

// NewMetrics registers and returns a Metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CommitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "eventcore",
			Name:      "commit_duration_seconds",
			Help:      "Time spent in EventStore.Commit, by aggregate type and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"aggregate_type", "outcome"}),
		DispatcherFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventcore",
			Name:      "dispatcher_failures_total",
			Help:      "Count of dispatcher errors reported to an engine's error handler.",
		}, []string{"aggregate_type", "dispatcher"}),
		CommandsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventcore",
			Name:      "commands_rejected_total",
			Help:      "Count of commands rejected by a command handler, by error code.",
		}, []string{"aggregate_type", "code"}),
	}

	reg.MustRegister(m.CommitDuration, m.DispatcherFailures, m.CommandsRejected)
	return m
}

// ErrorHandler adapts Metrics into an engine.ErrorHandler-shaped function
// for a given aggregate type, counting each reported failure under the
// dispatcher's name. It returns a plain func, so this package does not
// import the engine package.
func (m *Metrics) ErrorHandler(aggregateType string) func(dispatcherName string, err error) {
	return func(dispatcherName string, err error) {
		m.DispatcherFailures.WithLabelValues(aggregateType, dispatcherName).Inc()
	}
}
