package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector implements Collector using Prometheus metrics.
// Each collector owns its registry.
type PrometheusCollector struct {
	// Lifecycle metrics
	stateTransitions *prometheus.CounterVec
	running          *prometheus.GaugeVec
	exits            *prometheus.CounterVec
	runtime          *prometheus.HistogramVec

	// Destroy metrics
	destroyDuration *prometheus.HistogramVec

	// Console metrics
	consoleLines *prometheus.CounterVec
	patternWaits *prometheus.HistogramVec

	// Error metrics
	errors *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewPrometheusCollector creates a new Prometheus collector
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	if namespace == "" {
		namespace = "mproc"
	}

	pc := &PrometheusCollector{
		registry: prometheus.NewRegistry(),
	}

	pc.stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_state_transitions_total",
			Help:      "Total number of process state transitions",
		},
		[]string{"process", "from_state", "to_state"},
	)

	pc.running = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "processes_running",
			Help:      "Number of supervised processes currently running",
		},
		[]string{"process"},
	)

	pc.exits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_exits_total",
			Help:      "Total number of process exits by kind and exit code",
		},
		[]string{"process", "kind", "code"},
	)

	pc.runtime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_runtime_seconds",
			Help:      "Wall-clock runtime of supervised processes",
			Buckets:   []float64{0.1, 0.5, 1, 5, 30, 60, 300, 1800, 3600},
		},
		[]string{"process"},
	)

	pc.destroyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_destroy_duration_seconds",
			Help:      "Duration of destroy operations",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"process", "forced"},
	)

	pc.consoleLines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "console_lines_total",
			Help:      "Total number of captured console lines",
		},
		[]string{"process", "stream"},
	)

	pc.patternWaits = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "console_wait_duration_seconds",
			Help:      "Duration of console pattern waits by outcome",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"process", "outcome"},
	)

	pc.errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_errors_total",
			Help:      "Total number of process errors",
		},
		[]string{"process", "error_type"},
	)

	pc.registry.MustRegister(
		pc.stateTransitions,
		pc.running,
		pc.exits,
		pc.runtime,
		pc.destroyDuration,
		pc.consoleLines,
		pc.patternWaits,
		pc.errors,
	)

	return pc
}

// StateTransition records a state transition and maintains the running gauge
func (pc *PrometheusCollector) StateTransition(process, from, to string) {
	pc.stateTransitions.WithLabelValues(process, from, to).Inc()

	switch {
	case to == "running":
		pc.running.WithLabelValues(process).Inc()
	case from == "running":
		pc.running.WithLabelValues(process).Dec()
	}
}

// ProcessExited records an exit
func (pc *PrometheusCollector) ProcessExited(process, kind string, code int, runtime time.Duration) {
	pc.exits.WithLabelValues(process, kind, strconv.Itoa(code)).Inc()
	pc.runtime.WithLabelValues(process).Observe(runtime.Seconds())
}

// DestroyDuration records the duration of a destroy
func (pc *PrometheusCollector) DestroyDuration(process string, duration time.Duration, forced bool) {
	pc.destroyDuration.WithLabelValues(process, strconv.FormatBool(forced)).Observe(duration.Seconds())
}

// ConsoleLine records a captured line
func (pc *PrometheusCollector) ConsoleLine(process, stream string) {
	pc.consoleLines.WithLabelValues(process, stream).Inc()
}

// PatternWait records a console wait
func (pc *PrometheusCollector) PatternWait(process, outcome string, duration time.Duration) {
	pc.patternWaits.WithLabelValues(process, outcome).Observe(duration.Seconds())
}

// ProcessError records a process error
func (pc *PrometheusCollector) ProcessError(process, errorType string) {
	pc.errors.WithLabelValues(process, errorType).Inc()
}

// Registry returns the collector's registry
func (pc *PrometheusCollector) Registry() *prometheus.Registry {
	return pc.registry
}

// Handler returns an http.Handler serving the registry in the Prometheus exposition format
func (pc *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(pc.registry, promhttp.HandlerOpts{Registry: pc.registry})
}
