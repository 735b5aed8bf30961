package metrics

import (
	stderrors "errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/felixgeelhaar/afterpkg/internal/build"
	"github.com/felixgeelhaar/afterpkg/internal/errors"
	"github.com/felixgeelhaar/afterpkg/internal/graph"
)

// Metrics holds all Prometheus metrics for afterpkg
type Metrics struct {
	// Run metrics
	Runs        *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec

	// Per-package build metrics
	Builds        *prometheus.CounterVec
	BuildDuration *prometheus.HistogramVec
	InFlight      prometheus.Gauge

	// Graph metrics
	Nodes *prometheus.GaugeVec

	// Equivalence index metrics
	IndexProbes *prometheus.CounterVec

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "afterpkg_runs_total",
				Help: "Total number of build runs by final status",
			},
			[]string{"status"},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "afterpkg_run_duration_seconds",
				Help:    "Build run duration in seconds",
				Buckets: []float64{10, 60, 300, 900, 1800, 3600, 7200, 14400},
			},
			[]string{"status"},
		),

		Builds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "afterpkg_package_builds_total",
				Help: "Total number of packages by terminal outcome",
			},
			[]string{"outcome"},
		),
		BuildDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "afterpkg_package_build_duration_seconds",
				Help:    "Per-package executor duration in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
			},
			[]string{"step"},
		),
		InFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "afterpkg_package_builds_in_flight",
				Help: "Packages currently being executed",
			},
		),

		Nodes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "afterpkg_graph_nodes",
				Help: "Nodes in the resolved dependency graph by kind",
			},
			[]string{"kind"},
		),

		IndexProbes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "afterpkg_index_probes_total",
				Help: "Equivalence index lookups by index and result",
			},
			[]string{"index", "result"},
		),

		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "afterpkg_errors_total",
				Help: "Total number of errors by error code",
			},
			[]string{"error_code", "component"},
		),
	}
}

// Observe records a scheduler event; it satisfies build.Observer.
func (m *Metrics) Observe(e build.Event) {
	switch e.Kind {
	case build.EventStarted:
		m.InFlight.Inc()
	case build.EventDone:
		m.InFlight.Dec()
		m.Builds.WithLabelValues("done").Inc()
		m.BuildDuration.WithLabelValues(string(e.Result.Step)).Observe(e.Result.Duration.Seconds())
	case build.EventFailed:
		// compose failures never started
		if e.Result.Step != "" {
			m.InFlight.Dec()
			m.BuildDuration.WithLabelValues(string(e.Result.Step)).Observe(e.Result.Duration.Seconds())
		}
		m.Builds.WithLabelValues("failed").Inc()
	case build.EventSkipped:
		m.Builds.WithLabelValues("skipped").Inc()
	}
}

// RecordGraph sets the node gauges from g.
func (m *Metrics) RecordGraph(g *graph.Graph) {
	counts := map[graph.Kind]int{}
	for _, n := range g.Nodes() {
		counts[n.Kind]++
	}
	for _, k := range []graph.Kind{graph.Real, graph.Virtual} {
		m.Nodes.WithLabelValues(k.String()).Set(float64(counts[k]))
	}
}

// RecordRun counts a finished run.
func (m *Metrics) RecordRun(run *build.RunResult) {
	status := string(run.Status)
	m.Runs.WithLabelValues(status).Inc()
	m.RunDuration.WithLabelValues(status).Observe(run.Finished.Sub(run.Started).Seconds())
}

// ObserveProbe counts one index lookup; it satisfies equiv.ProbeObserver.
func (m *Metrics) ObserveProbe(index string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.IndexProbes.WithLabelValues(index, result).Inc()
}

// RecordError counts err under its error code, or "unknown".
func (m *Metrics) RecordError(err error, component string) {
	if err == nil {
		return
	}
	code := "unknown"
	var coded *errors.AfterpkgError
	if stderrors.As(err, &coded) {
		code = string(coded.Code)
	}
	m.Errors.WithLabelValues(code, component).Inc()
}
