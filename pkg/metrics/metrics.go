package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Session metrics
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sweenv_sessions_active",
			Help: "Number of sessions currently between reset and close",
		},
	)

	SessionResetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweenv_session_resets_total",
			Help: "Total number of session resets by result",
		},
		[]string{"result"},
	)

	SessionResetDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sweenv_session_reset_duration_seconds",
			Help:    "Time taken to reset a session (clone/restore/clean/build index)",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Shell bridge metrics
	ShellCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweenv_shell_commands_total",
			Help: "Total number of commands executed through the shell bridge by result",
		},
		[]string{"result"},
	)

	ShellCommandDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sweenv_shell_command_duration_seconds",
			Help:    "Time taken for a shell bridge round trip in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ShellTimeoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sweenv_shell_timeouts_total",
			Help: "Total number of commands that hit the shell bridge timeout",
		},
	)

	// Dispatcher metrics
	ActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweenv_actions_total",
			Help: "Total number of dispatched actions by verb",
		},
		[]string{"verb"},
	)

	// Diff engine metrics
	DiffApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sweenv_diff_apply_duration_seconds",
			Help:    "Time taken to apply a multi-file diff blob in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	DiffFilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweenv_diff_files_total",
			Help: "Total number of files touched by diff application by outcome",
		},
		[]string{"outcome"},
	)

	// Symbol index metrics
	SymbolIndexBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweenv_symbol_index_builds_total",
			Help: "Total number of symbol index (re)builds by reason",
		},
		[]string{"reason"},
	)

	SymbolIndexBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sweenv_symbol_index_build_duration_seconds",
			Help:    "Time taken to build or rebuild the symbol index in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Container runtime metrics
	ContainerStartDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sweenv_container_start_duration_seconds",
			Help:    "Time taken to pull and start the task container in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ContainerStopDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sweenv_container_stop_duration_seconds",
			Help:    "Time taken to stop and delete the task container in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(SessionResetsTotal)
	prometheus.MustRegister(SessionResetDuration)
	prometheus.MustRegister(ShellCommandsTotal)
	prometheus.MustRegister(ShellCommandDuration)
	prometheus.MustRegister(ShellTimeoutsTotal)
	prometheus.MustRegister(ActionsTotal)
	prometheus.MustRegister(DiffApplyDuration)
	prometheus.MustRegister(DiffFilesTotal)
	prometheus.MustRegister(SymbolIndexBuildsTotal)
	prometheus.MustRegister(SymbolIndexBuildDuration)
	prometheus.MustRegister(ContainerStartDuration)
	prometheus.MustRegister(ContainerStopDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
