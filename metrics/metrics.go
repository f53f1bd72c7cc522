package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder counts search attempts and per-term outcomes. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	AttemptsTotal   *prometheus.CounterVec
	AttemptDuration *prometheus.HistogramVec
	OutcomesTotal   *prometheus.CounterVec
	PacingDelay     prometheus.Histogram
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		AttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termprobe_attempts_total",
				Help: "Search attempts executed, by site and result (ok or error)",
			},
			[]string{"site", "result"},
		),
		AttemptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "termprobe_attempt_duration_seconds",
				Help:    "Duration of single search attempts in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"site"},
		),
		OutcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termprobe_outcomes_total",
				Help: "Final per-term outcomes, by site and outcome",
			},
			[]string{"site", "outcome"},
		),
		PacingDelay: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "termprobe_pacing_delay_seconds",
				Help:    "Randomized delay slept between terms",
				Buckets: prometheus.LinearBuckets(0.25, 0.25, 12),
			},
		),
	}
}

func (r *Recorder) Attempt(site string, d time.Duration, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.AttemptsTotal.WithLabelValues(site, result).Inc()
	r.AttemptDuration.WithLabelValues(site).Observe(d.Seconds())
}

func (r *Recorder) Outcome(site, outcome string) {
	if r == nil {
		return
	}
	r.OutcomesTotal.WithLabelValues(site, outcome).Inc()
}

func (r *Recorder) Pacing(d time.Duration) {
	if r == nil {
		return
	}
	r.PacingDelay.Observe(d.Seconds())
}

// Handler exposes the recorder's registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
