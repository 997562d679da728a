package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomePassed labels trajectories whose empirical coverage met the bound.
	OutcomePassed = "passed"
	// OutcomeFailed labels trajectories that missed the bound.
	OutcomeFailed = "failed"
	// OutcomeError labels sources that could not be loaded or validated.
	OutcomeError = "error"
)

var (
	trajectoriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "koopman_verify",
			Name:      "trajectories_total",
			Help:      "Total number of trajectories processed, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	runsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "koopman_verify",
			Name:      "runs_total",
			Help:      "Total number of validation runs executed.",
		},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "koopman_verify",
			Name:      "run_seconds",
			Help:      "Validation run latency in seconds.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)
)

// Register attaches koopman-verify collectors to the supplied Prometheus
// registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		trajectoriesTotal,
		runsTotal,
		runDurationSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveTrajectory records a single trajectory outcome.
func ObserveTrajectory(outcome string) {
	switch outcome {
	case OutcomePassed, OutcomeFailed, OutcomeError:
	default:
		outcome = OutcomeError
	}
	trajectoriesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRun records a completed validation run and its duration.
func ObserveRun(duration time.Duration) {
	runsTotal.Inc()
	if duration < 0 {
		duration = 0
	}
	runDurationSeconds.Observe(duration.Seconds())
}
