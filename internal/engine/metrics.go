package engine

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce sync.Once

	runsTotal          *prometheus.CounterVec
	deploymentsChecked prometheus.Counter
	notificationsTotal *prometheus.CounterVec
	purgesTotal        prometheus.Counter
	runDuration        prometheus.Histogram
)

func initMetrics() {
	metricsOnce.Do(func() {
		runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deploywatch",
			Subsystem: "engine",
			Name:      "runs_total",
			Help:      "Count of reconciliation runs by outcome",
		}, []string{"outcome"})

		deploymentsChecked = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "deploywatch",
			Subsystem: "engine",
			Name:      "deployments_checked_total",
			Help:      "Deployments compared against recorded state",
		})

		notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deploywatch",
			Subsystem: "engine",
			Name:      "notifications_total",
			Help:      "Notifications delivered by event kind",
		}, []string{"kind"})

		purgesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "deploywatch",
			Subsystem: "engine",
			Name:      "cache_purges_total",
			Help:      "Edge cache purges performed",
		})

		runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "deploywatch",
			Subsystem: "engine",
			Name:      "run_duration_seconds",
			Help:      "Latency distribution of reconciliation runs",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		})

		collectors := []prometheus.Collector{runsTotal, deploymentsChecked, notificationsTotal, purgesTotal, runDuration}
		for _, collector := range collectors {
			if err := prometheus.Register(collector); err != nil {
				if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
					switch v := are.ExistingCollector.(type) {
					case *prometheus.CounterVec:
						if collector == runsTotal {
							runsTotal = v
						} else if collector == notificationsTotal {
							notificationsTotal = v
						}
					case prometheus.Counter:
						if collector == deploymentsChecked {
							deploymentsChecked = v
						} else if collector == purgesTotal {
							purgesTotal = v
						}
					case prometheus.Histogram:
						runDuration = v
					}
				}
			}
		}
	})
}

func recordRun(outcome string, duration time.Duration) {
	runsTotal.With(prometheus.Labels{"outcome": outcome}).Inc()
	runDuration.Observe(duration.Seconds())
}
