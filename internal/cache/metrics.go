package cache

import "github.com/prometheus/client_golang/prometheus"

var (
	downloadsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vividd",
		Subsystem: "cache",
		Name:      "downloads_started_total",
		Help:      "Total artifact downloads started",
	})
	downloadsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vividd",
		Subsystem: "cache",
		Name:      "downloads_completed_total",
		Help:      "Total artifact downloads completed successfully",
	})
	downloadsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vividd",
		Subsystem: "cache",
		Name:      "downloads_failed_total",
		Help:      "Total artifact downloads that failed or were incomplete",
	})
)

func init() {
	prometheus.MustRegister(downloadsStarted, downloadsCompleted, downloadsFailed)
}
