package tasks

import "github.com/prometheus/client_golang/prometheus"

var (
	tasksSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vividd",
		Subsystem: "tasks",
		Name:      "submitted_total",
		Help:      "Total generation tasks admitted",
	})
	tasksCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vividd",
		Subsystem: "tasks",
		Name:      "completed_total",
		Help:      "Total generation tasks that completed successfully",
	})
	tasksFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vividd",
		Subsystem: "tasks",
		Name:      "failed_total",
		Help:      "Total generation tasks that ended in failure",
	})
)

func init() {
	prometheus.MustRegister(tasksSubmitted, tasksCompleted, tasksFailed)
}
