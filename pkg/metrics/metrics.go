package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	backoffice = "backoffice"

	jobsEnqueuedTotal  = "jobs_enqueued_total"
	jobsCompletedTotal = "jobs_completed_total"
	jobsFailedTotal    = "jobs_failed_total"
	jobsRetriedTotal   = "jobs_retried_total"
	jobDurationSeconds = "job_duration_seconds"
	QueueDepth         = "queue_depth"

	jobKindLabel = "kind"
)

var jobKindLabels = []string{
	jobKindLabel,
}

/**
* Metrics definition
**/
var jobsEnqueuedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: backoffice,
		Name:      jobsEnqueuedTotal,
		Help:      "number of jobs enqueued, by job kind",
	},
	jobKindLabels,
)

var jobsCompletedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: backoffice,
		Name:      jobsCompletedTotal,
		Help:      "number of jobs completed successfully, by job kind",
	},
	jobKindLabels,
)

var jobsFailedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: backoffice,
		Name:      jobsFailedTotal,
		Help:      "number of failed job attempts, by job kind",
	},
	jobKindLabels,
)

var jobsRetriedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: backoffice,
		Name:      jobsRetriedTotal,
		Help:      "number of job attempts scheduled for retry, by job kind",
	},
	jobKindLabels,
)

var jobDurationSecondsMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Subsystem: backoffice,
		Name:      jobDurationSeconds,
		Help:      "handler execution time in seconds, by job kind",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	},
	jobKindLabels,
)

var queueDepthMetric = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Subsystem: backoffice,
		Name:      QueueDepth,
		Help:      "number of queue items waiting to be claimed",
	},
)

func IncreaseJobsEnqueuedMetric(kind string) {
	jobsEnqueuedTotalMetric.With(prometheus.Labels{jobKindLabel: kind}).Inc()
}

func IncreaseJobsCompletedMetric(kind string) {
	jobsCompletedTotalMetric.With(prometheus.Labels{jobKindLabel: kind}).Inc()
}

func IncreaseJobsFailedMetric(kind string) {
	jobsFailedTotalMetric.With(prometheus.Labels{jobKindLabel: kind}).Inc()
}

func IncreaseJobsRetriedMetric(kind string) {
	jobsRetriedTotalMetric.With(prometheus.Labels{jobKindLabel: kind}).Inc()
}

func ObserveJobDurationMetric(kind string, d time.Duration) {
	jobDurationSecondsMetric.With(prometheus.Labels{jobKindLabel: kind}).Observe(d.Seconds())
}

func UpdateQueueDepthMetric(depth int64) {
	queueDepthMetric.Set(float64(depth))
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(jobsEnqueuedTotalMetric)
	prometheus.MustRegister(jobsCompletedTotalMetric)
	prometheus.MustRegister(jobsFailedTotalMetric)
	prometheus.MustRegister(jobsRetriedTotalMetric)
	prometheus.MustRegister(jobDurationSecondsMetric)
	prometheus.MustRegister(queueDepthMetric)
}
