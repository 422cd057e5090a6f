package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const cronSubsystem = "cron"

// CronJobMetrics tracks scheduler runs and the records each sweep touched.
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	records  *prometheus.CounterVec
}

// NewCronJobMetrics registers the scheduler collectors. A nil registerer
// yields a no-op recorder.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: cronSubsystem,
			Name:      "job_duration_seconds",
			Help:      "Wall time of scheduled jobs.",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: cronSubsystem,
			Name:      "job_runs_total",
			Help:      "Scheduled job executions by result.",
		}, []string{"job", "result"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: cronSubsystem,
			Name:      "records_total",
			Help:      "Transactions examined by sweep jobs, by outcome.",
		}, []string{"job", "outcome"}),
	}
	reg.MustRegister(m.duration, m.runs, m.records)
	return m
}

func (c *CronJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(jobLabel(job)).Observe(duration.Seconds())
}

func (c *CronJobMetrics) IncSuccess(job string) { c.incRun(job, "success") }

func (c *CronJobMetrics) IncFailure(job string) { c.incRun(job, "failure") }

// AddRecords counts sweep outcomes such as "processed" or "failed".
func (c *CronJobMetrics) AddRecords(job, outcome string, n int) {
	if c == nil || c.records == nil || n <= 0 {
		return
	}
	c.records.WithLabelValues(jobLabel(job), outcome).Add(float64(n))
}

func (c *CronJobMetrics) incRun(job, result string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(jobLabel(job), result).Inc()
}

func jobLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
