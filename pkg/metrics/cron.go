package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

const (
	outcomeOK     = "ok"
	outcomeFailed = "failed"
)

// CronJobMetrics covers the maintenance worker. A nil value or one built
// without a registerer records nothing.
type CronJobMetrics struct {
	runs    *prometheus.CounterVec
	seconds *prometheus.HistogramVec
	backlog prometheus.Gauge
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_runs_total",
			Help:      "Maintenance job runs by outcome.",
		}, []string{"job", "outcome"}),
		seconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Wall time of maintenance job runs.",
			Buckets:   []float64{.05, .25, 1, 5, 30, 120, 600},
		}, []string{"job"}),
		backlog: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "pending",
			Help:      "Outbox events not yet published.",
		}),
	}
	reg.MustRegister(m.runs, m.seconds, m.backlog)
	return m
}

// ObserveRun records one job run; a non-nil err counts as a failure.
func (c *CronJobMetrics) ObserveRun(job string, took time.Duration, err error) {
	if c == nil || c.runs == nil {
		return
	}
	job = normalizeLabel(job)
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeFailed
	}
	c.runs.WithLabelValues(job, outcome).Inc()
	c.seconds.WithLabelValues(job).Observe(took.Seconds())
}

func (c *CronJobMetrics) SetOutboxBacklog(pending int64) {
	if c == nil || c.backlog == nil {
		return
	}
	c.backlog.Set(float64(pending))
}
