package metricsvc

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/trezcool/alertify/core/alert"
)

const namespace = "alertify"

// Collector exposes the outcome of send-alerts runs.
type Collector struct {
	runs          *prometheus.CounterVec
	alerts        *prometheus.CounterVec
	notifications *prometheus.CounterVec
	duration      prometheus.Histogram
	due           prometheus.Gauge
	lastSuccess   prometheus.Gauge
}

var _ alert.RunObserver = (*Collector)(nil)

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Send-alerts runs by outcome.",
		}, []string{"outcome"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Due alerts handled by result.",
		}, []string{"result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification emails by delivery result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of send-alerts runs.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		due: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alerts_due",
			Help:      "Alerts due in the last run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that completed.",
		}),
	}
	reg.MustRegister(c.runs, c.alerts, c.notifications, c.duration, c.due, c.lastSuccess)
	return c
}

func (c *Collector) ObserveRun(r alert.Report, took time.Duration) {
	outcome := "completed"
	if r.Aborted {
		outcome = "aborted"
	}
	c.runs.WithLabelValues(outcome).Inc()
	c.duration.Observe(took.Seconds())
	c.due.Set(float64(r.Due))

	for result, n := range map[string]int{
		"processed":   r.Processed,
		"invalid":     r.Invalid,
		"locked":      r.Locked,
		"skipped":     r.Skipped,
		"errored":     r.Errored,
		"save_failed": r.SaveFailed,
	} {
		c.alerts.WithLabelValues(result).Add(float64(n))
	}
	c.notifications.WithLabelValues("sent").Add(float64(r.Sent))
	c.notifications.WithLabelValues("failed").Add(float64(r.Failed))

	if !r.Aborted {
		c.lastSuccess.SetToCurrentTime()
	}
}

// RunFailed counts a run aborted by an alert store fault.
func (c *Collector) RunFailed() {
	c.runs.WithLabelValues("failed").Inc()
}

// Push sends the gathered metrics to a pushgateway, for one-shot runs.
func Push(url, job string, g prometheus.Gatherer) error {
	if err := push.New(url, job).Gatherer(g).Push(); err != nil {
		return errors.Wrap(err, "pushing metrics")
	}
	return nil
}
