package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/trezcool/alertify/core"
	"github.com/trezcool/alertify/core/alert"
	"github.com/trezcool/alertify/services/metrics"
)

var nowFunc = time.Now // mockable

// sendAlertsJob runs the send-alerts task for the current calendar day.
// It implements cron.Job.
type sendAlertsJob struct {
	ctx     context.Context
	task    *alert.SendAlertsTask
	metrics *metricsvc.Collector
	logger  core.Logger
	loc     *time.Location

	mu   sync.RWMutex
	last *alert.Report
}

func newSendAlertsJob(ctx context.Context, task *alert.SendAlertsTask, metrics *metricsvc.Collector, logger core.Logger, loc *time.Location) *sendAlertsJob {
	return &sendAlertsJob{ctx: ctx, task: task, metrics: metrics, logger: logger, loc: loc}
}

func (j *sendAlertsJob) Run() {
	if _, err := j.RunOn(nowFunc().In(j.loc)); err != nil && !core.IsShutdown(err) {
		j.logger.Error(fmt.Sprintf("send alerts: %v", err), err)
	}
}

// RunOn processes the alerts due on the calendar day of today.
func (j *sendAlertsJob) RunOn(today time.Time) (alert.Report, error) {
	report, err := j.task.Run(j.ctx, today)
	if err != nil && !core.IsShutdown(err) {
		j.metrics.RunFailed()
		return report, err
	}

	j.mu.Lock()
	j.last = &report
	j.mu.Unlock()
	return report, err
}

func (j *sendAlertsJob) LastReport() (alert.Report, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.last == nil {
		return alert.Report{}, false
	}
	return *j.last, true
}

// parseDay reads a YYYY-MM-DD day in loc. An empty value is today.
func parseDay(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return nowFunc().In(loc), nil
	}
	day, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid -date %q: want YYYY-MM-DD", value)
	}
	return day, nil
}
