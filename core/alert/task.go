package alert

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/alertify/core"
)

type (
	// Report summarizes one run of the send-due-alerts job.
	Report struct {
		RunID      string
		Day        time.Time
		Due        int // alerts due on Day
		Processed  int // sent and rescheduled
		Invalid    int // dangling or missing activity
		Locked     int // held by another run
		Skipped    int // no longer due or deleted meanwhile
		Errored    int // host read, lock or interrupted-send failures
		SaveFailed int // sent but not rescheduled
		Sent       int // notifications delivered
		Failed     int // notifications not delivered
		Aborted    bool
	}

	// RunObserver receives the outcome of every run.
	RunObserver interface {
		ObserveRun(r Report, took time.Duration)
	}

	TaskDeps struct {
		Service    *Service
		Resolver   *Resolver
		Renderer   *Renderer
		Dispatcher *Dispatcher
		Locker     Locker
		Logger     core.Logger
		Observer   RunObserver // optional
	}

	TaskOptions struct {
		Subject     string
		Workers     int           // alerts processed concurrently
		SendWorkers int           // deliveries per alert processed concurrently
		Timeout     time.Duration // 0 means no budget
	}

	// SendAlertsTask emails every due alert's pending students, then reschedules the alert.
	SendAlertsTask struct {
		TaskDeps
		opts TaskOptions
	}

	runCounters struct {
		processed, invalid, locked, skipped, errored, saveFailed atomic.Int64
		sent, failed                                             atomic.Int64
	}
)

func NewSendAlertsTask(deps TaskDeps, opts TaskOptions) *SendAlertsTask {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.SendWorkers <= 0 {
		opts.SendWorkers = 1
	}
	if deps.Locker == nil {
		deps.Locker = NewLocalLocker()
	}
	return &SendAlertsTask{TaskDeps: deps, opts: opts}
}

// Run processes the alerts due on the calendar day of today.
// A failure to load the due alerts, or an alert store fault while reloading one,
// aborts the whole run and is returned as a *RepositoryError.
func (t *SendAlertsTask) Run(ctx context.Context, today time.Time) (Report, error) {
	started := nowFunc()
	report := Report{RunID: uuid.NewString(), Day: today}

	if t.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
	}

	alerts, err := t.Service.DueAlerts(ctx, today)
	if err != nil {
		t.Logger.Error(fmt.Sprintf("run %s: loading due alerts: %v", report.RunID, err), err)
		return report, err
	}
	report.Due = len(alerts)
	t.Logger.Info(fmt.Sprintf("run %s: %d alert(s) due on %s", report.RunID, len(alerts), today.Format("2006-01-02")))

	var c runCounters
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.opts.Workers)
	for _, a := range alerts {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return t.processAlert(gctx, report.RunID, a, today, &c)
		})
	}
	runErr := g.Wait()

	report.Processed = int(c.processed.Load())
	report.Invalid = int(c.invalid.Load())
	report.Locked = int(c.locked.Load())
	report.Skipped = int(c.skipped.Load())
	report.Errored = int(c.errored.Load())
	report.SaveFailed = int(c.saveFailed.Load())
	report.Sent = int(c.sent.Load())
	report.Failed = int(c.failed.Load())
	report.Aborted = runErr != nil || ctx.Err() != nil

	if runErr != nil {
		t.Logger.Error(fmt.Sprintf("run %s: aborted: %v", report.RunID, runErr), runErr)
		return report, runErr
	}

	if t.Observer != nil {
		t.Observer.ObserveRun(report, nowFunc().Sub(started))
	}
	t.Logger.Info(fmt.Sprintf(
		"run %s: done: processed=%d invalid=%d locked=%d skipped=%d errored=%d saveFailed=%d sent=%d failed=%d",
		report.RunID, report.Processed, report.Invalid, report.Locked, report.Skipped,
		report.Errored, report.SaveFailed, report.Sent, report.Failed,
	))

	if err := ctx.Err(); err != nil {
		return report, core.NewShutdownError(fmt.Sprintf("run %s stopped before completion: %v", report.RunID, err))
	}
	return report, nil
}

// processAlert only returns alert store faults; every other failure is counted and logged.
func (t *SendAlertsTask) processAlert(ctx context.Context, runID string, a Alert, today time.Time, c *runCounters) error {
	lock, err := t.Locker.Acquire(ctx, a.ID)
	if err != nil {
		if errors.Is(err, ErrLocked) {
			c.locked.Add(1)
			t.Logger.Info(fmt.Sprintf("run %s: alert %d: %v", runID, a.ID, err))
			return nil
		}
		c.errored.Add(1)
		t.Logger.Error(fmt.Sprintf("run %s: alert %d: acquiring lock: %v", runID, a.ID, err), err)
		return nil
	}
	defer func() {
		if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
			t.Logger.Warn(fmt.Sprintf("run %s: alert %d: releasing lock: %v", runID, a.ID, err), err)
		}
	}()

	// another run may have handled it while we waited
	current, err := t.Service.Get(ctx, 0, a.ID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			c.skipped.Add(1)
			return nil
		case ctx.Err() != nil:
			c.errored.Add(1)
			return nil
		}
		c.errored.Add(1)
		return err
	}
	if !current.IsDueOn(today, t.Service.Location()) {
		c.skipped.Add(1)
		return nil
	}

	res, err := t.Resolver.Resolve(ctx, current)
	if err != nil {
		var invalid *InvalidTargetError
		if errors.As(err, &invalid) {
			c.invalid.Add(1)
			t.Logger.Warn(fmt.Sprintf("run %s: skipping: %v", runID, err), err)
			return nil
		}
		c.errored.Add(1)
		t.Logger.Error(fmt.Sprintf("run %s: alert %d: resolving recipients: %v", runID, a.ID, err), err)
		return nil
	}

	t.sendAll(ctx, runID, current, res, c)
	if ctx.Err() != nil {
		// left due so the next run picks it up again
		c.errored.Add(1)
		return nil
	}

	if _, err := t.Service.MarkSent(ctx, current); err != nil {
		c.saveFailed.Add(1)
		t.Logger.Error(fmt.Sprintf("run %s: %v", runID, err), err)
		return nil
	}
	c.processed.Add(1)
	return nil
}

func (t *SendAlertsTask) sendAll(ctx context.Context, runID string, a Alert, res Resolution, c *runCounters) {
	g := new(errgroup.Group)
	g.SetLimit(t.opts.SendWorkers)
	for _, usr := range res.Recipients {
		g.Go(func() error {
			text, htmlBody := t.Renderer.Render(a.Template, res.Course, usr, &res.Activity)
			if err := t.Dispatcher.Send(ctx, a.ID, usr, t.opts.Subject, text, htmlBody); err != nil {
				c.failed.Add(1)
				t.Logger.Warn(fmt.Sprintf("run %s: %v", runID, err), err, usr)
				return nil
			}
			c.sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()
}
