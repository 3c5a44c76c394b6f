package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/trezcool/alertify/apps/shared"
	"github.com/trezcool/alertify/core"
	"github.com/trezcool/alertify/services/metrics"
)

const pushJobName = "alertify_sendalerts"

func main() {
	once := flag.Bool("once", false, "run the send-alerts job once and exit")
	date := flag.String("date", "", "with -once, process the alerts due on this day (YYYY-MM-DD) instead of today")
	flag.Parse()

	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := shared.NewLogger(conf, "WORKER")
	defer logger.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := shared.Setup(ctx, conf, logger, shared.Options{
		Migrate: true,
		MailOut: log.New(os.Stdout, "EMAIL : ", log.LstdFlags),
	})
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up: %v", err), err)
	}
	defer func() {
		if err = app.Close(); err != nil {
			logger.Error(fmt.Sprintf("closing: %v", err), err)
		}
	}()

	job := newSendAlertsJob(ctx, app.NewSendAlertsTask(), app.Metrics, logger, conf.Location())

	logger.Info(fmt.Sprintf("Worker initializing : version %q", conf.Build))
	defer logger.Info("Worker stopped")

	if *once {
		if err = runOnce(job, conf, app, *date); err != nil {
			logger.Error(fmt.Sprintf("send alerts: %v", err), err)
			logger.Close()
			os.Exit(1)
		}
		return
	}

	// =========================================================================
	// Start Ops Service

	server := newOpsServer(ServerDeps{
		Conf:     conf,
		Logger:   logger,
		Gatherer: app.Registry,
		Reports:  job,
		Stores:   map[string]pinger{"alerts": app.DB, "host": app.HostDB},
	})
	go server.Start()

	// =========================================================================
	// Start Scheduler

	cronLogger := cron.PrintfLogger(log.New(os.Stdout, "CRON : ", log.LstdFlags|log.Lmicroseconds))
	scheduler := cron.New(
		cron.WithLocation(conf.Location()),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		cron.WithLogger(cronLogger),
	)
	if _, err = scheduler.AddJob(conf.Alerts.Schedule, job); err != nil {
		logger.Fatal(fmt.Sprintf("invalid schedule %q: %v", conf.Alerts.Schedule, err), err)
	}
	scheduler.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("ops server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
	}

	// give a running job a deadline for completion
	jobsDone := scheduler.Stop()
	select {
	case <-jobsDone.Done():
	case <-time.After(conf.Server.ShutdownTimeout):
		logger.Warn("send alerts still running: cancelling")
		cancel()
		<-jobsDone.Done()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err = server.Shutdown(shutdownCtx); err != nil {
		logger.Error(fmt.Sprintf("could not stop ops server gracefully: %v", err), err)
		if err = server.Close(); err != nil {
			logger.Error(fmt.Sprintf("could not force stop ops server: %v", err), err)
		}
	}
}

// runOnce processes one day and pushes the run metrics when a pushgateway is configured.
func runOnce(job *sendAlertsJob, conf *core.Config, app *shared.App, date string) error {
	today, err := parseDay(date, conf.Location())
	if err != nil {
		return err
	}
	_, runErr := job.RunOn(today)

	if conf.PushgateURL != "" {
		if err = metricsvc.Push(conf.PushgateURL, pushJobName, app.Registry); err != nil {
			app.Logger.Warn(fmt.Sprintf("pushing metrics: %v", err), err)
		}
	}
	return runErr
}
