package shared

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/alertify/core"
	"github.com/trezcool/alertify/core/alert"
	"github.com/trezcool/alertify/core/course"
	"github.com/trezcool/alertify/core/user"
	"github.com/trezcool/alertify/services/email"
	"github.com/trezcool/alertify/services/lock"
	"github.com/trezcool/alertify/services/logger"
	"github.com/trezcool/alertify/services/metrics"
	"github.com/trezcool/alertify/storage/database"
	"github.com/trezcool/alertify/storage/database/sqlboiler"
	"github.com/trezcool/alertify/storage/database/sqlx"
)

type (
	HostRepository interface {
		course.Provider
		user.CapabilityChecker
	}

	Options struct {
		// Migrate creates the alert database if needed and applies pending migrations.
		Migrate bool
		// MailOut receives the messages of the console mail backend.
		MailOut *log.Logger
	}

	// App holds the dependencies shared by the worker and the admin CLI.
	App struct {
		Conf     *core.Config
		Logger   core.Logger
		DB       *sql.DB
		HostDB   *sql.DB
		Host     HostRepository
		Alerts   *alert.Service
		Mail     core.EmailService
		Locker   alert.Locker
		Registry *prometheus.Registry
		Metrics  *metricsvc.Collector

		redis *redis.Client
	}
)

// NewLogger returns a rollbar logger printing to stdout with prefix.
func NewLogger(conf *core.Config, prefix string) *logsvc.RollbarLogger {
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, prefix+" : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func Setup(ctx context.Context, conf *core.Config, logger core.Logger, opts Options) (*App, error) {
	app := &App{Conf: conf, Logger: logger}

	// set up DBs
	db, err := setUpDB(conf, opts.Migrate)
	if err != nil {
		return nil, errors.Wrap(err, "setting up alert database")
	}
	app.DB = db

	hostDB, err := database.OpenHost(conf)
	if err != nil {
		_ = app.Close()
		return nil, errors.Wrap(err, "opening host database")
	}
	app.HostDB = hostDB
	if err = database.Ping(hostDB); err != nil {
		_ = app.Close()
		return nil, errors.Wrap(err, "pinging host database")
	}
	app.Host = boiledrepos.NewHostRepository(hostDB, database.HostDriverName(conf), conf.Host.TablePrefix)

	// set up services
	if app.Mail, err = emailsvc.New(ctx, conf, opts.MailOut); err != nil {
		_ = app.Close()
		return nil, errors.Wrap(err, "setting up mail backend")
	}

	if conf.Redis.Addr != "" {
		app.redis = locksvc.NewRedisClient(conf)
		app.Locker = locksvc.NewRedisLocker(app.redis, conf.Redis.LockTTL)
	} else {
		app.Locker = alert.NewLocalLocker()
	}

	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.Metrics = metricsvc.NewCollector(app.Registry)

	app.Alerts = alert.NewService(
		sqlxrepos.NewAlertRepository(sqlx.NewDb(db, "postgres")),
		app.Host,
		core.NewValidator(),
		alert.Options{
			Cadence:         conf.Alerts.Cadence,
			Location:        conf.Location(),
			DefaultTemplate: conf.Alerts.DefaultTemplate,
		},
	)
	return app, nil
}

func setUpDB(conf *core.Config, migrate bool) (*sql.DB, error) {
	if migrate {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if migrate {
		if err = database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

// NewSendAlertsTask wires the send-alerts job.
func (app *App) NewSendAlertsTask() *alert.SendAlertsTask {
	return alert.NewSendAlertsTask(
		alert.TaskDeps{
			Service:    app.Alerts,
			Resolver:   alert.NewResolver(app.Host, app.Host),
			Renderer:   alert.NewRenderer(app.Conf.Host.BaseURL),
			Dispatcher: alert.NewDispatcher(app.Mail, app.Conf.DefaultFromEmail()),
			Locker:     app.Locker,
			Logger:     app.Logger,
			Observer:   app.Metrics,
		},
		alert.TaskOptions{
			Subject:     app.Conf.Alerts.Subject,
			Workers:     app.Conf.Alerts.Workers,
			SendWorkers: app.Conf.Alerts.SendWorkers,
			Timeout:     app.Conf.Alerts.RunTimeout,
		},
	)
}

func (app *App) Close() error {
	var errs []error
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing redis: %w", err))
		}
	}
	if app.HostDB != nil {
		if err := app.HostDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing host database: %w", err))
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing alert database: %w", err))
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
