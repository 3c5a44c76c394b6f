package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/alertify/core"
	"github.com/trezcool/alertify/core/alert"
)

type (
	pinger interface {
		PingContext(ctx context.Context) error
	}

	// reportSource exposes the outcome of the latest run.
	reportSource interface {
		LastReport() (alert.Report, bool)
	}

	ServerDeps struct {
		Conf     *core.Config
		Logger   core.Logger
		Gatherer prometheus.Gatherer
		Reports  reportSource
		Stores   map[string]pinger // checked by /healthz
	}

	// opsServer serves health and metrics endpoints next to the scheduler.
	opsServer struct {
		ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

// newOpsServer starts catching SIGINT and SIGTERM right away; they are read from ShutdownSignal.
func newOpsServer(deps ServerDeps) *opsServer {
	s := &opsServer{
		ServerDeps: deps,
		app:        echo.New(),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *opsServer) setup() {
	s.app.HideBanner = true
	s.app.HidePort = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	// do not recover in DEV|TEST mode
	if !(s.Conf.Debug || s.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Debug = s.Conf.Debug

	s.app.GET("/healthz", s.healthz)
	s.app.GET("/status", s.status)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{})))
}

func (s *opsServer) healthz(ctx echo.Context) error {
	checks := make(map[string]string, len(s.Stores))
	code := http.StatusOK
	for name, store := range s.Stores {
		if err := store.PingContext(ctx.Request().Context()); err != nil {
			s.Logger.Error("health check failed: "+name, err)
			checks[name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	return ctx.JSON(code, checks)
}

func (s *opsServer) status(ctx echo.Context) error {
	report, ok := s.Reports.LastReport()
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no run yet")
	}
	return ctx.JSON(http.StatusOK, report)
}

// Start listens on the ops address. Errors other than a graceful close are sent to Errors.
func (s *opsServer) Start() {
	if err := s.app.Start(s.Conf.Server.OpsHost); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *opsServer) Errors() <-chan error {
	return s.errors
}

func (s *opsServer) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *opsServer) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *opsServer) Close() error {
	signal.Stop(s.shutdown)
	return s.app.Close()
}

func (s *opsServer) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}
