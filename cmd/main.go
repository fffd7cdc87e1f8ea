package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"flowstate/internal/adapters/config"
	"flowstate/internal/adapters/errors/noop"
	"flowstate/internal/adapters/errors/sentry"
	"flowstate/internal/bootstrap"
	"flowstate/pkg/errors"
	"flowstate/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	container := bootstrap.New(cfg, log, errorTracker)
	if err := container.Start(); err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	waitForShutdown(container, log)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// waitForShutdown blocks until a termination signal, then drains gracefully
func waitForShutdown(container *bootstrap.Container, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("Signal received", "signal", sig.String())
	case <-container.Context.Done():
		log.Warn("A core component failed, shutting down")
	}

	container.Shutdown(15 * time.Second)
}
