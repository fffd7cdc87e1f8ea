// Package bootstrap wires configuration, the engine, the feed and the
// serving surface into one lifecycle.
package bootstrap

import (
	"context"
	"sync"
	"time"

	"flowstate/internal/adapters/config"
	"flowstate/internal/api"
	"flowstate/internal/api/health"
	"flowstate/internal/engine"
	"flowstate/internal/engine/aggregator"
	"flowstate/internal/engine/pacer"
	"flowstate/internal/engine/sim"
	"flowstate/internal/feed"
	"flowstate/internal/metrics"
	"flowstate/internal/workers"
	"flowstate/pkg/errors"
	"flowstate/pkg/logger"
	"flowstate/pkg/reconnect"
)

// FeedRunner is either the live WebSocket client or the synthetic generator
type FeedRunner interface {
	Run(ctx context.Context) error
}

// Container holds all application dependencies in initialization order
type Container struct {
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	Engine    *engine.Engine
	Feed      FeedRunner
	Hub       *api.Hub
	Server    *api.Server
	Scheduler *workers.Scheduler

	Context context.Context
	Cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New assembles the container; nothing runs until Start
func New(cfg *config.Config, log *logger.Logger, tracker errors.Tracker) *Container {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Container{
		Config:       cfg,
		Log:          log,
		ErrorTracker: tracker,
		Context:      ctx,
		Cancel:       cancel,
	}

	metrics.Init()
	c.initEngine()
	c.initFeed()
	c.initServer()
	c.initWorkers()

	log.Info("✓ Container assembled")
	return c
}

func (c *Container) initEngine() {
	cfg := c.Config

	engCfg := engine.Config{
		MaxBubbles:     cfg.Engine.MaxBubbles,
		VelocityWindow: cfg.Engine.VelocityWindow,
		FrameInterval:  cfg.Engine.FrameInterval,
		Aggregator: aggregator.Config{
			RecentComments:    cfg.Engine.RecentComments,
			QuestionTTL:       cfg.Engine.QuestionTTL,
			QuestionCap:       cfg.Engine.QuestionCap,
			QuestionKeyLength: cfg.Engine.QuestionKeyLength,
			PulseCap:          cfg.Engine.PulseCap,
		},
		Pacer: pacer.Config{
			InitialBatchInterval: cfg.Pacer.InitialBatchInterval,
			FreshSampleWeight:    cfg.Pacer.FreshSampleWeight,
			MinBatchGap:          cfg.Pacer.MinBatchGap,
			MinDelay:             cfg.Pacer.MinDelay,
			MaxDelay:             cfg.Pacer.MaxDelay,
			ReleasedCap:          cfg.Pacer.ReleasedCap,
			JitterLow:            pacer.DefaultConfig().JitterLow,
			JitterHigh:           pacer.DefaultConfig().JitterHigh,
		},
		Sim: c.simConfig(),
	}

	c.Engine = engine.New(engCfg, c.Log)
	metrics.RegisterEngineCollector(metrics.NewEngineCollector(c.Log, c.Engine))
}

func (c *Container) simConfig() sim.Config {
	simCfg := sim.DefaultConfig()
	simCfg.MaxBubbles = c.Config.Engine.MaxBubbles
	simCfg.Width = c.Config.Sim.Width
	simCfg.Height = c.Config.Sim.Height
	simCfg.MinRadius = c.Config.Sim.MinRadius
	simCfg.MaxRadius = c.Config.Sim.MaxRadius
	simCfg.SqrtScale = c.Config.Sim.SqrtScale
	simCfg.Seed = c.Config.Sim.Seed
	return simCfg
}

func (c *Container) initFeed() {
	if !c.Config.Feed.Enabled {
		c.Log.Info("Feed disabled, running on synthetic traffic")
		c.Feed = feed.NewSynthetic(feed.DefaultSyntheticConfig(), c.Engine.HandleEvent, c.Log)
		return
	}

	c.Feed = feed.NewClient(feed.Config{
		URL:         c.Config.Feed.URL,
		StreamID:    c.Config.Feed.StreamID,
		DialTimeout: c.Config.Feed.DialTimeout,
		Reconnect: reconnect.Config{
			MinBackoff:        c.Config.Feed.ReconnectMinBackoff,
			MaxBackoff:        c.Config.Feed.ReconnectMaxBackoff,
			MaxFailures:       c.Config.Feed.ReconnectMaxFailures,
			StaleAfter:        c.Config.Feed.StaleAfter,
			BreakerResetAfter: c.Config.Feed.BreakerResetAfter,
		},
	}, c.Engine.HandleEvent, c.Log)
}

func (c *Container) initServer() {
	c.Hub = api.NewHub(c.Engine, c.Config.Server.SnapshotInterval, c.Config.Server.BroadcastPerSec, c.Log)

	var feedProbe health.FeedProbe
	if client, ok := c.Feed.(*feed.Client); ok {
		feedProbe = client
	}
	healthHandler := health.New(c.Log, feedProbe, c.Engine, c.Config.App.Name, "dev")

	c.Server = api.NewServer(api.ServerConfig{
		Port:        c.Config.Server.Port,
		ServiceName: c.Config.App.Name,
		Version:     "dev",
	}, healthHandler, c.Hub, c.Engine, c.Log)
}

func (c *Container) initWorkers() {
	c.Scheduler = workers.NewScheduler()
	c.Scheduler.RegisterWorker(workers.NewSweepWorker(c.Engine, c.Config.Workers.QuestionSweepInterval))
	c.Scheduler.RegisterWorker(workers.NewStatsWorker(c.Engine, c.Config.Workers.MetricsInterval))
}

// Start launches every long-running component
func (c *Container) Start() error {
	c.runAsync("engine", c.Engine.Run)
	c.runAsync("feed", c.Feed.Run)
	c.runAsync("hub", c.Hub.Run)

	if err := c.Scheduler.Start(c.Context); err != nil {
		return err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.Server.Start(); err != nil {
			c.Log.Error("HTTP server stopped", "error", err)
			c.Cancel()
		}
	}()

	c.Log.Info("✅ All components started")
	return nil
}

// Shutdown stops everything in reverse order of startup
func (c *Container) Shutdown(timeout time.Duration) {
	c.Log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := c.Server.Shutdown(ctx); err != nil {
		c.Log.Warn("Server shutdown", "error", err)
	}
	if err := c.Scheduler.Stop(); err != nil {
		c.Log.Warn("Scheduler shutdown", "error", err)
	}

	c.Cancel()
	c.Engine.Close()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		c.Log.Info("✓ Shutdown complete")
	case <-ctx.Done():
		c.Log.Warn("Shutdown timed out")
	}

	if c.ErrorTracker != nil {
		_ = c.ErrorTracker.Flush(context.Background())
	}
}

// runAsync runs a context-bound loop, treating context cancellation as a
// normal exit
func (c *Container) runAsync(name string, fn func(context.Context) error) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := fn(c.Context); err != nil && !errors.Is(err, context.Canceled) {
			c.Log.Error("Component exited", "component", name, "error", err)
			c.Cancel()
		}
	}()
}
