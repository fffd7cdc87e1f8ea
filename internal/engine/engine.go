// Package engine composes the aggregate state, the drip scheduler and the
// layout simulation behind a single lock. Every mutation runs to completion
// before the next one starts, so component invariants always hold between
// calls no matter how many goroutines feed the engine.
package engine

import (
	"context"
	"sync"
	"time"

	"flowstate/internal/domain"
	"flowstate/internal/engine/aggregator"
	"flowstate/internal/engine/pacer"
	"flowstate/internal/engine/sim"
	"flowstate/internal/engine/velocity"
	"flowstate/internal/metrics"
	"flowstate/pkg/errors"
	"flowstate/pkg/logger"
)

// Config assembles per-component tuning
type Config struct {
	MaxBubbles     int
	VelocityWindow time.Duration
	FrameInterval  time.Duration

	Aggregator aggregator.Config
	Pacer      pacer.Config
	Sim        sim.Config
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		MaxBubbles:     24,
		VelocityWindow: 5 * time.Second,
		FrameInterval:  16 * time.Millisecond,
		Aggregator:     aggregator.DefaultConfig(),
		Pacer:          pacer.DefaultConfig(),
		Sim:            sim.DefaultConfig(),
	}
}

// VibeCallback observes each drip release. Invoked outside the engine lock;
// callbacks may call back into the engine safely.
type VibeCallback func(domain.ReleasedVibe)

// Engine is the live visualization state machine
type Engine struct {
	cfg Config
	log *logger.Logger

	mu        sync.Mutex
	agg       *aggregator.Aggregator
	vel       *velocity.Tracker
	pac       *pacer.Pacer
	sim       *sim.Simulator
	dirty     bool // ranking changed since the last layout sync
	lastFrame time.Time
	dripTimer *time.Timer
	closed    bool

	onVibe VibeCallback
}

// New creates an engine; Run must be called for the layout to animate
func New(cfg Config, log *logger.Logger) *Engine {
	vel := velocity.NewTracker(cfg.VelocityWindow)
	return &Engine{
		cfg: cfg,
		log: log,
		agg: aggregator.New(cfg.Aggregator, vel),
		vel: vel,
		pac: pacer.New(cfg.Pacer),
		sim: sim.New(cfg.Sim),
	}
}

// OnVibeReleased registers the drip observer. Must be set before events flow.
func (e *Engine) OnVibeReleased(cb VibeCallback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onVibe = cb
}

// HandleEvent validates and applies one upstream event
func (e *Engine) HandleEvent(env domain.Envelope) error {
	started := time.Now()
	err := e.handleEvent(env, started)
	metrics.RecordEvent(string(env.Kind), time.Since(started), err)
	return err
}

// handleEvent applies one event stamped with its arrival time. Upstream
// timestamps stay on the envelope for consumers but never drive engine
// clocks: velocity, TTLs and drip pacing all compare against time.Now(), so
// a skewed upstream clock must not leak into them.
func (e *Engine) handleEvent(env domain.Envelope, now time.Time) error {
	if err := env.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errors.ErrEngineClosed
	}

	switch env.Kind {
	case domain.EventKindMessage:
		if err := e.agg.OnMessage(*env.Message, now); err != nil {
			return err
		}
		e.dirty = true
		metrics.ChatVelocity.Set(e.vel.Rate(now))
		return nil

	case domain.EventKindVibe:
		if e.pac.Enqueue(*env.Vibe, now) {
			e.armDripLocked(e.pac.StartDelay(now, e.vel.Rate(now)))
		}
		metrics.VibeQueueDepth.Set(float64(e.pac.QueueLen()))
		return nil

	case domain.EventKindPulse:
		return e.agg.OnPulse(*env.Pulse, now)

	default:
		return errors.Wrapf(errors.ErrUnknownEventKind, "kind %q", string(env.Kind))
	}
}

// SweepExpiredQuestions drops stale questions, returning how many went
func (e *Engine) SweepExpiredQuestions(now time.Time) int {
	e.mu.Lock()
	removed := e.agg.SweepExpiredQuestions(now)
	e.mu.Unlock()

	if removed > 0 {
		metrics.QuestionsExpired.Add(float64(removed))
		e.log.Debug("Expired questions swept", "removed", removed)
	}
	return removed
}

// Snapshot assembles a consistent render-ready view of all engine state
func (e *Engine) Snapshot() domain.Snapshot {
	now := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	rate := e.vel.Rate(now)
	return domain.Snapshot{
		Time:      now,
		Topics:    e.agg.TopTopics(e.cfg.MaxBubbles),
		Bubbles:   e.sim.Snapshot(),
		Questions: e.agg.Questions(),
		Pulses:    e.agg.Pulses(),
		Vibes:     e.pac.Released(),
		Rate:      rate,
		Band:      velocity.Classify(rate),
	}
}

// Stats implements metrics.StatsSource
func (e *Engine) Stats() metrics.EngineStats {
	now := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	return metrics.EngineStats{
		TopicsTracked:   e.agg.TopicCount(),
		VisibleBubbles:  e.sim.Len(),
		ActiveQuestions: len(e.agg.Questions()),
		PulseEntries:    len(e.agg.Pulses()),
		VibeQueueDepth:  e.pac.QueueLen(),
		VibesReleased:   len(e.pac.Released()),
		ChatVelocity:    e.vel.Rate(now),
	}
}

// Run drives the layout simulation until the context is canceled. The drip
// loop runs on its own timer and does not require Run, but bubbles only move
// while Run is active.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("Engine frame loop starting", "interval", e.cfg.FrameInterval)

	ticker := time.NewTicker(e.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info("Engine frame loop stopped")
			return ctx.Err()
		case now := <-ticker.C:
			e.frame(now)
		}
	}
}

// Close stops the drip loop and rejects further events
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	if e.dripTimer != nil {
		e.dripTimer.Stop()
		e.dripTimer = nil
	}
}

// frame advances the simulation by the wall time since the previous frame
func (e *Engine) frame(now time.Time) {
	started := time.Now()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}

	if e.dirty {
		e.sim.Sync(e.agg.TopTopics(e.cfg.MaxBubbles))
		e.dirty = false
		metrics.VisibleBubbles.Set(float64(e.sim.Len()))
	}

	dt := e.cfg.FrameInterval.Seconds()
	if !e.lastFrame.IsZero() {
		dt = now.Sub(e.lastFrame).Seconds()
	}
	e.lastFrame = now

	e.sim.Step(dt)
	e.mu.Unlock()

	metrics.FrameDuration.Observe(time.Since(started).Seconds())
}

// armDripLocked schedules the next drip tick. Caller holds the lock; the
// pacer state machine guarantees at most one timer is ever pending.
func (e *Engine) armDripLocked(delay time.Duration) {
	e.dripTimer = time.AfterFunc(delay, e.drip)
}

// drip fires one release and re-arms while the queue holds items
func (e *Engine) drip() {
	now := time.Now()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}

	rate := e.vel.Rate(now)
	item, next, more := e.pac.Tick(now, rate)
	if more {
		e.armDripLocked(next)
		metrics.RecordRelease(next)
	}
	metrics.VibeQueueDepth.Set(float64(e.pac.QueueLen()))
	cb := e.onVibe
	e.mu.Unlock()

	if item != nil && cb != nil {
		cb(*item)
	}
}
