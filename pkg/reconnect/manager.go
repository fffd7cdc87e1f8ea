// Package reconnect provides a connection supervisor combining exponential
// backoff, a circuit breaker and heartbeat staleness detection. It is
// transport-agnostic and drives the upstream feed client.
package reconnect

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"flowstate/pkg/errors"
	"flowstate/pkg/logger"
)

// Config tunes the supervisor. Zero values fall back to defaults.
type Config struct {
	MinBackoff        time.Duration // first retry delay
	MaxBackoff        time.Duration // backoff ceiling
	Multiplier        float64       // growth factor per consecutive failure
	JitterFraction    float64       // random extra delay, as a fraction of the backoff
	MaxFailures       int           // consecutive failures before the breaker opens
	StaleAfter        time.Duration // silence on the wire that marks the link dead
	BreakerResetAfter time.Duration // cool-down before a tripped breaker allows retries
}

func (c *Config) applyDefaults() {
	if c.MinBackoff == 0 {
		c.MinBackoff = time.Second
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = 2 * time.Minute
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
	if c.JitterFraction == 0 {
		c.JitterFraction = 0.2
	}
	if c.MaxFailures == 0 {
		c.MaxFailures = 10
	}
	if c.StaleAfter == 0 {
		c.StaleAfter = 90 * time.Second
	}
	if c.BreakerResetAfter == 0 {
		c.BreakerResetAfter = 3 * time.Minute
	}
}

// Manager supervises one logical connection. Safe for concurrent use.
type Manager struct {
	cfg Config
	log *logger.Logger

	mu          sync.RWMutex
	backoff     time.Duration
	failures    int
	reconnects  int
	tripped     bool
	trippedAt   time.Time
	lastMessage atomic.Int64 // unix nanos of last inbound frame
}

// Stats is a point-in-time view of supervisor state
type Stats struct {
	Failures       int
	TotalRecovered int
	NextBackoff    time.Duration
	BreakerOpen    bool
	LastMessage    time.Time
}

// NewManager creates a supervisor in the closed-breaker state
func NewManager(cfg Config, log *logger.Logger) *Manager {
	cfg.applyDefaults()
	return &Manager{cfg: cfg, log: log, backoff: cfg.MinBackoff}
}

// NoteActivity marks the link alive. Call on every inbound frame.
func (m *Manager) NoteActivity() {
	m.lastMessage.Store(time.Now().UnixNano())
}

// Stale reports whether the link has been silent past the heartbeat window.
// A link that never received anything is not stale.
func (m *Manager) Stale() bool {
	last := m.lastMessage.Load()
	if last == 0 {
		return false
	}
	return time.Since(time.Unix(0, last)) > m.cfg.StaleAfter
}

// Allow reports whether a reconnect attempt may proceed right now
func (m *Manager) Allow() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.tripped {
		return time.Since(m.trippedAt) >= m.cfg.BreakerResetAfter
	}
	return m.failures < m.cfg.MaxFailures
}

// Attempt waits out the current backoff, runs fn once and updates state from
// its outcome. Returns the breaker error without calling fn when retries are
// exhausted.
func (m *Manager) Attempt(ctx context.Context, fn func(context.Context) error) error {
	if !m.Allow() {
		m.mu.RLock()
		tripped := m.tripped
		failures := m.failures
		m.mu.RUnlock()

		if tripped {
			return errors.Wrap(errors.ErrFeedReconnectFailed, "breaker open")
		}
		return errors.Wrapf(errors.ErrFeedMaxReconnectAttempts, "%d consecutive failures", failures)
	}

	wait := m.nextDelay()
	if wait > 0 {
		m.log.Info("⏳ Waiting before reconnect attempt", "backoff", wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := fn(ctx); err != nil {
		m.noteFailure()
		return errors.Wrap(err, "reconnect attempt failed")
	}

	m.noteSuccess()
	return nil
}

// TripReset force-closes the breaker and clears the failure streak
func (m *Manager) TripReset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tripped {
		m.log.Info("Breaker manually reset")
	}
	m.tripped = false
	m.trippedAt = time.Time{}
	m.failures = 0
	m.backoff = m.cfg.MinBackoff
}

// GetStats returns current supervisor stats
func (m *Manager) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var last time.Time
	if ns := m.lastMessage.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}

	return Stats{
		Failures:       m.failures,
		TotalRecovered: m.reconnects,
		NextBackoff:    m.backoff,
		BreakerOpen:    m.tripped,
		LastMessage:    last,
	}
}

// nextDelay returns the jittered backoff for the upcoming attempt
func (m *Manager) nextDelay() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jitter := time.Duration(rand.Float64() * m.cfg.JitterFraction * float64(m.backoff))
	return m.backoff + jitter
}

func (m *Manager) noteFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failures++

	next := time.Duration(float64(m.backoff) * m.cfg.Multiplier)
	if next > m.cfg.MaxBackoff {
		next = m.cfg.MaxBackoff
	}
	m.backoff = next

	m.log.Warn("Reconnect failed", "failures", m.failures, "next_backoff", m.backoff)

	if m.failures >= m.cfg.MaxFailures && !m.tripped {
		m.tripped = true
		m.trippedAt = time.Now()
		m.log.Error("🔴 Breaker OPEN after repeated reconnect failures",
			"failures", m.failures,
			"reset_after", m.cfg.BreakerResetAfter,
		)
	}
}

func (m *Manager) noteSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failures > 0 || m.tripped {
		m.log.Info("✅ Connection restored", "after_failures", m.failures)
	}

	m.failures = 0
	m.backoff = m.cfg.MinBackoff
	m.reconnects++
	m.tripped = false
	m.trippedAt = time.Time{}
	m.lastMessage.Store(time.Now().UnixNano())
}
