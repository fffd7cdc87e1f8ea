// Package pacer smooths bursty vibe arrivals into a steady release cadence
// synchronized to the rhythm of upstream batches.
package pacer

import (
	"math"
	"math/rand"
	"time"

	"flowstate/internal/domain"
)

// Config tunes the drip schedule. All fields are fixed at construction.
type Config struct {
	InitialBatchInterval time.Duration
	FreshSampleWeight    float64 // EWMA weight on the newest batch-interval sample
	MinBatchGap          time.Duration
	MinDelay             time.Duration
	MaxDelay             time.Duration
	ReleasedCap          int
	JitterLow            float64
	JitterHigh           float64
	Seed                 int64 // 0 seeds from the clock
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		InitialBatchInterval: 30 * time.Second,
		FreshSampleWeight:    0.7,
		MinBatchGap:          5 * time.Second,
		MinDelay:             300 * time.Millisecond,
		MaxDelay:             5 * time.Second,
		ReleasedCap:          16,
		JitterLow:            0.85,
		JitterHigh:           1.15,
	}
}

// QueuedVibe is a vibe item waiting to be released
type QueuedVibe struct {
	Text     string
	Kind     domain.VibeKind
	QueuedAt time.Time
}

// Pacer is an explicit state machine with states Idle and Pending. Enqueue
// reports when the owner must arm the drip timer; Tick is the single entry
// point invoked when that timer fires. At most one timer is ever pending:
// Enqueue only requests a start from the Idle state, and Tick either
// re-arms or returns to Idle. Items leave the queue strictly in FIFO order,
// exactly once. Not safe for concurrent use; the engine serializes access.
type Pacer struct {
	cfg Config
	rng *rand.Rand

	queue            []QueuedVibe
	released         []domain.ReleasedVibe
	estBatchInterval time.Duration
	lastBatchStart   time.Time
	pending          bool
}

// New creates a pacer in the Idle state
func New(cfg Config) *Pacer {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Pacer{
		cfg:              cfg,
		rng:              rand.New(rand.NewSource(seed)),
		estBatchInterval: cfg.InitialBatchInterval,
	}
}

// Enqueue pushes a vibe item. A push into an empty queue marks the start of
// a new batch and updates the smoothed batch-interval estimate. The return
// value is true exactly when the pacer transitions Idle -> Pending and the
// owner must schedule the first Tick after StartDelay.
func (p *Pacer) Enqueue(ev domain.VibeEvent, now time.Time) bool {
	wasEmpty := len(p.queue) == 0
	p.queue = append(p.queue, QueuedVibe{Text: ev.Text, Kind: ev.Kind, QueuedAt: now})

	if wasEmpty {
		if !p.lastBatchStart.IsZero() {
			sample := now.Sub(p.lastBatchStart)
			w := p.cfg.FreshSampleWeight
			p.estBatchInterval = time.Duration(
				float64(p.estBatchInterval)*(1-w) + float64(sample)*w,
			)
		}
		p.lastBatchStart = now
	}

	if !p.pending {
		p.pending = true
		return true
	}
	return false
}

// Tick fires one drip step. With an empty queue the loop stops (Pending ->
// Idle) and more is false. Otherwise the front item moves to the released
// list and more is true with the delay before the next Tick.
func (p *Pacer) Tick(now time.Time, rate float64) (item *domain.ReleasedVibe, next time.Duration, more bool) {
	if len(p.queue) == 0 {
		p.pending = false
		return nil, 0, false
	}

	head := p.queue[0]
	p.queue = p.queue[1:]

	rel := domain.ReleasedVibe{Text: head.Text, Kind: head.Kind, ReleasedAt: now}
	p.released = append(p.released, rel)
	if len(p.released) > p.cfg.ReleasedCap {
		p.released = p.released[len(p.released)-p.cfg.ReleasedCap:]
	}

	return &rel, p.nextDelay(now, rate), true
}

// StartDelay computes the delay before the first Tick of a fresh loop,
// using the same formula as subsequent drips
func (p *Pacer) StartDelay(now time.Time, rate float64) time.Duration {
	return p.nextDelay(now, rate)
}

// QueueLen reports how many items are waiting
func (p *Pacer) QueueLen() int {
	return len(p.queue)
}

// Pending reports whether a drip timer should currently be armed
func (p *Pacer) Pending() bool {
	return p.pending
}

// Released returns the bounded released list, oldest first
func (p *Pacer) Released() []domain.ReleasedVibe {
	out := make([]domain.ReleasedVibe, len(p.released))
	copy(out, p.released)
	return out
}

// EstimatedBatchInterval exposes the smoothed batch-interval estimate
func (p *Pacer) EstimatedBatchInterval() time.Duration {
	return p.estBatchInterval
}

// nextDelay spreads the remaining queue across the time expected until the
// next batch, compressed when chat runs hot and jittered so releases never
// feel mechanical. The +1 reserves headroom so the tail of a batch does not
// drip too fast.
func (p *Pacer) nextDelay(now time.Time, rate float64) time.Duration {
	remaining := float64(len(p.queue) + 1)

	untilNextBatch := p.estBatchInterval - now.Sub(p.lastBatchStart)
	if untilNextBatch < p.cfg.MinBatchGap {
		untilNextBatch = p.cfg.MinBatchGap
	}

	velocityMultiplier := 1.0 / math.Max(1, 1+0.5*rate)
	jitter := p.cfg.JitterLow + p.rng.Float64()*(p.cfg.JitterHigh-p.cfg.JitterLow)

	delay := time.Duration(float64(untilNextBatch) / remaining * velocityMultiplier * jitter)

	if delay < p.cfg.MinDelay {
		delay = p.cfg.MinDelay
	}
	if delay > p.cfg.MaxDelay {
		delay = p.cfg.MaxDelay
	}
	return delay
}
