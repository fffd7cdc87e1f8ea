// Package velocity estimates the instantaneous chat rate from a sliding
// window of event timestamps.
package velocity

import (
	"time"

	"flowstate/internal/domain"
)

// Band thresholds in events per second
const (
	activeThreshold = 0.5
	busyThreshold   = 2.0
	hypeThreshold   = 4.0
)

// Tracker is a pull-based leaky-bucket rate estimator. Timestamps older
// than the window are discarded on every query; the rate is count divided
// by the window length. Not safe for concurrent use; the owner serializes
// access.
type Tracker struct {
	window  time.Duration
	samples []time.Time
}

// NewTracker creates a tracker with the given sliding window
func NewTracker(window time.Duration) *Tracker {
	return &Tracker{window: window}
}

// Record appends an event timestamp
func (t *Tracker) Record(now time.Time) {
	t.samples = append(t.samples, now)
	// Prune here too so a quiet stream does not grow the slice unbounded
	t.prune(now)
}

// Rate returns the smoothed events-per-second rate at the given instant.
// A sample counts while its age is strictly below the window.
func (t *Tracker) Rate(now time.Time) float64 {
	t.prune(now)
	return float64(len(t.samples)) / t.window.Seconds()
}

// Band classifies the current rate for display. The thresholds carry no
// hysteresis; oscillation across a boundary is expected.
func (t *Tracker) Band(now time.Time) domain.VelocityBand {
	return Classify(t.Rate(now))
}

// Classify maps a rate to its display band
func Classify(rate float64) domain.VelocityBand {
	switch {
	case rate >= hypeThreshold:
		return domain.BandHype
	case rate >= busyThreshold:
		return domain.BandBusy
	case rate >= activeThreshold:
		return domain.BandActive
	default:
		return domain.BandQuiet
	}
}

func (t *Tracker) prune(now time.Time) {
	cutoff := now.Add(-t.window)
	i := 0
	for i < len(t.samples) && !t.samples[i].After(cutoff) {
		i++
	}
	if i > 0 {
		t.samples = append(t.samples[:0], t.samples[i:]...)
	}
}
