package velocity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"flowstate/internal/domain"
)

var base = time.Date(2025, 11, 29, 12, 0, 0, 0, time.UTC)

func at(seconds float64) time.Time {
	return base.Add(time.Duration(seconds * float64(time.Second)))
}

func TestRate_WindowSemantics(t *testing.T) {
	tr := NewTracker(5 * time.Second)

	// Events at t=0..4, queried at t=5: the t=0 sample is exactly window-old
	// and falls out (age < window is the keep condition).
	for s := 0; s < 5; s++ {
		tr.Record(at(float64(s)))
	}

	assert.InDelta(t, 4.0/5.0, tr.Rate(at(5)), 1e-9)
}

func TestRate_EmptyAndStale(t *testing.T) {
	tr := NewTracker(5 * time.Second)
	assert.Zero(t, tr.Rate(at(0)))

	tr.Record(at(0))
	tr.Record(at(1))

	// Well past the window, everything is pruned
	assert.Zero(t, tr.Rate(at(60)))
}

func TestRate_PrunesOnRecord(t *testing.T) {
	tr := NewTracker(5 * time.Second)
	for s := 0; s < 100; s++ {
		tr.Record(at(float64(s)))
	}
	// Only samples inside the window survive
	assert.LessOrEqual(t, len(tr.samples), 5)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		want domain.VelocityBand
	}{
		{"zero is quiet", 0, domain.BandQuiet},
		{"just below active", 0.49, domain.BandQuiet},
		{"active lower bound", 0.5, domain.BandActive},
		{"just below busy", 1.99, domain.BandActive},
		{"busy lower bound", 2.0, domain.BandBusy},
		{"just below hype", 3.99, domain.BandBusy},
		{"hype lower bound", 4.0, domain.BandHype},
		{"far into hype", 25.0, domain.BandHype},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.rate))
		})
	}
}

func TestBand_TracksRate(t *testing.T) {
	tr := NewTracker(5 * time.Second)
	assert.Equal(t, domain.BandQuiet, tr.Band(at(0)))

	// 25 events in the window -> 5/s -> hype
	for i := 0; i < 25; i++ {
		tr.Record(at(1))
	}
	assert.Equal(t, domain.BandHype, tr.Band(at(2)))
}
