package workers

import (
	"context"
	"time"

	"flowstate/internal/metrics"
)

// StatsWorker refreshes engine gauges and writes a periodic stats line so
// operators can follow the stream from logs alone
type StatsWorker struct {
	*BaseWorker
	source  metrics.StatsSource
	logEach int // stats line every N runs
	runs    int
}

// NewStatsWorker creates the gauge refresh worker
func NewStatsWorker(source metrics.StatsSource, interval time.Duration) *StatsWorker {
	return &StatsWorker{
		BaseWorker: NewBaseWorker("engine_stats", interval, true),
		source:     source,
		logEach:    30,
	}
}

// Run pushes one stats sample
func (w *StatsWorker) Run(ctx context.Context) error {
	stats := w.source.Stats()

	metrics.ChatVelocity.Set(stats.ChatVelocity)
	metrics.VibeQueueDepth.Set(float64(stats.VibeQueueDepth))
	metrics.VisibleBubbles.Set(float64(stats.VisibleBubbles))

	w.runs++
	if w.runs%w.logEach == 0 {
		w.Log().Info("📊 Engine stats",
			"topics", stats.TopicsTracked,
			"bubbles", stats.VisibleBubbles,
			"questions", stats.ActiveQuestions,
			"queue", stats.VibeQueueDepth,
			"velocity", stats.ChatVelocity,
		)
	}

	w.RecordRun()
	return nil
}
