package workers

import (
	"context"
	"time"
)

// QuestionSweeper expires stale question entries
type QuestionSweeper interface {
	SweepExpiredQuestions(now time.Time) int
}

// SweepWorker periodically drops questions past their TTL. The interval must
// stay well under the TTL or entries linger visibly after expiry.
type SweepWorker struct {
	*BaseWorker
	engine QuestionSweeper
}

// NewSweepWorker creates the question sweep worker
func NewSweepWorker(engine QuestionSweeper, interval time.Duration) *SweepWorker {
	return &SweepWorker{
		BaseWorker: NewBaseWorker("question_sweep", interval, true),
		engine:     engine,
	}
}

// Run performs one sweep
func (w *SweepWorker) Run(ctx context.Context) error {
	removed := w.engine.SweepExpiredQuestions(time.Now())
	if removed > 0 {
		w.Log().Debug("Swept expired questions", "removed", removed)
	}
	w.RecordRun()
	return nil
}
