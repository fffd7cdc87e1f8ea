package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowstate/pkg/errors"
)

type countingWorker struct {
	*BaseWorker
	runs atomic.Int64
	err  error
}

func newCountingWorker(name string, interval time.Duration, enabled bool) *countingWorker {
	return &countingWorker{BaseWorker: NewBaseWorker(name, interval, enabled)}
}

func (w *countingWorker) Run(ctx context.Context) error {
	w.runs.Add(1)
	if w.err != nil {
		w.RecordError(w.err)
		return w.err
	}
	w.RecordRun()
	return nil
}

func TestScheduler_RunsEnabledWorkers(t *testing.T) {
	s := NewScheduler()
	enabled := newCountingWorker("enabled", 10*time.Millisecond, true)
	disabled := newCountingWorker("disabled", 10*time.Millisecond, false)
	s.RegisterWorker(enabled)
	s.RegisterWorker(disabled)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())

	require.Eventually(t, func() bool { return enabled.runs.Load() >= 3 },
		time.Second, 5*time.Millisecond, "worker runs immediately and then on its interval")

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.Zero(t, disabled.runs.Load(), "disabled worker never runs")
}

func TestScheduler_DoubleStartAndStop(t *testing.T) {
	s := NewScheduler()
	s.RegisterWorker(newCountingWorker("w", time.Minute, true))

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()), "second start rejected")

	require.NoError(t, s.Stop())
	assert.Error(t, s.Stop(), "second stop rejected")
}

func TestScheduler_RegistrationClosedAfterStart(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	late := newCountingWorker("late", time.Millisecond, true)
	s.RegisterWorker(late)

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, late.runs.Load(), "late registration ignored")
	assert.Empty(t, s.GetWorkers())
}

func TestScheduler_WorkerErrorsDoNotStopLoop(t *testing.T) {
	s := NewScheduler()
	w := newCountingWorker("flaky", 5*time.Millisecond, true)
	w.err = errors.New("boom")
	s.RegisterWorker(w)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return w.runs.Load() >= 3 },
		time.Second, 5*time.Millisecond, "failing worker keeps its schedule")
	require.NoError(t, s.Stop())

	health := w.Health()
	assert.Equal(t, health.RunCount, health.ErrorCount)
	assert.Error(t, health.LastError)
}

type fakeSweeper struct {
	removed atomic.Int64
}

func (f *fakeSweeper) SweepExpiredQuestions(now time.Time) int {
	f.removed.Add(1)
	return 1
}

func TestSweepWorker(t *testing.T) {
	sweeper := &fakeSweeper{}
	w := NewSweepWorker(sweeper, 5*time.Millisecond)

	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, int64(1), sweeper.removed.Load())
	assert.Equal(t, int64(1), w.Health().RunCount)
	assert.True(t, w.Enabled())
	assert.Equal(t, "question_sweep", w.Name())
}
