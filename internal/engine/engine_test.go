package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowstate/internal/domain"
	pkgerrors "flowstate/pkg/errors"
	"flowstate/pkg/logger"
)

var base = time.Date(2025, 11, 29, 12, 0, 0, 0, time.UTC)

// fastConfig shrinks every timing constant so tests finish in milliseconds
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.FrameInterval = 2 * time.Millisecond
	cfg.Pacer.MinDelay = time.Millisecond
	cfg.Pacer.MaxDelay = 5 * time.Millisecond
	cfg.Pacer.MinBatchGap = 10 * time.Millisecond
	cfg.Pacer.Seed = 42
	cfg.Sim.Seed = 42
	return cfg
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(fastConfig(), logger.Get())
	t.Cleanup(e.Close)
	return e
}

func messageEnvelope(topic, text string) domain.Envelope {
	return domain.Envelope{
		Kind: domain.EventKindMessage,
		Time: base,
		Message: &domain.MessageEvent{
			Topic:     topic,
			Sentiment: domain.SentimentBullish,
			Text:      text,
		},
	}
}

func vibeEnvelope(text string) domain.Envelope {
	return domain.Envelope{
		Kind: domain.EventKindVibe,
		Vibe: &domain.VibeEvent{Kind: domain.VibeFunny, Text: text},
	}
}

func TestHandleEvent_MessageReachesSnapshot(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.HandleEvent(messageEnvelope("NVDA", "NVDA breaking out")))
	require.NoError(t, e.HandleEvent(messageEnvelope("NVDA", "still going")))

	snap := e.Snapshot()
	require.Len(t, snap.Topics, 1)
	assert.Equal(t, "NVDA", snap.Topics[0].Symbol)
	assert.Equal(t, 2, snap.Topics[0].Count)
}

func TestHandleEvent_RejectsInvalidEnvelope(t *testing.T) {
	e := newTestEngine(t)

	err := e.HandleEvent(domain.Envelope{Kind: domain.EventKindMessage})
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidEvent)

	err = e.HandleEvent(domain.Envelope{Kind: "mystery"})
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrUnknownEventKind)

	assert.Empty(t, e.Snapshot().Topics, "rejected events leave no trace")
}

func TestHandleEvent_PulseReachesSnapshot(t *testing.T) {
	e := newTestEngine(t)

	env := domain.Envelope{
		Kind:  domain.EventKindPulse,
		Pulse: &domain.PulseEvent{Summary: "chat is heating up", Mood: "🟢", TopTicker: "NVDA"},
	}
	require.NoError(t, e.HandleEvent(env))

	snap := e.Snapshot()
	require.Len(t, snap.Pulses, 1)
	assert.Equal(t, "chat is heating up", snap.Pulses[0].Summary)
}

func TestDripLoop_ReleasesAllInOrder(t *testing.T) {
	e := newTestEngine(t)

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})

	const n = 5
	e.OnVibeReleased(func(v domain.ReleasedVibe) {
		mu.Lock()
		got = append(got, v.Text)
		if len(got) == n {
			close(done)
		}
		mu.Unlock()
	})

	for i := 0; i < n; i++ {
		require.NoError(t, e.HandleEvent(vibeEnvelope(fmt.Sprintf("vibe %d", i))))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("drip loop did not release all items")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, text := range got {
		assert.Equal(t, fmt.Sprintf("vibe %d", i), text)
	}

	snap := e.Snapshot()
	assert.Len(t, snap.Vibes, n, "released items visible in the snapshot")
}

func TestSweepExpiredQuestions(t *testing.T) {
	e := newTestEngine(t)

	arrived := time.Now()
	env := domain.Envelope{
		Kind:    domain.EventKindMessage,
		Time:    base,
		Message: &domain.MessageEvent{Topic: "COIN", Text: "COIN worth buying?", IsQuestion: true},
	}
	require.NoError(t, e.HandleEvent(env))
	require.Len(t, e.Snapshot().Questions, 1)

	assert.Zero(t, e.SweepExpiredQuestions(arrived.Add(10*time.Second)))
	assert.Equal(t, 1, e.SweepExpiredQuestions(arrived.Add(time.Minute)))
	assert.Empty(t, e.Snapshot().Questions)
}

func TestHandleEvent_SkewedUpstreamClockIgnored(t *testing.T) {
	e := newTestEngine(t)

	env := messageEnvelope("NVDA", "late frame")
	env.Time = base.Add(-24 * time.Hour)
	require.NoError(t, e.HandleEvent(env))

	snap := e.Snapshot()
	assert.Greater(t, snap.Rate, 0.0, "arrival time keeps fresh traffic inside the velocity window")
	require.Len(t, snap.Topics, 1)
	assert.WithinDuration(t, time.Now(), snap.Topics[0].LastUpdate, time.Second)
}

func TestRun_AnimatesBubblesWithinBounds(t *testing.T) {
	cfg := fastConfig()
	e := New(cfg, logger.Get())
	t.Cleanup(e.Close)

	for i := 0; i < 10; i++ {
		require.NoError(t, e.HandleEvent(messageEnvelope("AAPL", "apple talk")))
	}
	require.NoError(t, e.HandleEvent(messageEnvelope("TSLA", "tesla talk")))

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- e.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(e.Snapshot().Bubbles) == 2
	}, time.Second, 5*time.Millisecond, "layout picks up the ranked topics")

	time.Sleep(50 * time.Millisecond)

	snap := e.Snapshot()
	for _, b := range snap.Bubbles {
		assert.Greater(t, b.X, 0.0)
		assert.Less(t, b.X, cfg.Sim.Width)
		assert.Greater(t, b.Y, 0.0)
		assert.Less(t, b.Y, cfg.Sim.Height)
	}

	cancel()
	assert.ErrorIs(t, <-runDone, context.Canceled)
}

func TestClose_RejectsFurtherEvents(t *testing.T) {
	e := New(fastConfig(), logger.Get())

	require.NoError(t, e.HandleEvent(messageEnvelope("SPY", "spy chat")))
	e.Close()
	e.Close() // idempotent

	err := e.HandleEvent(messageEnvelope("SPY", "after close"))
	assert.ErrorIs(t, err, pkgerrors.ErrEngineClosed)
}

func TestStats(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.HandleEvent(messageEnvelope("AMD", "amd chat")))
	require.NoError(t, e.HandleEvent(vibeEnvelope("lol")))

	stats := e.Stats()
	assert.Equal(t, 1, stats.TopicsTracked)
	assert.GreaterOrEqual(t, stats.VibeQueueDepth+stats.VibesReleased, 1, "vibe is queued or already dripped")
}
