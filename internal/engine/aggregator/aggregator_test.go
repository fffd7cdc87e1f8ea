package aggregator

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowstate/internal/domain"
	"flowstate/internal/engine/velocity"
	pkgerrors "flowstate/pkg/errors"
)

var base = time.Date(2025, 11, 29, 12, 0, 0, 0, time.UTC)

func newTestAggregator() *Aggregator {
	return New(DefaultConfig(), velocity.NewTracker(5*time.Second))
}

func mention(topic string, sentiment domain.Sentiment) domain.MessageEvent {
	return domain.MessageEvent{
		Topic:     topic,
		Sentiment: sentiment,
		Text:      topic + " to the moon",
		Author:    "trader",
	}
}

func TestOnMessage_RejectsMissingText(t *testing.T) {
	a := newTestAggregator()

	err := a.OnMessage(domain.MessageEvent{Topic: "AAPL"}, base)
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidEvent)
	assert.Zero(t, a.TopicCount(), "rejected event must not mutate state")
}

func TestOnMessage_TopicLifecycle(t *testing.T) {
	a := newTestAggregator()

	require.NoError(t, a.OnMessage(mention("NVDA", domain.SentimentBullish), base))
	require.NoError(t, a.OnMessage(mention("NVDA", domain.SentimentBearish), base.Add(time.Second)))
	require.NoError(t, a.OnMessage(mention("NVDA", "whatever"), base.Add(2*time.Second)))

	top := a.TopTopics(10)
	require.Len(t, top, 1)
	assert.Equal(t, "NVDA", top[0].Symbol)
	assert.Equal(t, 3, top[0].Count)
	assert.Equal(t, 1, top[0].Sentiment.Bullish)
	assert.Equal(t, 1, top[0].Sentiment.Bearish)
	assert.Equal(t, 1, top[0].Sentiment.Neutral, "unknown sentiment counts as neutral")
	assert.Equal(t, base.Add(2*time.Second), top[0].LastUpdate)
}

func TestOnMessage_RecentCommentsRing(t *testing.T) {
	a := newTestAggregator()

	for i := 0; i < 8; i++ {
		ev := mention("TSLA", domain.SentimentBullish)
		ev.Text = fmt.Sprintf("comment %d", i)
		require.NoError(t, a.OnMessage(ev, base))
	}

	top := a.TopTopics(1)
	require.Len(t, top, 1)
	require.Len(t, top[0].RecentComments, 5)
	assert.Equal(t, "comment 3", top[0].RecentComments[0].Text, "oldest dropped first")
	assert.Equal(t, "comment 7", top[0].RecentComments[4].Text)
}

func TestTopTopics_OrderAndTieBreak(t *testing.T) {
	a := newTestAggregator()

	// GME first seen before AMC, both end at count 2; SPY leads with 3
	for _, topic := range []string{"GME", "AMC", "SPY", "SPY", "GME", "AMC", "SPY"} {
		require.NoError(t, a.OnMessage(mention(topic, domain.SentimentNeutral), base))
	}

	top := a.TopTopics(2)
	require.Len(t, top, 2)
	assert.Equal(t, "SPY", top[0].Symbol)
	assert.Equal(t, "GME", top[1].Symbol, "ties broken by first-seen order")
}

func TestQuestionDedup(t *testing.T) {
	a := newTestAggregator()

	q := domain.MessageEvent{Topic: "PLTR", Text: "good entry for PLTR?", Author: "alice", IsQuestion: true}
	require.NoError(t, a.OnMessage(q, base))

	q2 := q
	q2.Text = "PLTR entry point anyone?"
	q2.Author = "bob"
	require.NoError(t, a.OnMessage(q2, base.Add(time.Second)))

	questions := a.Questions()
	require.Len(t, questions, 1)
	assert.Equal(t, 2, questions[0].Count)
	assert.Equal(t, "PLTR entry point anyone?", questions[0].Text, "last write wins")
	assert.Equal(t, "bob", questions[0].Author)

	// A different key creates a second entry
	other := domain.MessageEvent{Text: "is the market open tomorrow?", IsQuestion: true}
	require.NoError(t, a.OnMessage(other, base.Add(2*time.Second)))
	assert.Len(t, a.Questions(), 2)
}

func TestQuestionKey_TextPrefixWhenNoTopic(t *testing.T) {
	a := newTestAggregator()

	long := "what do you all think about the semiconductor sector this quarter?"
	ev := domain.MessageEvent{Text: long, IsQuestion: true}
	require.NoError(t, a.OnMessage(ev, base))

	// Same 30-char prefix, different tail: still one entry
	ev2 := domain.MessageEvent{Text: long[:35] + " (serious answers only)", IsQuestion: true}
	require.NoError(t, a.OnMessage(ev2, base.Add(time.Second)))

	questions := a.Questions()
	require.Len(t, questions, 1)
	assert.Equal(t, []rune(long)[:30], []rune(questions[0].Key))
}

func TestQuestionTTLEviction(t *testing.T) {
	a := newTestAggregator()

	ev := domain.MessageEvent{Topic: "COIN", Text: "COIN worth buying?", IsQuestion: true}
	require.NoError(t, a.OnMessage(ev, base))

	a.SweepExpiredQuestions(base.Add(29 * time.Second))
	assert.Len(t, a.Questions(), 1, "present just before the TTL")

	removed := a.SweepExpiredQuestions(base.Add(31 * time.Second))
	assert.Equal(t, 1, removed)
	assert.Empty(t, a.Questions(), "absent just after the TTL")
}

func TestQuestionCap_OldestFirstEviction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QuestionCap = 3
	a := New(cfg, velocity.NewTracker(5*time.Second))

	for i := 0; i < 5; i++ {
		ev := domain.MessageEvent{
			Topic:      fmt.Sprintf("T%d", i),
			Text:       fmt.Sprintf("question %d?", i),
			IsQuestion: true,
		}
		require.NoError(t, a.OnMessage(ev, base.Add(time.Duration(i)*time.Second)))
	}

	questions := a.Questions()
	require.Len(t, questions, 3)
	for _, q := range questions {
		assert.NotContains(t, []string{"T0", "T1"}, q.Topic, "oldest entries evicted")
	}
}

func TestOnPulse_NewestFirstCapSeven(t *testing.T) {
	a := newTestAggregator()

	for i := 0; i < 9; i++ {
		ev := domain.PulseEvent{Summary: fmt.Sprintf("summary %d", i), Mood: "🟢"}
		require.NoError(t, a.OnPulse(ev, base.Add(time.Duration(i)*time.Minute)))
	}

	pulses := a.Pulses()
	require.Len(t, pulses, 7)
	assert.Equal(t, "summary 8", pulses[0].Summary, "newest first")
	assert.Equal(t, "summary 2", pulses[6].Summary, "oldest dropped")
}

func TestOnPulse_RejectsEmptySummary(t *testing.T) {
	a := newTestAggregator()
	err := a.OnPulse(domain.PulseEvent{Mood: "⚪"}, base)
	require.Error(t, err)
	assert.Empty(t, a.Pulses())
}

func TestSentimentRatioAndContested(t *testing.T) {
	tests := []struct {
		name          string
		bullish       int
		bearish       int
		wantRatio     float64
		wantDominant  domain.Sentiment
		wantContested bool
	}{
		{"all bullish", 10, 0, 1.0, domain.SentimentBullish, false},
		{"all bearish", 0, 10, 0.0, domain.SentimentBearish, false},
		{"no directional", 0, 0, 0.5, domain.SentimentNeutral, false},
		{"near even", 5, 4, 5.0 / 9.0, domain.SentimentBullish, true},
		{"lopsided", 20, 10, 2.0 / 3.0, domain.SentimentBullish, false},
		{"tiny sample not contested", 1, 1, 0.5, domain.SentimentNeutral, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAggregator()
			for i := 0; i < tt.bullish; i++ {
				require.NoError(t, a.OnMessage(mention("X", domain.SentimentBullish), base))
			}
			for i := 0; i < tt.bearish; i++ {
				require.NoError(t, a.OnMessage(mention("X", domain.SentimentBearish), base))
			}

			top := a.TopTopics(1)
			require.Len(t, top, 1)
			assert.InDelta(t, tt.wantRatio, top[0].SentimentRatio, 1e-9)
			assert.Equal(t, tt.wantDominant, top[0].Dominant)
			assert.Equal(t, tt.wantContested, top[0].Contested)
		})
	}
}

// End-to-end ranking scenario: two topics with uneven traffic
func TestRankingScenario(t *testing.T) {
	a := newTestAggregator()

	for i := 0; i < 20; i++ {
		require.NoError(t, a.OnMessage(mention("AAPL", domain.SentimentBullish), base))
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, a.OnMessage(mention("AAPL", domain.SentimentBearish), base))
	}
	require.NoError(t, a.OnMessage(mention("TSLA", domain.SentimentBullish), base))
	for i := 0; i < 4; i++ {
		require.NoError(t, a.OnMessage(mention("TSLA", domain.SentimentBearish), base))
	}

	top := a.TopTopics(2)
	require.Len(t, top, 2)

	assert.Equal(t, "AAPL", top[0].Symbol)
	assert.Equal(t, 30, top[0].Count)
	assert.False(t, top[0].Contested)
	assert.Equal(t, domain.SentimentBullish, top[0].Dominant)

	assert.Equal(t, "TSLA", top[1].Symbol)
	assert.Equal(t, 5, top[1].Count)
	assert.False(t, top[1].Contested)
	assert.Equal(t, domain.SentimentBearish, top[1].Dominant)
}
