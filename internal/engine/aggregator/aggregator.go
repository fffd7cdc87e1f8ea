// Package aggregator folds the unbounded event stream into bounded,
// rank-ordered collections: topics, questions and pulses.
package aggregator

import (
	"sort"
	"time"

	"flowstate/internal/domain"
	"flowstate/internal/engine/velocity"
)

// Config bounds the aggregate collections
type Config struct {
	RecentComments    int
	QuestionTTL       time.Duration
	QuestionCap       int
	QuestionKeyLength int
	PulseCap          int
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		RecentComments:    5,
		QuestionTTL:       30 * time.Second,
		QuestionCap:       12,
		QuestionKeyLength: 30,
		PulseCap:          7,
	}
}

// contested requires at least this many directional mentions and a minority
// share of at least 40%
const (
	contestedMinTally = 4
	contestedMinShare = 0.4
)

type topicState struct {
	symbol     string
	count      int
	tally      domain.SentimentTally
	lastUpdate time.Time
	comments   []domain.Comment
	seq        int // first-seen order, breaks ranking ties
}

// Aggregator owns the topic map, the live question set and the pulse log.
// Topics are never deleted; they only fall out of the visible top-N.
// Not safe for concurrent use; the engine serializes access.
type Aggregator struct {
	cfg       Config
	velocity  *velocity.Tracker
	topics    map[string]*topicState
	nextSeq   int
	questions map[string]*domain.QuestionSummary
	pulses    []domain.PulseSummary
}

// New creates an aggregator recording message cadence into the given tracker
func New(cfg Config, vel *velocity.Tracker) *Aggregator {
	return &Aggregator{
		cfg:       cfg,
		velocity:  vel,
		topics:    make(map[string]*topicState),
		questions: make(map[string]*domain.QuestionSummary),
	}
}

// OnMessage applies a classified chat line: topic tally, comment ring,
// question dedup. The event timestamp is recorded in the velocity tracker
// whether or not the message carries a topic.
func (a *Aggregator) OnMessage(ev domain.MessageEvent, now time.Time) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	a.velocity.Record(now)

	if ev.Topic != "" {
		a.applyMention(ev, now)
	}
	if ev.IsQuestion {
		a.applyQuestion(ev, now)
	}
	return nil
}

// OnPulse prepends a pulse entry, truncating the log to its cap. Pulses are
// never de-duplicated.
func (a *Aggregator) OnPulse(ev domain.PulseEvent, now time.Time) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	entry := domain.PulseSummary{
		Summary:   ev.Summary,
		Mood:      ev.Mood,
		TopTicker: ev.TopTicker,
		Time:      now,
	}
	a.pulses = append([]domain.PulseSummary{entry}, a.pulses...)
	if len(a.pulses) > a.cfg.PulseCap {
		a.pulses = a.pulses[:a.cfg.PulseCap]
	}
	return nil
}

// SweepExpiredQuestions drops entries older than the TTL and returns how
// many were removed. Intended to run on an interval shorter than the TTL.
func (a *Aggregator) SweepExpiredQuestions(now time.Time) int {
	removed := 0
	for key, q := range a.questions {
		if now.Sub(q.Time) > a.cfg.QuestionTTL {
			delete(a.questions, key)
			removed++
		}
	}
	return removed
}

// TopTopics returns up to n topics by count descending, ties broken by
// first-seen order. This is the sole read contract the layout simulator
// depends on.
func (a *Aggregator) TopTopics(n int) []domain.TopicSummary {
	states := make([]*topicState, 0, len(a.topics))
	for _, ts := range a.topics {
		states = append(states, ts)
	}
	sort.Slice(states, func(i, j int) bool {
		if states[i].count != states[j].count {
			return states[i].count > states[j].count
		}
		return states[i].seq < states[j].seq
	})
	if n < len(states) {
		states = states[:n]
	}

	out := make([]domain.TopicSummary, 0, len(states))
	for _, ts := range states {
		out = append(out, ts.summary())
	}
	return out
}

// Questions returns live entries, most recently refreshed first
func (a *Aggregator) Questions() []domain.QuestionSummary {
	out := make([]domain.QuestionSummary, 0, len(a.questions))
	for _, q := range a.questions {
		out = append(out, *q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.After(out[j].Time) })
	return out
}

// Pulses returns the pulse log, newest first
func (a *Aggregator) Pulses() []domain.PulseSummary {
	out := make([]domain.PulseSummary, len(a.pulses))
	copy(out, a.pulses)
	return out
}

// TopicCount reports the total number of tracked topics (visible or not)
func (a *Aggregator) TopicCount() int {
	return len(a.topics)
}

func (a *Aggregator) applyMention(ev domain.MessageEvent, now time.Time) {
	ts, ok := a.topics[ev.Topic]
	if !ok {
		ts = &topicState{symbol: ev.Topic, seq: a.nextSeq}
		a.nextSeq++
		a.topics[ev.Topic] = ts
	}

	ts.count++
	switch domain.ParseSentiment(string(ev.Sentiment)) {
	case domain.SentimentBullish:
		ts.tally.Bullish++
	case domain.SentimentBearish:
		ts.tally.Bearish++
	default:
		ts.tally.Neutral++
	}
	ts.lastUpdate = now

	ts.comments = append(ts.comments, domain.Comment{Text: ev.Text, Sentiment: ev.Sentiment})
	if len(ts.comments) > a.cfg.RecentComments {
		ts.comments = ts.comments[len(ts.comments)-a.cfg.RecentComments:]
	}
}

func (a *Aggregator) applyQuestion(ev domain.MessageEvent, now time.Time) {
	key := a.questionKey(ev)

	if q, ok := a.questions[key]; ok {
		q.Count++
		q.Text = ev.Text
		q.Author = ev.Author
		q.Time = now
		return
	}

	a.questions[key] = &domain.QuestionSummary{
		Key:    key,
		Topic:  ev.Topic,
		Text:   ev.Text,
		Author: ev.Author,
		Count:  1,
		Time:   now,
	}

	for len(a.questions) > a.cfg.QuestionCap {
		a.evictOldestQuestion()
	}
}

// questionKey derives the de-duplication identity: the topic when present,
// otherwise a fixed-length text prefix
func (a *Aggregator) questionKey(ev domain.MessageEvent) string {
	if ev.Topic != "" {
		return ev.Topic
	}
	runes := []rune(ev.Text)
	if len(runes) > a.cfg.QuestionKeyLength {
		runes = runes[:a.cfg.QuestionKeyLength]
	}
	return string(runes)
}

func (a *Aggregator) evictOldestQuestion() {
	var oldestKey string
	var oldest time.Time
	first := true
	for key, q := range a.questions {
		if first || q.Time.Before(oldest) {
			oldestKey = key
			oldest = q.Time
			first = false
		}
	}
	if !first {
		delete(a.questions, oldestKey)
	}
}

func (ts *topicState) summary() domain.TopicSummary {
	directional := ts.tally.Directional()

	ratio := 0.5
	if directional > 0 {
		ratio = float64(ts.tally.Bullish) / float64(directional)
	}

	dominant := domain.SentimentNeutral
	switch {
	case ts.tally.Bullish > ts.tally.Bearish:
		dominant = domain.SentimentBullish
	case ts.tally.Bearish > ts.tally.Bullish:
		dominant = domain.SentimentBearish
	}

	contested := false
	if directional >= contestedMinTally {
		minority := ts.tally.Bullish
		if ts.tally.Bearish < minority {
			minority = ts.tally.Bearish
		}
		contested = float64(minority)/float64(directional) >= contestedMinShare
	}

	comments := make([]domain.Comment, len(ts.comments))
	copy(comments, ts.comments)

	return domain.TopicSummary{
		Symbol:         ts.symbol,
		Count:          ts.count,
		Sentiment:      ts.tally,
		SentimentRatio: ratio,
		Dominant:       dominant,
		Contested:      contested,
		LastUpdate:     ts.lastUpdate,
		RecentComments: comments,
	}
}
