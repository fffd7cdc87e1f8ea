package feed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"flowstate/internal/domain"
	"flowstate/pkg/logger"
)

// SyntheticConfig tunes the generated traffic shape
type SyntheticConfig struct {
	MessageInterval time.Duration // mean gap between chat lines
	VibeInterval    time.Duration // gap between vibe batches
	VibeBatchSize   int
	PulseInterval   time.Duration
	Topics          []string
	Seed            int64
}

// DefaultSyntheticConfig mimics a moderately busy stream
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		MessageInterval: 400 * time.Millisecond,
		VibeInterval:    30 * time.Second,
		VibeBatchSize:   4,
		PulseInterval:   2 * time.Minute,
		Topics:          []string{"AAPL", "TSLA", "NVDA", "SPY", "GME", "AMD", "PLTR"},
	}
}

// Synthetic generates a plausible event stream without any upstream
// connection. Used by the demo viewer and for load-testing the engine.
type Synthetic struct {
	cfg     SyntheticConfig
	handler Handler
	log     *logger.Logger
	rng     *rand.Rand
	authors []string
}

// NewSynthetic creates a generator feeding the given handler
func NewSynthetic(cfg SyntheticConfig, handler Handler, log *logger.Logger) *Synthetic {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	rng := rand.New(rand.NewSource(seed))
	authors := make([]string, 40)
	for i := range authors {
		authors[i] = "user-" + uuid.NewString()[:8]
	}

	return &Synthetic{
		cfg:     cfg,
		handler: handler,
		log:     log.With("component", "synthetic_feed"),
		rng:     rng,
		authors: authors,
	}
}

// Run emits events until the context ends
func (s *Synthetic) Run(ctx context.Context) error {
	s.log.Info("Synthetic feed starting",
		"message_interval", s.cfg.MessageInterval,
		"topics", len(s.cfg.Topics),
	)

	msgTicker := time.NewTicker(s.cfg.MessageInterval)
	vibeTicker := time.NewTicker(s.cfg.VibeInterval)
	pulseTicker := time.NewTicker(s.cfg.PulseInterval)
	defer msgTicker.Stop()
	defer vibeTicker.Stop()
	defer pulseTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Synthetic feed stopped")
			return ctx.Err()
		case <-msgTicker.C:
			s.emit(s.message())
		case <-vibeTicker.C:
			for i := 0; i < s.cfg.VibeBatchSize; i++ {
				s.emit(s.vibe())
			}
		case <-pulseTicker.C:
			s.emit(s.pulse())
		}
	}
}

func (s *Synthetic) emit(env domain.Envelope) {
	if err := s.handler(env); err != nil {
		s.log.Debug("Synthetic event rejected", "kind", env.Kind, "error", err)
	}
}

var chatTemplates = []string{
	"%s looking strong today",
	"anyone else watching %s",
	"%s about to break out",
	"just sold all my %s",
	"%s to the moon",
	"%s earnings gonna be rough",
}

var questionTemplates = []string{
	"is %s a buy here?",
	"what's the deal with %s today?",
	"should I hold %s over the weekend?",
}

var vibeLines = []string{
	"this chat is wild today lol",
	"love this community, you all are great",
	"lmaooo did he really just say that",
	"we are so back",
}

func (s *Synthetic) message() domain.Envelope {
	topic := ""
	// Zipf-flavored pick: low indices dominate so rankings stay stable
	if s.rng.Float64() < 0.7 {
		idx := int(float64(len(s.cfg.Topics)) * s.rng.Float64() * s.rng.Float64())
		topic = s.cfg.Topics[idx]
	}

	isQuestion := topic != "" && s.rng.Float64() < 0.15

	var text string
	if isQuestion {
		text = fmt.Sprintf(questionTemplates[s.rng.Intn(len(questionTemplates))], topic)
	} else if topic != "" {
		text = fmt.Sprintf(chatTemplates[s.rng.Intn(len(chatTemplates))], topic)
	} else {
		text = vibeLines[s.rng.Intn(len(vibeLines))]
	}

	sentiments := []domain.Sentiment{
		domain.SentimentBullish, domain.SentimentBullish,
		domain.SentimentBearish, domain.SentimentNeutral,
	}

	return domain.Envelope{
		Kind: domain.EventKindMessage,
		Time: time.Now(),
		Message: &domain.MessageEvent{
			Topic:      topic,
			Sentiment:  sentiments[s.rng.Intn(len(sentiments))],
			Text:       text,
			Author:     s.authors[s.rng.Intn(len(s.authors))],
			IsQuestion: isQuestion,
		},
	}
}

func (s *Synthetic) vibe() domain.Envelope {
	kind := domain.VibeFunny
	if s.rng.Float64() < 0.4 {
		kind = domain.VibeUplifting
	}
	return domain.Envelope{
		Kind: domain.EventKindVibe,
		Time: time.Now(),
		Vibe: &domain.VibeEvent{Kind: kind, Text: vibeLines[s.rng.Intn(len(vibeLines))]},
	}
}

func (s *Synthetic) pulse() domain.Envelope {
	moods := []string{"🟢", "🔴", "🟡", "⚪"}
	top := s.cfg.Topics[s.rng.Intn(len(s.cfg.Topics))]
	return domain.Envelope{
		Kind: domain.EventKindPulse,
		Time: time.Now(),
		Pulse: &domain.PulseEvent{
			Summary:   fmt.Sprintf("Chat buzzing about %s, sentiment mixed", top),
			Mood:      moods[s.rng.Intn(len(moods))],
			TopTicker: top,
		},
	}
}
