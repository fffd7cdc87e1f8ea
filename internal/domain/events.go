package domain

import (
	"time"

	"flowstate/pkg/errors"
)

// Sentiment is the classified direction of a topic mention
type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
)

// ParseSentiment normalizes a raw sentiment label. Unknown labels are
// treated as neutral rather than rejected.
func ParseSentiment(s string) Sentiment {
	switch Sentiment(s) {
	case SentimentBullish, SentimentBearish, SentimentNeutral:
		return Sentiment(s)
	default:
		return SentimentNeutral
	}
}

// VibeKind classifies a short-lived qualitative reaction
type VibeKind string

const (
	VibeFunny     VibeKind = "funny"
	VibeUplifting VibeKind = "uplifting"
)

// ParseVibeKind validates a raw vibe label against the closed enum
func ParseVibeKind(s string) (VibeKind, error) {
	switch VibeKind(s) {
	case VibeFunny, VibeUplifting:
		return VibeKind(s), nil
	default:
		return "", errors.NewValidationError("vibeKind", "unrecognized vibe kind", s)
	}
}

// EventKind tags the closed set of inbound event variants
type EventKind string

const (
	EventKindMessage EventKind = "message"
	EventKindVibe    EventKind = "vibe"
	EventKindPulse   EventKind = "pulse"
)

// MessageEvent is a classified chat line: an optional topic mention with
// sentiment, possibly flagged as a question
type MessageEvent struct {
	Topic      string    `json:"topic,omitempty"`
	Sentiment  Sentiment `json:"sentiment"`
	Text       string    `json:"text"`
	Author     string    `json:"author,omitempty"`
	IsQuestion bool      `json:"isQuestion"`
}

// Validate rejects semantically unusable message events
func (e MessageEvent) Validate() error {
	if e.Text == "" {
		return errors.NewValidationError("text", "message text is required", e.Text)
	}
	return nil
}

// VibeEvent is a short-lived reaction tag attached to a chat message
type VibeEvent struct {
	Kind VibeKind `json:"vibe"`
	Text string   `json:"text"`
}

// Validate rejects vibes without text or with an unrecognized kind
func (e VibeEvent) Validate() error {
	if e.Text == "" {
		return errors.NewValidationError("text", "vibe text is required", e.Text)
	}
	if _, err := ParseVibeKind(string(e.Kind)); err != nil {
		return err
	}
	return nil
}

// PulseEvent is a periodic AI summary of recent chat
type PulseEvent struct {
	Summary   string `json:"summary"`
	Mood      string `json:"mood"`
	TopTicker string `json:"top_ticker,omitempty"`
}

// Validate rejects pulses without a summary
func (e PulseEvent) Validate() error {
	if e.Summary == "" {
		return errors.NewValidationError("summary", "pulse summary is required", e.Summary)
	}
	return nil
}

// Envelope is the tagged union delivered by the upstream feed. Exactly one
// payload pointer matching Kind is set.
type Envelope struct {
	Kind    EventKind     `json:"kind"`
	Time    time.Time     `json:"time"`
	Message *MessageEvent `json:"message,omitempty"`
	Vibe    *VibeEvent    `json:"vibe,omitempty"`
	Pulse   *PulseEvent   `json:"pulse,omitempty"`
}

// Validate checks the kind tag and the matching payload
func (e Envelope) Validate() error {
	switch e.Kind {
	case EventKindMessage:
		if e.Message == nil {
			return errors.NewValidationError("message", "message payload is required", nil)
		}
		return e.Message.Validate()
	case EventKindVibe:
		if e.Vibe == nil {
			return errors.NewValidationError("vibe", "vibe payload is required", nil)
		}
		return e.Vibe.Validate()
	case EventKindPulse:
		if e.Pulse == nil {
			return errors.NewValidationError("pulse", "pulse payload is required", nil)
		}
		return e.Pulse.Validate()
	default:
		return errors.Wrapf(errors.ErrUnknownEventKind, "kind %q", string(e.Kind))
	}
}
