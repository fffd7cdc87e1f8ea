package feed

import (
	"encoding/json"
	"time"

	"flowstate/internal/domain"
	"flowstate/pkg/errors"
)

// frame is the upstream wire envelope: a type tag plus either an event
// payload or control fields
type frame struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	VideoID string          `json:"videoId,omitempty"`
}

// messagePayload mirrors the processed chat line the backend emits for both
// message and vibe frames
type messagePayload struct {
	Text       string `json:"text"`
	Author     string `json:"author"`
	Timestamp  string `json:"timestamp"`
	Topic      string `json:"topic"`
	Sentiment  string `json:"sentiment"`
	IsQuestion bool   `json:"isQuestion"`
	Vibe       string `json:"vibe"`
}

type pulsePayload struct {
	Summary   string `json:"summary"`
	Mood      string `json:"mood"`
	TopTicker string `json:"top_ticker"`
}

// Control is a non-event frame: connection lifecycle and subscription acks
type Control struct {
	Type     string
	Message  string
	StreamID string
}

const (
	frameConnected    = "connected"
	frameSubscribed   = "subscribed"
	frameUnsubscribed = "unsubscribed"
	frameError        = "error"
	frameMessage      = "message"
	frameVibe         = "vibe"
	framePulse        = "pulse"
)

// DecodeFrame parses one wire frame. Exactly one of the returns is non-nil
// on success: an event envelope for data frames, a Control for the rest.
func DecodeFrame(raw []byte) (*domain.Envelope, *Control, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, nil, errors.Wrap(err, "malformed feed frame")
	}

	switch f.Type {
	case frameMessage:
		env, err := decodeMessage(f.Data)
		return env, nil, err

	case frameVibe:
		env, err := decodeVibe(f.Data)
		return env, nil, err

	case framePulse:
		env, err := decodePulse(f.Data)
		return env, nil, err

	case frameConnected, frameSubscribed, frameUnsubscribed, frameError:
		return nil, &Control{Type: f.Type, Message: f.Message, StreamID: f.VideoID}, nil

	default:
		return nil, nil, errors.Wrapf(errors.ErrUnknownEventKind, "frame type %q", f.Type)
	}
}

func decodeMessage(data json.RawMessage) (*domain.Envelope, error) {
	var p messagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, "malformed message payload")
	}

	env := &domain.Envelope{
		Kind: domain.EventKindMessage,
		Time: parseTimestamp(p.Timestamp),
		Message: &domain.MessageEvent{
			Topic:      p.Topic,
			Sentiment:  domain.ParseSentiment(p.Sentiment),
			Text:       p.Text,
			Author:     p.Author,
			IsQuestion: p.IsQuestion,
		},
	}
	return env, env.Validate()
}

// decodeVibe handles vibe frames, which carry the full classified message
// with the vibe label filled in
func decodeVibe(data json.RawMessage) (*domain.Envelope, error) {
	var p messagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, "malformed vibe payload")
	}

	kind, err := domain.ParseVibeKind(p.Vibe)
	if err != nil {
		return nil, err
	}

	env := &domain.Envelope{
		Kind: domain.EventKindVibe,
		Time: parseTimestamp(p.Timestamp),
		Vibe: &domain.VibeEvent{Kind: kind, Text: p.Text},
	}
	return env, env.Validate()
}

func decodePulse(data json.RawMessage) (*domain.Envelope, error) {
	var p pulsePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, "malformed pulse payload")
	}

	env := &domain.Envelope{
		Kind:  domain.EventKindPulse,
		Pulse: &domain.PulseEvent{Summary: p.Summary, Mood: p.Mood, TopTicker: p.TopTicker},
	}
	return env, env.Validate()
}

// parseTimestamp accepts the backend's ISO timestamps; a missing or broken
// timestamp falls back to zero and the engine stamps arrival time instead
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
