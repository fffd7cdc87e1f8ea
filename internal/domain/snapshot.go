package domain

import "time"

// VelocityBand classifies the smoothed chat rate for display
type VelocityBand string

const (
	BandQuiet  VelocityBand = "quiet"
	BandActive VelocityBand = "active"
	BandBusy   VelocityBand = "busy"
	BandHype   VelocityBand = "hype"
)

// Comment is one retained (text, sentiment) pair on a topic
type Comment struct {
	Text      string    `json:"text"`
	Sentiment Sentiment `json:"sentiment"`
}

// SentimentTally counts classified mentions per direction. Each bucket is
// monotonically non-decreasing within a session.
type SentimentTally struct {
	Bullish int `json:"bullish"`
	Bearish int `json:"bearish"`
	Neutral int `json:"neutral"`
}

// Directional returns the bullish+bearish total
func (t SentimentTally) Directional() int {
	return t.Bullish + t.Bearish
}

// TopicSummary is one entry of the ranked topic list read by renderers
type TopicSummary struct {
	Symbol         string         `json:"symbol"`
	Count          int            `json:"count"`
	Sentiment      SentimentTally `json:"sentiment"`
	SentimentRatio float64        `json:"sentimentRatio"`
	Dominant       Sentiment      `json:"dominant"`
	Contested      bool           `json:"contested"`
	LastUpdate     time.Time      `json:"lastUpdate"`
	RecentComments []Comment      `json:"recentComments"`
}

// QuestionSummary is one live (non-expired) question entry
type QuestionSummary struct {
	Key    string    `json:"key"`
	Topic  string    `json:"topic,omitempty"`
	Text   string    `json:"text"`
	Author string    `json:"author,omitempty"`
	Count  int       `json:"count"`
	Time   time.Time `json:"time"`
}

// PulseSummary is one immutable pulse log entry, newest first
type PulseSummary struct {
	Summary   string    `json:"summary"`
	Mood      string    `json:"mood"`
	TopTicker string    `json:"topTicker,omitempty"`
	Time      time.Time `json:"time"`
}

// ReleasedVibe is a vibe item after the pacer has dripped it out
type ReleasedVibe struct {
	Text       string    `json:"text"`
	Kind       VibeKind  `json:"vibeKind"`
	ReleasedAt time.Time `json:"releasedAt"`
}

// BubbleSnapshot is the per-topic physics state read once per frame
type BubbleSnapshot struct {
	Symbol string  `json:"symbol"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// Snapshot is the complete outbound read contract, polled by renderers
type Snapshot struct {
	Time      time.Time         `json:"time"`
	Topics    []TopicSummary    `json:"topics"`
	Bubbles   []BubbleSnapshot  `json:"bubbles"`
	Questions []QuestionSummary `json:"questions"`
	Pulses    []PulseSummary    `json:"pulses"`
	Vibes     []ReleasedVibe    `json:"vibes"`
	Rate      float64           `json:"rate"`
	Band      VelocityBand      `json:"band"`
}
