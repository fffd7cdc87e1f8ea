package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"flowstate/pkg/errors"
)

type Config struct {
	App           AppConfig
	Engine        EngineConfig
	Pacer         PacerConfig
	Sim           SimConfig
	Feed          FeedConfig
	Server        ServerConfig
	Workers       WorkerConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"flowstate"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

// EngineConfig tunes the aggregation core: collection caps, TTLs and the
// velocity estimator window
type EngineConfig struct {
	MaxBubbles        int           `envconfig:"ENGINE_MAX_BUBBLES" default:"24"`
	RecentComments    int           `envconfig:"ENGINE_RECENT_COMMENTS" default:"5"`
	QuestionTTL       time.Duration `envconfig:"ENGINE_QUESTION_TTL" default:"30s"`
	QuestionCap       int           `envconfig:"ENGINE_QUESTION_CAP" default:"12"`
	QuestionKeyLength int           `envconfig:"ENGINE_QUESTION_KEY_LENGTH" default:"30"`
	PulseCap          int           `envconfig:"ENGINE_PULSE_CAP" default:"7"`
	VelocityWindow    time.Duration `envconfig:"ENGINE_VELOCITY_WINDOW" default:"5s"`
	FrameInterval     time.Duration `envconfig:"ENGINE_FRAME_INTERVAL" default:"16ms"`
}

// PacerConfig tunes the adaptive vibe drip scheduler
type PacerConfig struct {
	InitialBatchInterval time.Duration `envconfig:"PACER_INITIAL_BATCH_INTERVAL" default:"30s"`
	FreshSampleWeight    float64       `envconfig:"PACER_FRESH_SAMPLE_WEIGHT" default:"0.7"`
	MinBatchGap          time.Duration `envconfig:"PACER_MIN_BATCH_GAP" default:"5s"`
	MinDelay             time.Duration `envconfig:"PACER_MIN_DELAY" default:"300ms"`
	MaxDelay             time.Duration `envconfig:"PACER_MAX_DELAY" default:"5s"`
	ReleasedCap          int           `envconfig:"PACER_RELEASED_CAP" default:"16"`
}

// SimConfig tunes the force-directed bubble layout
type SimConfig struct {
	Width     float64 `envconfig:"SIM_WIDTH" default:"1000"`
	Height    float64 `envconfig:"SIM_HEIGHT" default:"600"`
	MinRadius float64 `envconfig:"SIM_MIN_RADIUS" default:"24"`
	MaxRadius float64 `envconfig:"SIM_MAX_RADIUS" default:"80"`
	SqrtScale bool    `envconfig:"SIM_SQRT_SCALE" default:"false"`
	Seed      int64   `envconfig:"SIM_SEED" default:"0"`
}

type FeedConfig struct {
	Enabled     bool          `envconfig:"FEED_ENABLED" default:"true"`
	URL         string        `envconfig:"FEED_URL" default:"ws://localhost:8765"`
	StreamID    string        `envconfig:"FEED_STREAM_ID"`
	DialTimeout time.Duration `envconfig:"FEED_DIAL_TIMEOUT" default:"10s"`

	ReconnectMinBackoff  time.Duration `envconfig:"FEED_RECONNECT_MIN_BACKOFF" default:"1s"`
	ReconnectMaxBackoff  time.Duration `envconfig:"FEED_RECONNECT_MAX_BACKOFF" default:"2m"`
	ReconnectMaxFailures int           `envconfig:"FEED_RECONNECT_MAX_FAILURES" default:"10"`
	StaleAfter           time.Duration `envconfig:"FEED_STALE_AFTER" default:"90s"`
	BreakerResetAfter    time.Duration `envconfig:"FEED_BREAKER_RESET_AFTER" default:"3m"`
}

type ServerConfig struct {
	Port             int           `envconfig:"SERVER_PORT" default:"8080"`
	SnapshotInterval time.Duration `envconfig:"SERVER_SNAPSHOT_INTERVAL" default:"100ms"`
	BroadcastPerSec  float64       `envconfig:"SERVER_BROADCAST_PER_SEC" default:"20"`
}

// WorkerConfig contains intervals for background workers
// The sweep interval must stay below the question TTL so stale entries
// disappear within one TTL window
type WorkerConfig struct {
	QuestionSweepInterval time.Duration `envconfig:"WORKER_QUESTION_SWEEP_INTERVAL" default:"5s"`
	MetricsInterval       time.Duration `envconfig:"WORKER_METRICS_INTERVAL" default:"1s"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables, loading .env first
// when present (local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "process environment config")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Engine.MaxBubbles <= 0 {
		return errors.NewValidationError("ENGINE_MAX_BUBBLES", "must be positive", c.Engine.MaxBubbles)
	}
	if c.Pacer.MinDelay > c.Pacer.MaxDelay {
		return errors.NewValidationError("PACER_MIN_DELAY",
			fmt.Sprintf("must not exceed max delay %s", c.Pacer.MaxDelay), c.Pacer.MinDelay)
	}
	if c.Workers.QuestionSweepInterval >= c.Engine.QuestionTTL {
		return errors.NewValidationError("WORKER_QUESTION_SWEEP_INTERVAL",
			fmt.Sprintf("must be shorter than question TTL %s", c.Engine.QuestionTTL),
			c.Workers.QuestionSweepInterval)
	}
	if c.Pacer.FreshSampleWeight <= 0 || c.Pacer.FreshSampleWeight > 1 {
		return errors.NewValidationError("PACER_FRESH_SAMPLE_WEIGHT", "must be in (0,1]", c.Pacer.FreshSampleWeight)
	}
	if c.Feed.ReconnectMinBackoff > c.Feed.ReconnectMaxBackoff {
		return errors.NewValidationError("FEED_RECONNECT_MIN_BACKOFF",
			fmt.Sprintf("must not exceed max backoff %s", c.Feed.ReconnectMaxBackoff),
			c.Feed.ReconnectMinBackoff)
	}
	return nil
}
