package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowstate/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "flowstate", cfg.App.Name)
	assert.Equal(t, 24, cfg.Engine.MaxBubbles)
	assert.Equal(t, 30*time.Second, cfg.Engine.QuestionTTL)

	assert.Equal(t, time.Second, cfg.Feed.ReconnectMinBackoff)
	assert.Equal(t, 2*time.Minute, cfg.Feed.ReconnectMaxBackoff)
	assert.Equal(t, 10, cfg.Feed.ReconnectMaxFailures)
	assert.Equal(t, 90*time.Second, cfg.Feed.StaleAfter)
	assert.Equal(t, 3*time.Minute, cfg.Feed.BreakerResetAfter)
}

func TestLoad_ReconnectOverrides(t *testing.T) {
	t.Setenv("FEED_RECONNECT_MIN_BACKOFF", "250ms")
	t.Setenv("FEED_RECONNECT_MAX_FAILURES", "3")
	t.Setenv("FEED_BREAKER_RESET_AFTER", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Feed.ReconnectMinBackoff)
	assert.Equal(t, 3, cfg.Feed.ReconnectMaxFailures)
	assert.Equal(t, 30*time.Second, cfg.Feed.BreakerResetAfter)
}

func TestLoad_RejectsInvertedBackoff(t *testing.T) {
	t.Setenv("FEED_RECONNECT_MIN_BACKOFF", "5m")
	t.Setenv("FEED_RECONNECT_MAX_BACKOFF", "10s")

	_, err := Load()
	require.Error(t, err)

	var vErr *errors.ValidationError
	assert.True(t, errors.As(err, &vErr))
	assert.Equal(t, "FEED_RECONNECT_MIN_BACKOFF", vErr.Field)
}

func TestLoad_RejectsSweepSlowerThanTTL(t *testing.T) {
	t.Setenv("WORKER_QUESTION_SWEEP_INTERVAL", "1m")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidEvent)
}
