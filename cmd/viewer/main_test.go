package main

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowstate/internal/domain"
	"flowstate/internal/engine"
	"flowstate/pkg/logger"
)

func newViewerModel(t *testing.T) model {
	t.Helper()

	eng := engine.New(engine.DefaultConfig(), logger.Get())
	t.Cleanup(eng.Close)

	env := domain.Envelope{
		Kind: domain.EventKindMessage,
		Message: &domain.MessageEvent{
			Topic:     "NVDA",
			Sentiment: domain.SentimentBullish,
			Text:      "NVDA breaking out",
		},
	}
	require.NoError(t, eng.HandleEvent(env))

	return model{eng: eng}
}

func TestModel_TickRefreshesSnapshot(t *testing.T) {
	m := newViewerModel(t)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(model)

	next, cmd := m.Update(tickMsg(time.Now()))
	m = next.(model)
	require.NotNil(t, cmd, "tick reschedules itself")

	require.Len(t, m.snap.Topics, 1)
	assert.Equal(t, "NVDA", m.snap.Topics[0].Symbol)

	view := m.View()
	assert.Contains(t, view, "Topics")
	assert.Contains(t, view, "msg/s")
}

func TestModel_PauseFreezesSnapshot(t *testing.T) {
	m := newViewerModel(t)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	m = next.(model)
	require.True(t, m.paused)

	next, _ = m.Update(tickMsg(time.Now()))
	m = next.(model)
	assert.Empty(t, m.snap.Topics, "paused viewer keeps the stale snapshot")
}

func TestModel_QuitKeys(t *testing.T) {
	m := newViewerModel(t)

	for _, key := range []string{"q", "ctrl+c"} {
		var msg tea.KeyMsg
		if key == "q" {
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}
		} else {
			msg = tea.KeyMsg{Type: tea.KeyCtrlC}
		}
		_, cmd := m.Update(msg)
		require.NotNil(t, cmd, "key %q quits", key)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	}
}

func TestModel_SmallTerminal(t *testing.T) {
	m := newViewerModel(t)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 30, Height: 8})
	m = next.(model)
	assert.Equal(t, "terminal too small", m.View())
}
