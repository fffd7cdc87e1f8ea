package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flowstate/internal/domain"
	"flowstate/pkg/logger"
	"flowstate/pkg/reconnect"
)

func testLogger() *logger.Logger {
	zapLog, _ := zap.NewDevelopment()
	return &logger.Logger{SugaredLogger: zapLog.Sugar()}
}

// fakeBackend upgrades one connection, records the subscribe frame and
// plays back canned frames
type fakeBackend struct {
	t      *testing.T
	frames []string

	mu         sync.Mutex
	subscribed string
}

func (b *fakeBackend) handler(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	require.NoError(b.t, err)
	defer conn.Close()

	var sub struct {
		Type    string `json:"type"`
		VideoID string `json:"videoId"`
	}
	require.NoError(b.t, conn.ReadJSON(&sub))
	b.mu.Lock()
	b.subscribed = sub.VideoID
	b.mu.Unlock()

	require.NoError(b.t, conn.WriteJSON(map[string]string{"type": "subscribed", "videoId": sub.VideoID}))
	for _, f := range b.frames {
		require.NoError(b.t, conn.WriteMessage(websocket.TextMessage, []byte(f)))
	}

	// Hold the connection open until the client goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestClient_SubscribesAndDeliversEvents(t *testing.T) {
	backend := &fakeBackend{
		t: t,
		frames: []string{
			`{"type":"connected","message":"hi"}`,
			`{"type":"message","data":{"text":"NVDA up big","topic":"NVDA","sentiment":"bullish"}}`,
			`{"type":"vibe","data":{"text":"lol","vibe":"funny"}}`,
			`{"type":"this-is-not-a-frame"}`,
			`{"type":"pulse","data":{"summary":"busy chat","mood":"🟢"}}`,
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(backend.handler))
	defer srv.Close()

	var mu sync.Mutex
	var got []domain.EventKind
	done := make(chan struct{})

	handler := func(env domain.Envelope) error {
		mu.Lock()
		got = append(got, env.Kind)
		if len(got) == 3 {
			close(done)
		}
		mu.Unlock()
		return nil
	}

	cfg := Config{
		URL:      "ws" + strings.TrimPrefix(srv.URL, "http"),
		StreamID: "stream-1",
		Reconnect: reconnect.Config{
			MinBackoff: time.Millisecond,
		},
	}
	c := NewClient(cfg, handler, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- c.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("events did not arrive")
	}

	mu.Lock()
	assert.Equal(t, []domain.EventKind{
		domain.EventKindMessage, domain.EventKindVibe, domain.EventKindPulse,
	}, got, "control and broken frames skipped, events in order")
	mu.Unlock()

	backend.mu.Lock()
	assert.Equal(t, "stream-1", backend.subscribed)
	backend.mu.Unlock()

	cancel()
	select {
	case err := <-runDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestClient_GivesUpWhenBreakerTrips(t *testing.T) {
	handler := func(domain.Envelope) error { return nil }
	cfg := Config{
		URL: "ws://127.0.0.1:1", // nothing listens here
		Reconnect: reconnect.Config{
			MinBackoff:  time.Millisecond,
			MaxBackoff:  2 * time.Millisecond,
			MaxFailures: 2,
		},
	}
	c := NewClient(cfg, handler, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := c.Run(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, context.DeadlineExceeded, "breaker should trip before the deadline")
	assert.False(t, c.IsConnected())
	assert.True(t, c.Stats().BreakerOpen)
}

func TestClient_FrameAccounting(t *testing.T) {
	c := NewClient(Config{URL: "ws://unused"}, func(domain.Envelope) error { return nil }, testLogger())

	c.dispatch([]byte(`{"type":"message","data":{"text":"ok"}}`))
	c.dispatch([]byte(`broken`))

	assert.Equal(t, int64(2), c.framesTotal.Load())
	assert.Equal(t, int64(1), c.framesBroken.Load())
}
