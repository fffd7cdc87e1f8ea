package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flowstate/internal/metrics"
	"flowstate/pkg/logger"
)

func testLogger() *logger.Logger {
	zapLog, _ := zap.NewDevelopment()
	return &logger.Logger{SugaredLogger: zapLog.Sugar()}
}

type fakeFeed struct{ connected bool }

func (f fakeFeed) IsConnected() bool { return f.connected }

type fakeEngine struct{}

func (fakeEngine) Stats() metrics.EngineStats {
	return metrics.EngineStats{TopicsTracked: 3, ChatVelocity: 1.2}
}

func TestHandleLiveness(t *testing.T) {
	h := New(testLogger(), nil, fakeEngine{}, "flowstate", "test")

	rec := httptest.NewRecorder()
	h.HandleLiveness(rec, httptest.NewRequest(http.MethodGet, "/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleReadiness(t *testing.T) {
	tests := []struct {
		name     string
		feed     FeedProbe
		wantCode int
	}{
		{"connected feed", fakeFeed{connected: true}, http.StatusOK},
		{"disconnected feed", fakeFeed{connected: false}, http.StatusServiceUnavailable},
		{"no feed configured", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(testLogger(), tt.feed, fakeEngine{}, "flowstate", "test")

			rec := httptest.NewRecorder()
			h.HandleReadiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestHandleHealth_Detail(t *testing.T) {
	h := New(testLogger(), fakeFeed{connected: true}, fakeEngine{}, "flowstate", "1.2.3")

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))

	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	assert.Contains(t, status.Checks["engine"].Detail, "3 topics")
	assert.Equal(t, "healthy", status.Checks["feed"].Status)
}
