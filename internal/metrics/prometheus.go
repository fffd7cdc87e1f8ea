package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Event pipeline metrics
	EventsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowstate_events_processed_total",
			Help: "Total number of ingested events",
		},
		[]string{"kind", "status"}, // status: applied|rejected
	)

	EventApplyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowstate_event_apply_duration_seconds",
			Help:    "Time spent applying one event to engine state",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		},
		[]string{"kind"},
	)

	ChatVelocity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowstate_chat_velocity_msgs_per_second",
			Help: "Current chat velocity over the sliding window",
		},
	)

	// Drip scheduler metrics
	VibeQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowstate_vibe_queue_depth",
			Help: "Vibe items waiting in the drip queue",
		},
	)

	VibesReleased = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flowstate_vibes_released_total",
			Help: "Total vibe items released by the drip scheduler",
		},
	)

	DripDelay = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flowstate_drip_delay_seconds",
			Help:    "Computed delay between consecutive vibe releases",
			Buckets: []float64{0.3, 0.5, 0.75, 1, 1.5, 2, 3, 4, 5},
		},
	)

	// Layout metrics
	VisibleBubbles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowstate_visible_bubbles",
			Help: "Bubbles currently in the layout simulation",
		},
	)

	FrameDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flowstate_frame_duration_seconds",
			Help:    "Wall time of one simulation frame",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.002, 0.005, 0.01, 0.016, 0.033},
		},
	)

	// Question metrics
	QuestionsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flowstate_questions_expired_total",
			Help: "Questions removed by TTL sweeps",
		},
	)

	// Feed metrics
	FeedReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowstate_feed_reconnects_total",
			Help: "Total number of upstream feed reconnect attempts",
		},
		[]string{"status"}, // status: success|failed
	)

	FeedFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowstate_feed_frames_total",
			Help: "Frames received from the upstream feed",
		},
		[]string{"type", "status"}, // status: decoded|invalid
	)

	// Viewer metrics
	ConnectedViewers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowstate_connected_viewers",
			Help: "Current number of WebSocket viewer connections",
		},
	)

	SnapshotsBroadcast = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flowstate_snapshots_broadcast_total",
			Help: "Snapshots pushed to viewers",
		},
	)

	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowstate_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowstate_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"worker"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flowstate_worker_last_run_timestamp",
			Help: "Unix timestamp of last worker execution",
		},
		[]string{"worker"},
	)
)

// Init registers all metrics with Prometheus
func Init() {
	prometheus.MustRegister(EventsProcessed)
	prometheus.MustRegister(EventApplyDuration)
	prometheus.MustRegister(ChatVelocity)

	prometheus.MustRegister(VibeQueueDepth)
	prometheus.MustRegister(VibesReleased)
	prometheus.MustRegister(DripDelay)

	prometheus.MustRegister(VisibleBubbles)
	prometheus.MustRegister(FrameDuration)

	prometheus.MustRegister(QuestionsExpired)

	prometheus.MustRegister(FeedReconnects)
	prometheus.MustRegister(FeedFrames)

	prometheus.MustRegister(ConnectedViewers)
	prometheus.MustRegister(SnapshotsBroadcast)

	prometheus.MustRegister(WorkerExecutions)
	prometheus.MustRegister(WorkerDuration)
	prometheus.MustRegister(WorkerLastRun)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordEvent records the outcome of one ingested event
func RecordEvent(kind string, duration time.Duration, err error) {
	status := "applied"
	if err != nil {
		status = "rejected"
	}

	EventsProcessed.WithLabelValues(kind, status).Inc()
	EventApplyDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}

// RecordRelease records one drip release and the delay until the next
func RecordRelease(nextDelay time.Duration) {
	VibesReleased.Inc()
	DripDelay.Observe(nextDelay.Seconds())
}
