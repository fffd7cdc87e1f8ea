package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"flowstate/pkg/logger"
)

// EngineStats is a point-in-time view of engine state, produced under the
// engine lock and read lock-free by the collector
type EngineStats struct {
	TopicsTracked   int
	VisibleBubbles  int
	ActiveQuestions int
	PulseEntries    int
	VibeQueueDepth  int
	VibesReleased   int
	ChatVelocity    float64
}

// StatsSource yields engine stats on demand
type StatsSource interface {
	Stats() EngineStats
}

// EngineCollector scrapes live engine state on each Prometheus pull instead
// of tracking it incrementally, so the numbers can never drift from reality
type EngineCollector struct {
	log    *logger.Logger
	source StatsSource

	topicsTracked   *prometheus.Desc
	activeQuestions *prometheus.Desc
	pulseEntries    *prometheus.Desc
	releasedVibes   *prometheus.Desc
}

// NewEngineCollector creates a collector over the given stats source
func NewEngineCollector(log *logger.Logger, source StatsSource) *EngineCollector {
	return &EngineCollector{
		log:    log,
		source: source,

		topicsTracked: prometheus.NewDesc(
			"flowstate_topics_tracked",
			"Total topics in the aggregate map, visible or not",
			nil, nil,
		),
		activeQuestions: prometheus.NewDesc(
			"flowstate_active_questions",
			"Live question entries not yet expired",
			nil, nil,
		),
		pulseEntries: prometheus.NewDesc(
			"flowstate_pulse_entries",
			"Pulse summaries currently retained",
			nil, nil,
		),
		releasedVibes: prometheus.NewDesc(
			"flowstate_released_vibes",
			"Vibe items in the visible released list",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *EngineCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.topicsTracked
	ch <- c.activeQuestions
	ch <- c.pulseEntries
	ch <- c.releasedVibes
}

// Collect implements prometheus.Collector
func (c *EngineCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()

	ch <- prometheus.MustNewConstMetric(c.topicsTracked, prometheus.GaugeValue, float64(stats.TopicsTracked))
	ch <- prometheus.MustNewConstMetric(c.activeQuestions, prometheus.GaugeValue, float64(stats.ActiveQuestions))
	ch <- prometheus.MustNewConstMetric(c.pulseEntries, prometheus.GaugeValue, float64(stats.PulseEntries))
	ch <- prometheus.MustNewConstMetric(c.releasedVibes, prometheus.GaugeValue, float64(stats.VibesReleased))
}

// RegisterEngineCollector registers the collector
func RegisterEngineCollector(collector *EngineCollector) {
	prometheus.MustRegister(collector)
}
