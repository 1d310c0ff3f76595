package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace for all metrics
const namespace = "badgewatch"

// Collector provides a central place for all application metrics
type Collector struct {
	// Tailer metrics
	LinesRead    prometheus.Counter
	LinesSkipped prometheus.Counter
	Rotations    prometheus.Counter
	Truncations  prometheus.Counter

	// Extraction metrics
	CountsExtracted prometheus.Counter

	// Badge metrics
	BadgeEvents  *prometheus.CounterVec
	CurrentBadge prometheus.Gauge

	// Loop metrics
	PollCycles prometheus.Counter
	PollErrors *prometheus.CounterVec

	// Notification metrics
	NotifySent     *prometheus.CounterVec
	NotifyFailures *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{registry: registry}
	c.initTailerMetrics()
	c.initBadgeMetrics()
	c.initLoopMetrics()
	c.initNotifyMetrics()

	return c
}

func (c *Collector) initTailerMetrics() {
	c.LinesRead = promauto.With(c.registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tailer",
		Name:      "lines_read_total",
		Help:      "Total number of complete lines read from the log file",
	})

	c.LinesSkipped = promauto.With(c.registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tailer",
		Name:      "lines_skipped_total",
		Help:      "Total number of undecodable lines skipped",
	})

	c.Rotations = promauto.With(c.registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tailer",
		Name:      "rotations_total",
		Help:      "Total number of log file rotations detected",
	})

	c.Truncations = promauto.With(c.registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tailer",
		Name:      "truncations_total",
		Help:      "Total number of log file truncations detected",
	})
}

func (c *Collector) initBadgeMetrics() {
	c.CountsExtracted = promauto.With(c.registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "badge",
		Name:      "counts_extracted_total",
		Help:      "Total number of badge counts extracted from log lines",
	})

	c.BadgeEvents = promauto.With(c.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "badge",
		Name:      "events_total",
		Help:      "Total badge transitions by kind",
	}, []string{"event"})

	c.CurrentBadge = promauto.With(c.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "badge",
		Name:      "current_count",
		Help:      "Most recently observed badge count",
	})
}

func (c *Collector) initLoopMetrics() {
	c.PollCycles = promauto.With(c.registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "watch",
		Name:      "poll_cycles_total",
		Help:      "Total number of completed poll cycles",
	})

	c.PollErrors = promauto.With(c.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "watch",
		Name:      "poll_errors_total",
		Help:      "Total recoverable poll failures by reason",
	}, []string{"reason"})
}

func (c *Collector) initNotifyMetrics() {
	c.NotifySent = promauto.With(c.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notify",
		Name:      "sent_total",
		Help:      "Total notifications delivered by backend",
	}, []string{"notifier"})

	c.NotifyFailures = promauto.With(c.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notify",
		Name:      "failures_total",
		Help:      "Total notification delivery failures by backend",
	}, []string{"notifier"})
}

// Handler returns the HTTP handler exposing the registry
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
