package output

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xoelrdgz/ransomradar/internal/domain"
)

// MetricsSources are read on every scrape. Nil functions report zero.
type MetricsSources struct {
	Counters     func() domain.CountersSnapshot
	QueueLength  func() int
	Dropped      func() int64
	BreakerState func() float64
}

type PrometheusMetrics struct {
	registry       *prometheus.Registry
	eventsTotal    *prometheus.CounterVec
	scanDuration   *prometheus.HistogramVec
	cpuPercent     prometheus.Gauge
	filesObserved  prometheus.Gauge
	samplesTotal   prometheus.Counter
	detections     *prometheus.GaugeVec
	queueLength    prometheus.GaugeFunc
	droppedEvents  prometheus.CounterFunc
	breakerState   prometheus.GaugeFunc
	memoryUsage    prometheus.GaugeFunc
	lastSampleUnix prometheus.Gauge
	sources        MetricsSources
}

// NewPrometheusMetrics registers the collectors on a private registry so
// several instances (tests, restarts) never collide on the default one.
func NewPrometheusMetrics(namespace string, sources MetricsSources) *PrometheusMetrics {
	if namespace == "" {
		namespace = "ransomradar"
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	m := &PrometheusMetrics{registry: reg, sources: sources}

	m.eventsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Detection events delivered, by channel and level",
	}, []string{"channel", "level"})

	m.scanDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "scan_duration_seconds",
		Help:      "Time spent matching one file against the rule",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"outcome"})

	m.cpuPercent = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cpu_percent",
		Help:      "Host CPU utilization from the last sample",
	})

	m.filesObserved = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "monitored_files",
		Help:      "Regular files found under the monitored trees on the last sample",
	})

	m.samplesTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "samples_total",
		Help:      "Resource samples taken by the monitor loop",
	})

	m.lastSampleUnix = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_sample_timestamp_seconds",
		Help:      "Unix time of the last resource sample",
	})

	m.detections = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "detections",
		Help:      "Current detection counter per channel (reset by clear)",
	}, []string{"channel"})

	m.queueLength = factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "dispatch_queue_length",
		Help:      "Events waiting in the dispatcher queue",
	}, func() float64 {
		if sources.QueueLength != nil {
			return float64(sources.QueueLength())
		}
		return 0
	})

	m.droppedEvents = factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dispatch_dropped_total",
		Help:      "Events dropped because the dispatcher queue was full",
	}, func() float64 {
		if sources.Dropped != nil {
			return float64(sources.Dropped())
		}
		return 0
	})

	m.breakerState = factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "scanner_breaker_state",
		Help:      "Signature scanner circuit breaker state (0 closed, 1 half-open, 2 open)",
	}, func() float64 {
		if sources.BreakerState != nil {
			return sources.BreakerState()
		}
		return 0
	})

	m.memoryUsage = factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "memory_bytes",
		Help:      "Current memory usage in bytes",
	}, func() float64 {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		return float64(ms.Alloc)
	})

	return m
}

// OnEvent implements ports.EventSubscriber.
func (m *PrometheusMetrics) OnEvent(event *domain.Event) {
	m.eventsTotal.WithLabelValues(string(event.Channel), string(event.Level)).Inc()
	m.refreshDetections()
}

// ObserveSample implements ports.SampleObserver.
func (m *PrometheusMetrics) ObserveSample(snapshot domain.SampleSnapshot) {
	m.cpuPercent.Set(snapshot.CPUPercent)
	m.filesObserved.Set(float64(snapshot.FileCount))
	m.samplesTotal.Inc()
	m.lastSampleUnix.Set(float64(snapshot.Timestamp.Unix()))
	m.refreshDetections()
}

// ObserveScan implements ports.ScanObserver.
func (m *PrometheusMetrics) ObserveScan(duration time.Duration, matched bool, err error) {
	outcome := "clean"
	switch {
	case err != nil:
		outcome = "error"
	case matched:
		outcome = "match"
	}
	m.scanDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) refreshDetections() {
	if m.sources.Counters == nil {
		return
	}
	snap := m.sources.Counters()
	for _, ch := range domain.Channels() {
		m.detections.WithLabelValues(string(ch)).Set(float64(snap.Get(ch)))
	}
}

// Registry exposes the private registry, mainly for tests.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format. The
// per-channel detection gauges are refreshed before every scrape so a clear
// shows up without waiting for the next event.
func (m *PrometheusMetrics) Handler() http.Handler {
	inner := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.refreshDetections()
		inner.ServeHTTP(w, r)
	})
}
