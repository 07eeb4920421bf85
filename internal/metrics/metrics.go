// Package metrics owns the Prometheus registry for the server: HTTP traffic,
// content lifecycle, and Open Graph rendering.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/opengraph"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/version"
)

type ServerMetrics struct {
	reg     *prometheus.Registry
	handler http.Handler

	// http
	inflight    prometheus.Gauge
	reqTotal    *prometheus.CounterVec
	reqDur      *prometheus.HistogramVec
	respBytes   *prometheus.HistogramVec
	errorsTotal *prometheus.CounterVec
	panicsTotal prometheus.Counter
	rlDenied    prometheus.Counter
	rlCapacity  prometheus.Counter

	// process
	buildInfo       *prometheus.GaugeVec
	profilingActive prometheus.Gauge

	// content
	contentSource   *prometheus.GaugeVec
	contentLoadedAt prometheus.Gauge
	contentDocument *prometheus.GaugeVec
	contentObjects  *prometheus.GaugeVec

	// watcher
	watcherPolls       prometheus.Counter
	watcherSwaps       prometheus.Counter
	watcherErrors      *prometheus.CounterVec
	documentLoadDur    prometheus.Histogram
	watcherLastSuccess prometheus.Gauge
	watcherStale       prometheus.Gauge

	// opengraph
	renders   *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
}

// New builds an isolated registry. Labels are bounded: method, chi route
// pattern, status, page kind and field names.
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &ServerMetrics{
		reg: reg,

		inflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),
		respBytes: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		}, []string{"method", "route"}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx responses by method and route",
		}, []string{"method", "route"}),
		panicsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered handler panics",
		}),
		rlDenied: f.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Total requests rejected by the per-ip rate limiter",
		}),
		rlCapacity: f.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_capacity_total",
			Help: "Total requests rejected because the rate limiter was tracking too many visitors",
		}),

		buildInfo: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "commit_date", "build_id", "build_date", "vcs_dirty", "go_version"}),
		profilingActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether continuous profiling is active (1) or disabled (0)",
		}),

		contentSource: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "content_source_info",
			Help: "Active content source (label carries value, gauge is always 1)",
		}, []string{"source"}),
		contentLoadedAt: f.NewGauge(prometheus.GaugeOpts{
			Name: "content_loaded_timestamp_seconds",
			Help: "Unix timestamp of when the active content was loaded",
		}),
		contentDocument: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "content_document_info",
			Help: "Active content document (labels carry identity, value is always 1)",
		}, []string{"sha256", "version"}),
		contentObjects: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "content_objects",
			Help: "Objects in the active content by type",
		}, []string{"type"}),

		watcherPolls: f.NewCounter(prometheus.CounterOpts{
			Name: "content_watcher_polls_total",
			Help: "Total number of watcher poll cycles",
		}),
		watcherSwaps: f.NewCounter(prometheus.CounterOpts{
			Name: "content_watcher_swaps_total",
			Help: "Total number of content document swaps",
		}),
		watcherErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "content_watcher_errors_total",
			Help: "Total watcher errors by type",
		}, []string{"type"}),
		documentLoadDur: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "content_document_load_duration_seconds",
			Help:    "Time to download, verify and index a content document",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		watcherLastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "content_watcher_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful SSM poll",
		}),
		watcherStale: f.NewGauge(prometheus.GaugeOpts{
			Name: "content_watcher_stale",
			Help: "Whether the content watcher is stale (1) or healthy (0)",
		}),

		renders: f.NewCounterVec(prometheus.CounterOpts{
			Name: "opengraph_renders_total",
			Help: "Total Open Graph blocks rendered by resolved page kind",
		}, []string{"kind"}),
		fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "opengraph_fallbacks_total",
			Help: "Total site-wide fallbacks applied by field",
		}, []string{"field"}),
	}

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
	return m
}

func (m *ServerMetrics) Handler() http.Handler { return m.handler }

func boolGauge(g prometheus.Gauge, v bool) {
	if v {
		g.Set(1)
		return
	}
	g.Set(0)
}

// SetBuildInfoFromVersion is called once at startup.
func (m *ServerMetrics) SetBuildInfoFromVersion(app, component string, vi version.Info) {
	m.buildInfo.With(prometheus.Labels{
		"app":         app,
		"component":   component,
		"version":     vi.Version,
		"commit":      vi.Commit,
		"commit_date": vi.CommitDate,
		"build_id":    vi.BuildId,
		"build_date":  vi.BuildDate,
		"go_version":  vi.GoVersion,
		"vcs_dirty":   vi.Dirty(),
	}).Set(1)
}

func (m *ServerMetrics) SetProfilingActive(active bool) { boolGauge(m.profilingActive, active) }

func (m *ServerMetrics) IncHttpPanic()         { m.panicsTotal.Inc() }
func (m *ServerMetrics) IncRateLimitDenied()   { m.rlDenied.Inc() }
func (m *ServerMetrics) IncRateLimitCapacity() { m.rlCapacity.Inc() }

// content

func (m *ServerMetrics) SetContentSource(source string) {
	m.contentSource.Reset()
	m.contentSource.WithLabelValues(source).Set(1)
}

func (m *ServerMetrics) SetContentLoadedTimestamp(t time.Time) {
	m.contentLoadedAt.Set(float64(t.Unix()))
}

func (m *ServerMetrics) SetContentDocument(sha256, version string) {
	m.contentDocument.Reset()
	m.contentDocument.WithLabelValues(sha256, version).Set(1)
}

func (m *ServerMetrics) SetContentCounts(posts, members, groups int) {
	m.contentObjects.WithLabelValues("post").Set(float64(posts))
	m.contentObjects.WithLabelValues("member").Set(float64(members))
	m.contentObjects.WithLabelValues("group").Set(float64(groups))
}

// opengraph.Observer

func (m *ServerMetrics) ObserveRender(kind opengraph.Kind) {
	m.renders.WithLabelValues(kind.String()).Inc()
}

func (m *ServerMetrics) ObserveFallback(field string) {
	m.fallbacks.WithLabelValues(field).Inc()
}

// content.WatcherMetrics

func (m *ServerMetrics) IncWatcherPolls() { m.watcherPolls.Inc() }
func (m *ServerMetrics) IncWatcherSwaps() { m.watcherSwaps.Inc() }
func (m *ServerMetrics) IncWatcherError(errType string) {
	m.watcherErrors.WithLabelValues(errType).Inc()
}
func (m *ServerMetrics) ObserveDocumentLoadDuration(s float64) { m.documentLoadDur.Observe(s) }
func (m *ServerMetrics) SetWatcherLastSuccess(unixSeconds float64) {
	m.watcherLastSuccess.Set(unixSeconds)
}
func (m *ServerMetrics) SetWatcherStale(stale bool) { boolGauge(m.watcherStale, stale) }
