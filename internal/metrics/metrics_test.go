package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/opengraph"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/version"
)

func family(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	fams, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range fams {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func labelsOf(m *dto.Metric) map[string]string {
	out := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}

// find returns the first series whose labels include want.
func find(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) *dto.Metric {
	t.Helper()
	f := family(t, reg, name)
	if f == nil {
		return nil
	}
	for _, m := range f.GetMetric() {
		got := labelsOf(m)
		ok := true
		for k, v := range want {
			if got[k] != v {
				ok = false
				break
			}
		}
		if ok {
			return m
		}
	}
	return nil
}

func counter(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	m := find(t, reg, name, labels)
	if m == nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func gauge(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	m := find(t, reg, name, labels)
	if m == nil {
		t.Fatalf("%s%v not found", name, labels)
	}
	return m.GetGauge().GetValue()
}

// scrape

func TestHandler_Scrape(t *testing.T) {
	m := New()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{
		"http_inflight_requests",
		"http_panic_total",
		"http_requests_rate_limited_total",
		"profiling_active",
		"content_watcher_stale",
		"go_goroutines",
		"process_start_time_seconds",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("%s missing from scrape", name)
		}
	}
}

func TestNew_IsolatedRegistries(t *testing.T) {
	a, b := New(), New()
	a.IncHttpPanic()
	if got := counter(t, b.reg, "http_panic_total", nil); got != 0 {
		t.Fatalf("registries share state: %v", got)
	}
}

// process

func TestSetBuildInfoFromVersion(t *testing.T) {
	dirty := true
	tests := []struct {
		name  string
		vcs   *bool
		wantD string
	}{
		{"dirty", &dirty, "true"},
		{"unknown", nil, "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.SetBuildInfoFromVersion("linnemanlabs-opengraph", "server", version.Info{
				Version: "v0.4.0", Commit: "abc123", GoVersion: "go1.24.11", VCSDirty: tt.vcs,
			})
			got := gauge(t, m.reg, "build_info", map[string]string{
				"app":       "linnemanlabs-opengraph",
				"component": "server",
				"version":   "v0.4.0",
				"commit":    "abc123",
				"vcs_dirty": tt.wantD,
			})
			if got != 1 {
				t.Fatalf("build_info = %v", got)
			}
		})
	}
}

func TestSetProfilingActive(t *testing.T) {
	m := New()
	m.SetProfilingActive(true)
	if gauge(t, m.reg, "profiling_active", nil) != 1 {
		t.Fatal("want 1")
	}
	m.SetProfilingActive(false)
	if gauge(t, m.reg, "profiling_active", nil) != 0 {
		t.Fatal("want 0")
	}
}

func TestSimpleCounters(t *testing.T) {
	m := New()
	m.IncHttpPanic()
	m.IncRateLimitDenied()
	m.IncRateLimitDenied()
	m.IncRateLimitCapacity()

	tests := map[string]float64{
		"http_panic_total":                          1,
		"http_requests_rate_limited_total":          2,
		"http_requests_rate_limited_capacity_total": 1,
	}
	for name, want := range tests {
		if got := counter(t, m.reg, name, nil); got != want {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
}

// content

func TestContentGauges(t *testing.T) {
	m := New()
	loaded := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	m.SetContentSource("seed")
	m.SetContentSource("s3")
	m.SetContentDocument("aaaa", "v1")
	m.SetContentDocument("bbbb", "v2")
	m.SetContentCounts(12, 5, 3)
	m.SetContentLoadedTimestamp(loaded)

	if f := family(t, m.reg, "content_source_info"); len(f.GetMetric()) != 1 {
		t.Fatalf("content_source_info series = %d, want 1", len(f.GetMetric()))
	}
	gauge(t, m.reg, "content_source_info", map[string]string{"source": "s3"})

	if f := family(t, m.reg, "content_document_info"); len(f.GetMetric()) != 1 {
		t.Fatalf("content_document_info series = %d, want 1", len(f.GetMetric()))
	}
	gauge(t, m.reg, "content_document_info", map[string]string{"sha256": "bbbb", "version": "v2"})

	for typ, want := range map[string]float64{"post": 12, "member": 5, "group": 3} {
		if got := gauge(t, m.reg, "content_objects", map[string]string{"type": typ}); got != want {
			t.Errorf("content_objects{type=%q} = %v, want %v", typ, got, want)
		}
	}
	if got := gauge(t, m.reg, "content_loaded_timestamp_seconds", nil); got != float64(loaded.Unix()) {
		t.Fatalf("loaded timestamp = %v", got)
	}
}

func TestWatcherMetrics(t *testing.T) {
	m := New()
	m.IncWatcherPolls()
	m.IncWatcherPolls()
	m.IncWatcherSwaps()
	m.IncWatcherError("ssm")
	m.IncWatcherError("ssm")
	m.IncWatcherError("verify")
	m.ObserveDocumentLoadDuration(0.3)
	m.SetWatcherLastSuccess(1700000000)
	m.SetWatcherStale(true)

	if got := counter(t, m.reg, "content_watcher_polls_total", nil); got != 2 {
		t.Errorf("polls = %v", got)
	}
	if got := counter(t, m.reg, "content_watcher_swaps_total", nil); got != 1 {
		t.Errorf("swaps = %v", got)
	}
	if got := counter(t, m.reg, "content_watcher_errors_total", map[string]string{"type": "ssm"}); got != 2 {
		t.Errorf("ssm errors = %v", got)
	}
	if got := counter(t, m.reg, "content_watcher_errors_total", map[string]string{"type": "verify"}); got != 1 {
		t.Errorf("verify errors = %v", got)
	}
	h := find(t, m.reg, "content_document_load_duration_seconds", nil)
	if h == nil || h.GetHistogram().GetSampleCount() != 1 {
		t.Error("load duration not observed")
	}
	if got := gauge(t, m.reg, "content_watcher_last_success_timestamp_seconds", nil); got != 1700000000 {
		t.Errorf("last success = %v", got)
	}
	if got := gauge(t, m.reg, "content_watcher_stale", nil); got != 1 {
		t.Errorf("stale = %v", got)
	}
}

// opengraph

func TestObserver(t *testing.T) {
	m := New()
	var obs opengraph.Observer = m
	obs.ObserveRender(opengraph.KindArticle)
	obs.ObserveRender(opengraph.KindArticle)
	obs.ObserveRender(opengraph.KindUserProfile)
	obs.ObserveFallback("image")

	if got := counter(t, m.reg, "opengraph_renders_total", map[string]string{"kind": opengraph.KindArticle.String()}); got != 2 {
		t.Errorf("article renders = %v", got)
	}
	if got := counter(t, m.reg, "opengraph_renders_total", map[string]string{"kind": opengraph.KindUserProfile.String()}); got != 1 {
		t.Errorf("profile renders = %v", got)
	}
	if got := counter(t, m.reg, "opengraph_fallbacks_total", map[string]string{"field": "image"}); got != 1 {
		t.Errorf("image fallbacks = %v", got)
	}
}

// middleware

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestMiddleware_RouteLabels(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Get("/posts/{postID}/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html></html>"))
	})
	h := m.Middleware(r)

	serve(h, http.MethodGet, "/posts/7/")
	serve(h, http.MethodGet, "/posts/8/")
	serve(h, http.MethodGet, "/wp-login.php")

	if got := counter(t, m.reg, "http_requests_total", map[string]string{
		"method": "GET", "route": "/posts/{postID}/", "status": "200",
	}); got != 2 {
		t.Fatalf("posts route total = %v, want 2", got)
	}
	if got := counter(t, m.reg, "http_requests_total", map[string]string{
		"route": "unmatched", "status": "404",
	}); got != 1 {
		t.Fatalf("unmatched total = %v, want 1", got)
	}
	for _, mm := range family(t, m.reg, "http_requests_total").GetMetric() {
		if route := labelsOf(mm)["route"]; strings.Contains(route, "7") || strings.Contains(route, "wp-login") {
			t.Fatalf("raw path leaked into route label: %q", route)
		}
	}
}

func TestMiddleware_ErrorsOnlyOn5xx(t *testing.T) {
	tests := []struct {
		code int
		want float64
	}{
		{http.StatusOK, 0},
		{http.StatusNotFound, 0},
		{http.StatusServiceUnavailable, 1},
	}
	for _, tt := range tests {
		m := New()
		h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.code)
		}))
		serve(h, http.MethodGet, "/")
		if got := counter(t, m.reg, "http_errors_total", nil); got != tt.want {
			t.Errorf("status %d: errors = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestMiddleware_StatusAndSize(t *testing.T) {
	m := New()
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("12345"))
	}))
	rec := serve(h, http.MethodPost, "/")
	if rec.Body.String() != "12345" {
		t.Fatalf("body = %q", rec.Body.String())
	}

	if got := counter(t, m.reg, "http_requests_total", map[string]string{"status": "201"}); got != 1 {
		t.Fatalf("first status should win, 201 total = %v", got)
	}
	size := find(t, m.reg, "http_response_size_bytes", map[string]string{"method": "POST"})
	if size == nil || size.GetHistogram().GetSampleSum() != 5 {
		t.Fatalf("response size = %v", size)
	}
}

func TestMiddleware_NoWriteIs200(t *testing.T) {
	m := New()
	serve(m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})), http.MethodHead, "/")
	if got := counter(t, m.reg, "http_requests_total", map[string]string{"method": "HEAD", "status": "200"}); got != 1 {
		t.Fatalf("HEAD 200 total = %v", got)
	}
}

func TestMiddleware_Inflight(t *testing.T) {
	m := New()
	var during float64
	h := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		during = gauge(t, m.reg, "http_inflight_requests", nil)
	}))
	serve(h, http.MethodGet, "/")
	if during != 1 {
		t.Fatalf("inflight during request = %v", during)
	}
	if got := gauge(t, m.reg, "http_inflight_requests", nil); got != 0 {
		t.Fatalf("inflight after request = %v", got)
	}
}

func TestMiddleware_Exemplar(t *testing.T) {
	m := New()
	tid, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	sid, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid, TraceFlags: trace.FlagsSampled})

	h := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(trace.ContextWithSpanContext(req.Context(), sc))
	h.ServeHTTP(httptest.NewRecorder(), req)

	hist := find(t, m.reg, "http_request_duration_seconds", nil).GetHistogram()
	var found bool
	for _, b := range hist.GetBucket() {
		if ex := b.GetExemplar(); ex != nil {
			for _, lp := range ex.GetLabel() {
				if lp.GetName() == "trace_id" && lp.GetValue() == tid.String() {
					found = true
				}
			}
		}
	}
	if !found {
		t.Fatal("latency exemplar with trace_id not recorded")
	}
}

func TestTraceExemplar(t *testing.T) {
	tid, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	sid, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	unsampled := trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid})

	if traceExemplar(context.Background()) != nil {
		t.Fatal("exemplar without span")
	}
	if traceExemplar(trace.ContextWithSpanContext(context.Background(), unsampled)) != nil {
		t.Fatal("exemplar for unsampled span")
	}
}
