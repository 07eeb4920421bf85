package httpmw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.NotFoundHandler())

	page := httptest.NewRecorder()
	h.ServeHTTP(page, httptest.NewRequest(http.MethodGet, "/posts/1/", nil))
	for name, want := range map[string]string{
		"Content-Security-Policy":      pageCSP,
		"X-Frame-Options":              "DENY",
		"Cross-Origin-Resource-Policy": "same-origin",
		"X-Content-Type-Options":       "nosniff",
	} {
		if got := page.Header().Get(name); got != want {
			t.Errorf("page %s = %q, want %q", name, got, want)
		}
	}

	img := httptest.NewRecorder()
	h.ServeHTTP(img, httptest.NewRequest(http.MethodGet, "/static/og-default.png", nil))
	if got := img.Header().Get("Cross-Origin-Resource-Policy"); got != "cross-origin" {
		t.Errorf("static CORP = %q, want cross-origin", got)
	}
	if img.Header().Get("X-Frame-Options") != "" || img.Header().Get("Content-Security-Policy") != "" {
		t.Error("page-only headers set on static asset")
	}
	if img.Header().Get("Strict-Transport-Security") == "" {
		t.Error("HSTS missing on static asset")
	}
}

func TestTraceResponseHeaders(t *testing.T) {
	h := TraceResponseHeaders("", "")(http.NotFoundHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Trace-Id") != "" {
		t.Fatal("trace header without span")
	}

	tid, _ := trace.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	sid, _ := trace.SpanIDFromHex("b7ad6b7169203331")
	ctx := trace.ContextWithSpanContext(context.Background(),
		trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))
	if rec.Header().Get("X-Trace-Id") != tid.String() || rec.Header().Get("X-Span-Id") != sid.String() {
		t.Fatalf("trace headers = %q/%q", rec.Header().Get("X-Trace-Id"), rec.Header().Get("X-Span-Id"))
	}
}

type fixedContent struct{ version, hash string }

func (f fixedContent) ContentVersion() string { return f.version }
func (f fixedContent) ContentHash() string    { return f.hash }

func TestContentHeaders(t *testing.T) {
	tests := []struct {
		name        string
		info        ContentInfo
		wantVersion string
		wantHash    string
	}{
		{"long hash shortened", fixedContent{"v3", "e3b0c44298fc1c149afbf4c8996fb924"}, "v3", "e3b0c44298fc"},
		{"short hash kept", fixedContent{"v3", "abc"}, "v3", "abc"},
		{"empty values omitted", fixedContent{}, "", ""},
		{"nil info", nil, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ContentHeaders(tt.info)(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			if got := rec.Header().Get("X-Content-Version"); got != tt.wantVersion {
				t.Errorf("version = %q, want %q", got, tt.wantVersion)
			}
			if got := rec.Header().Get("X-Content-Hash"); got != tt.wantHash {
				t.Errorf("hash = %q, want %q", got, tt.wantHash)
			}
		})
	}
}
