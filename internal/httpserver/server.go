// Package httpserver assembles the public listener: the chi router for page,
// content API and health routes plus the middleware stack around it.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/health"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/xerrors"
)

// compressible response types; share images are already compressed
var compressTypes = []string{
	"text/html",
	"text/css",
	"application/javascript",
	"text/javascript",
	"application/json",
	"image/svg+xml",
}

func newRouter(opts *Options) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Compress(5, compressTypes...))
	r.Use(httpmw.AnnotateHTTPRoute)
	r.Use(httpmw.AccessLog())
	r.Use(httpmw.MaxBody(opts.MaxBodyBytes))

	if opts.Health != nil {
		r.Get("/-/healthy", health.HealthzHandler(opts.Health))
	}
	if opts.Readiness != nil {
		r.Get("/-/ready", health.ReadyzHandler(opts.Readiness))
	}
	if opts.APIRoutes != nil {
		opts.APIRoutes(r)
	}
	if opts.SiteHandler != nil {
		r.NotFound(opts.SiteHandler.ServeHTTP)
		r.MethodNotAllowed(opts.SiteHandler.ServeHTTP)
	}
	return r
}

// tracedPath reports whether a request path gets a server span. Health
// probes, icons and static assets are high volume and carry no page context.
func tracedPath(p string) bool {
	switch p {
	case "/favicon.ico", "/favicon.svg", "/robots.txt", "/-/healthy", "/-/ready":
		return false
	}
	if strings.HasPrefix(p, "/static/") {
		return false
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".css", ".js", ".png", ".jpg", ".jpeg", ".webp", ".gif", ".svg", ".ico", ".woff", ".woff2", ".map":
		return false
	}
	return true
}

func tracing(next http.Handler) http.Handler {
	return otelhttp.NewHandler(next, "http.server",
		otelhttp.WithFilter(func(r *http.Request) bool { return tracedPath(r.URL.Path) }),
		// AnnotateHTTPRoute renames the span once chi has matched a pattern
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithPublicEndpointFn(func(*http.Request) bool { return true }),
	)
}

// NewHandler returns the router wrapped in the public middleware stack.
// The caller owns the *http.Server.
func NewHandler(opts *Options) http.Handler {
	opts.setDefaults()

	// innermost first
	layers := []func(http.Handler) http.Handler{
		httpmw.WithLogger(opts.Logger),
		opts.MetricsMW,
		httpmw.TraceResponseHeaders("X-Trace-Id", "X-Span-Id"),
	}
	if opts.ContentInfo != nil {
		layers = append(layers, httpmw.ContentHeaders(opts.ContentInfo))
	}
	layers = append(layers,
		tracing,
		opts.RateLimitMW, // keyed on the resolved client ip
		httpmw.ClientIP(opts.ClientIPOpts),
		httpmw.RequestID("X-Request-Id"),
	)
	if opts.UseRecoverMW {
		layers = append(layers, httpmw.Recover(opts.Logger, opts.OnPanic))
	}
	layers = append(layers, httpmw.SecurityHeaders)

	var h http.Handler = newRouter(opts)
	for _, mw := range layers {
		if mw != nil {
			h = mw(h)
		}
	}
	return h
}

// Server timeout defaults, shared with opshttp.
const (
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultReadTimeout       = 10 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultIdleTimeout       = 60 * time.Second
	DefaultMaxHeaderBytes    = 1 << 20
)

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		ReadTimeout:       DefaultReadTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		MaxHeaderBytes:    DefaultMaxHeaderBytes,
	}
}

// Start binds the public listener and serves in the background.
// The returned stop func is safe to call more than once.
func Start(ctx context.Context, opts *Options) (func(context.Context) error, error) {
	handler := NewHandler(opts)
	addr := fmt.Sprintf(":%d", opts.Port)
	srv := NewServer(addr, handler)

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp4", addr)
	if err != nil {
		return nil, xerrors.Wrapf(err, "listen %s", addr)
	}

	go func() {
		opts.Logger.Info(ctx, "http server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			opts.Logger.Error(ctx, err, "http server error")
		}
	}()

	var (
		once    sync.Once
		stopErr error
	)
	stop := func(sctx context.Context) error {
		once.Do(func() {
			opts.Logger.Info(sctx, "http server shutting down")
			c, cancel := context.WithTimeout(sctx, opts.ShutdownTimeout)
			defer cancel()
			stopErr = srv.Shutdown(c)
		})
		return stopErr
	}
	return stop, nil
}
