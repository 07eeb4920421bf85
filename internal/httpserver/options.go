package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/health"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/log"
)

const (
	defaultPort            = 8080
	defaultMaxBodyBytes    = 1 << 10 // pages are GET/HEAD only
	defaultShutdownTimeout = 5 * time.Second
)

type Options struct {
	Logger log.Logger
	Port   int

	UseRecoverMW bool
	OnPanic      func()
	MetricsMW    func(http.Handler) http.Handler
	RateLimitMW  func(http.Handler) http.Handler
	ClientIPOpts httpmw.ClientIPOptions

	// MaxBodyBytes caps request bodies. default: 1KiB
	MaxBodyBytes int64
	// ShutdownTimeout bounds graceful shutdown. default: 5s
	ShutdownTimeout time.Duration

	Health    health.Probe
	Readiness health.Probe
	// ContentInfo feeds the X-Content-Version and X-Content-Hash headers.
	ContentInfo httpmw.ContentInfo

	// APIRoutes registers page routes on the router after health routes.
	APIRoutes func(chi.Router)
	// SiteHandler answers anything no route matched.
	SiteHandler http.Handler
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.Nop()
	}
	if o.Port == 0 {
		o.Port = defaultPort
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = defaultMaxBodyBytes
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = defaultShutdownTimeout
	}
}
