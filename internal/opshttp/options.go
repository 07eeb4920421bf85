package opshttp

import (
	"net/http"
	"time"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/health"
)

const (
	defaultPort            = 9000
	defaultShutdownTimeout = 5 * time.Second
	// cpu profiles and traces stream for up to 30s
	pprofWriteTimeout = 60 * time.Second
)

type Options struct {
	Port        int
	Metrics     http.Handler
	EnablePprof bool
	Health      health.Probe
	Readiness   health.Probe
	// OnPanic runs after a recovered panic, e.g. to bump a counter.
	OnPanic func()
	// ShutdownTimeout bounds graceful shutdown. default: 5s
	ShutdownTimeout time.Duration
}

func (o *Options) setDefaults() {
	if o.Port == 0 {
		o.Port = defaultPort
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = defaultShutdownTimeout
	}
}
