package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/cfg"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/contenthttp"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/health"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/httpserver"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/log"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/metrics"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/opshttp"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/otelx"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/prof"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/ratelimit"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/sitehandler"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/sitehttp"
	v "github.com/keithlinneman/linnemanlabs-opengraph/internal/version"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/webassets"
)

const appName = "linnemanlabs-opengraph"

func main() {
	vi := v.Get()

	var conf cfg.App
	cfg.Register(flag.CommandLine, &conf)
	showVersion := flag.Bool("V", false, "Print version+build information and exit")
	flag.Parse()
	if *showVersion {
		fmt.Println(appName, vi.String())
		return
	}

	// cli > OGMETA_* env > defaults
	cfg.FillFromEnv(flag.CommandLine, cfg.EnvPrefix, func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})
	cfg.ApplyDerived(&conf)
	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	lg, err := newLogger(conf, vi)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	L := lg.With("component", "server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(log.WithContext(ctx, L), L, conf, vi)
	stop()
	if err != nil {
		L.Error(context.Background(), err, "server exited")
	}
	_ = lg.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger(conf cfg.App, vi v.Info) (log.Logger, error) {
	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		return nil, err
	}
	stackLvl, err := log.ParseLevel(conf.StacktraceLevel)
	if err != nil {
		stackLvl = lvl
	}
	return log.New(log.Options{
		App:               appName,
		Version:           vi.Version,
		Commit:            vi.Commit,
		BuildId:           vi.BuildId,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JsonFormat:        conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
	})
}

// run serves until ctx is cancelled, then drains and shuts down.
func run(ctx context.Context, L log.Logger, conf cfg.App, vi v.Info) error {
	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildId,
		"go_version", vi.GoVersion,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"site_url", conf.SiteURL,
		"site_locale", conf.SiteLocale,
		"site_timezone", conf.SiteTimezone,
		"enable_groups", conf.EnableGroups,
		"content_source", conf.ContentSource,
		"enable_content_updates", conf.EnableContentUpdates,
		"trusted_proxy_hops", conf.TrustedProxyHops,
		"enable_tracing", conf.EnableTracing,
		"enable_pyroscope", conf.EnablePyroscope,
	)

	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       appName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"app":       appName,
			"component": "server",
			"version":   vi.Version,
			"commit":    vi.Commit,
		},
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	defer stopProf()

	// the collector runs on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:    conf.EnableTracing,
		Endpoint:   conf.OTLPEndpoint,
		Insecure:   true,
		Sample:     conf.TraceSample,
		Service:    appName,
		Component:  "server",
		Version:    vi.Version,
		Attributes: map[string]string{"site.url": conf.SiteURL},
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}

	m := metrics.New()
	m.SetBuildInfoFromVersion(appName, "server", vi)
	m.SetProfilingActive(conf.EnablePyroscope)

	src, err := openContent(ctx, L, conf, m)
	if err != nil {
		return err
	}
	defer src.close()

	gen, err := newGenerator(conf, src, m)
	if err != nil {
		return err
	}

	var gate health.ShutdownGate
	readiness := health.All(
		health.Named("server", gate.Probe()),
		health.Named("content", health.CheckFunc(func(context.Context) error { return src.ReadyErr() })),
	)

	site, err := sitehandler.New(sitehandler.Options{
		Logger:              L,
		Generator:           gen,
		Content:             src,
		Ready:               src,
		FallbackFS:          webassets.FallbackFS(),
		StaticFS:            webassets.StaticFS(),
		TrustForwardedProto: conf.TrustedProxyHops > 0,
	})
	if err != nil {
		return err
	}
	pages := sitehttp.New(site)
	api := contenthttp.NewAPI(src, gen, L)

	limiter := ratelimit.New(ctx,
		ratelimit.WithOnDenied(func(string) { m.IncRateLimitDenied() }),
		// logged once per offender until it goes idle and is evicted
		ratelimit.WithOnFirstDenied(func(ip string) {
			L.Warn(ctx, "rate limit triggered", "client.address", ip)
		}),
		ratelimit.WithOnCapacity(func(string) { m.IncRateLimitCapacity() }),
	)

	stopSite, err := httpserver.Start(ctx, &httpserver.Options{
		Logger:       L,
		Port:         conf.HTTPPort,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		RateLimitMW:  limiter.Middleware,
		ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedProxyHops},
		Health:       health.Fixed(true, ""),
		Readiness:    readiness,
		ContentInfo:  src.info,
		APIRoutes: func(r chi.Router) {
			api.RegisterRoutes(r)
			pages.RegisterRoutes(r)
		},
		SiteHandler: site,
	})
	if err != nil {
		return err
	}

	// the admin listener also refuses public source addresses
	stopOps, err := opshttp.Start(ctx, L, &opshttp.Options{
		Port:        conf.AdminPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      health.Fixed(true, ""),
		Readiness:   readiness,
		OnPanic:     m.IncHttpPanic,
	})
	if err != nil {
		_ = stopSite(context.Background())
		return err
	}

	if err := notifySystemd(); err != nil {
		// systemd falls back to its start timeout
		L.Warn(ctx, "systemd readiness notification skipped", "err", err)
	}

	<-ctx.Done()
	drain(L, &gate, conf.DrainPeriod)
	shutdown(L, map[string]func(context.Context) error{
		"site http": stopSite,
		"ops http":  stopOps,
		"otel":      shutdownOTEL,
	})
	return nil
}
