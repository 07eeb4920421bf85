package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/log"
)

// EnvPrefix is prepended to upper-cased flag names when reading the environment.
const EnvPrefix = "OGMETA_"

const (
	ContentSourceSnapshot = "snapshot"
	ContentSourceSQLite   = "sqlite"
)

type App struct {
	LogJSON           bool
	LogLevel          string
	StacktraceLevel   string
	IncludeErrorLinks bool
	MaxErrorLinks     int

	HTTPPort         int
	AdminPort        int
	TrustedProxyHops int
	DrainPeriod      time.Duration

	EnablePprof     bool
	EnablePyroscope bool
	EnableTracing   bool
	PyroServer      string
	PyroTenantID    string
	OTLPEndpoint    string
	TraceSample     float64

	SiteName        string
	SiteDescription string
	SiteURL         string
	SiteLocale      string
	SiteTimezone    string
	DefaultImageURL string
	MediaBaseURL    string
	EnableGroups    bool

	ContentSource        string
	ContentDB            string
	EnableContentUpdates bool
	ContentSSMParam      string
	ContentS3Bucket      string
	ContentS3Prefix      string
	ContentSigningKeyARN string
}

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", true, "Include error links in log messages")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "max error chain depth (1..64)")

	fs.IntVar(&c.HTTPPort, "http-port", 8080, "listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "admin listen TCP port (1..65535)")
	fs.IntVar(&c.TrustedProxyHops, "trusted-proxy-hops", 0, "reverse proxies in front of the site whose X-Forwarded-* headers are trusted")
	fs.DurationVar(&c.DrainPeriod, "drain-period", 60*time.Second, "how long readiness fails before listeners close on shutdown")

	fs.BoolVar(&c.EnablePprof, "enable-pprof", true, "Enable pprof profiling (on admin port only)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")

	fs.StringVar(&c.SiteName, "site-name", "", "site name emitted as og:site_name")
	fs.StringVar(&c.SiteDescription, "site-description", "", "site tagline used when a page has no description")
	fs.StringVar(&c.SiteURL, "site-url", "", "canonical site root, e.g. https://example.com")
	fs.StringVar(&c.SiteLocale, "site-locale", "en_US", "og:locale value")
	fs.StringVar(&c.SiteTimezone, "site-timezone", "UTC", "IANA zone article:published_time is rendered in")
	fs.StringVar(&c.DefaultImageURL, "default-image-url", "", "fallback og:image (default {site-url}/static/og-default.png)")
	fs.StringVar(&c.MediaBaseURL, "media-base-url", "", "root for image and avatar URLs (default {site-url}/media)")
	fs.BoolVar(&c.EnableGroups, "enable-groups", true, "Resolve group hub pages")

	fs.StringVar(&c.ContentSource, "content-source", ContentSourceSnapshot, "snapshot|sqlite")
	fs.StringVar(&c.ContentDB, "content-db", "data/content.db", "sqlite database path when -content-source=sqlite")
	fs.BoolVar(&c.EnableContentUpdates, "enable-content-updates", false, "Enable refreshing content documents from S3/SSM")
	fs.StringVar(&c.ContentSSMParam, "content-ssm-param", "/app/linnemanlabs-opengraph/server/content/stable/document/sha256", "ssm parameter name to get content document hash from")
	fs.StringVar(&c.ContentS3Bucket, "content-s3-bucket", "", "s3 bucket name to get content documents from")
	fs.StringVar(&c.ContentS3Prefix, "content-s3-prefix", "apps/linnemanlabs-opengraph/content/documents", "s3 prefix (key) to get content documents from")
	fs.StringVar(&c.ContentSigningKeyARN, "content-signing-key-arn", "", "KMS key ARN for content document signature verification")
}

// EnvKey is the environment variable read for flag name.
func EnvKey(prefix, name string) string {
	return prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// FillFromEnv sets every flag not passed on the command line from its
// EnvKey variable, so the order is cli > env > default. Unparsable values
// leave the default in place. logf may be nil.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	onCLI := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { onCLI[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := EnvKey(prefix, f.Name)
		val, ok := os.LookupEnv(key)
		switch {
		case !ok:
		case onCLI[f.Name]:
			logf("flag -%s=%q set on command line, ignoring %s", f.Name, f.Value.String(), key)
		default:
			def := f.Value.String()
			if err := fs.Set(f.Name, val); err != nil {
				_ = fs.Set(f.Name, def)
				logf("flag -%s: ignoring invalid %s=%q: %v", f.Name, key, val, err)
			}
		}
	})
}

// ApplyDerived fills the URL defaults that depend on -site-url.
func ApplyDerived(c *App) {
	root := strings.TrimRight(c.SiteURL, "/")
	if root == "" {
		return
	}
	if c.DefaultImageURL == "" {
		c.DefaultImageURL = root + "/static/og-default.png"
	}
	if c.MediaBaseURL == "" {
		c.MediaBaseURL = root + "/media"
	}
}

// problems collects validation failures keyed by flag name.
type problems []error

func (p *problems) addf(flagName, format string, args ...any) {
	*p = append(*p, fmt.Errorf("-%s: "+format, append([]any{flagName}, args...)...))
}

// Validate reports every invalid setting at once, joined with errors.Join.
func Validate(c App) error {
	var p problems
	c.checkListeners(&p)
	c.checkObservability(&p)
	c.checkSite(&p)
	c.checkContent(&p)
	return errors.Join(p...)
}

func (c App) checkListeners(p *problems) {
	for name, port := range map[string]int{"http-port": c.HTTPPort, "admin-port": c.AdminPort} {
		if port < 1 || port > 65535 {
			p.addf(name, "port %d out of range 1..65535", port)
		}
	}
	if c.HTTPPort == c.AdminPort {
		p.addf("admin-port", "must differ from -http-port (both %d)", c.HTTPPort)
	}
	if c.TrustedProxyHops < 0 || c.TrustedProxyHops > 8 {
		p.addf("trusted-proxy-hops", "%d out of range 0..8", c.TrustedProxyHops)
	}
	if c.DrainPeriod < 0 || c.DrainPeriod > 10*time.Minute {
		p.addf("drain-period", "%s out of range 0s..10m", c.DrainPeriod)
	}
}

func (c App) checkObservability(p *problems) {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		p.addf("log-level", "%v", err)
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			p.addf("stacktrace-level", "%v", err)
		}
	}
	if c.IncludeErrorLinks && (c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64) {
		p.addf("max-error-links", "%d out of range 1..64", c.MaxErrorLinks)
	}
	if c.TraceSample < 0 || c.TraceSample > 1 {
		p.addf("trace-sample", "%g out of range 0..1", c.TraceSample)
	}
	if c.EnableTracing {
		// the gRPC exporter takes host:port without a scheme
		if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			p.addf("otlp-endpoint", "want host:port with -enable-tracing (got %q)", c.OTLPEndpoint)
		}
	}
	if c.EnablePyroscope {
		if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			p.addf("pyro-server", "want a URL with -enable-pyroscope (got %q)", c.PyroServer)
		}
		if c.PyroTenantID == "" {
			p.addf("pyro-tenant", "required with -enable-pyroscope")
		}
	}
}

func (c App) checkSite(p *problems) {
	if strings.TrimSpace(c.SiteName) == "" {
		p.addf("site-name", "required")
	}
	if c.SiteURL == "" {
		p.addf("site-url", "required")
	} else if !absoluteHTTP(c.SiteURL) {
		p.addf("site-url", "want an absolute http(s) URL (got %q)", c.SiteURL)
	}
	for name, v := range map[string]string{"default-image-url": c.DefaultImageURL, "media-base-url": c.MediaBaseURL} {
		if v != "" && !absoluteHTTP(v) {
			p.addf(name, "want an absolute http(s) URL (got %q)", v)
		}
	}
	if c.SiteLocale == "" {
		p.addf("site-locale", "required")
	}
	if _, err := time.LoadLocation(c.SiteTimezone); err != nil {
		p.addf("site-timezone", "%v", err)
	}
}

func (c App) checkContent(p *problems) {
	switch c.ContentSource {
	case ContentSourceSnapshot:
		if !c.EnableContentUpdates {
			return
		}
		for name, v := range map[string]string{
			"content-ssm-param":       c.ContentSSMParam,
			"content-s3-bucket":       c.ContentS3Bucket,
			"content-s3-prefix":       c.ContentS3Prefix,
			"content-signing-key-arn": c.ContentSigningKeyARN,
		} {
			if v == "" {
				p.addf(name, "required with -enable-content-updates")
			}
		}
	case ContentSourceSQLite:
		if c.ContentDB == "" {
			p.addf("content-db", "required with -content-source=sqlite")
		}
		if c.EnableContentUpdates {
			p.addf("enable-content-updates", "only supported with -content-source=snapshot")
		}
	default:
		p.addf("content-source", "%q is not snapshot or sqlite", c.ContentSource)
	}
}

func absoluteHTTP(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
