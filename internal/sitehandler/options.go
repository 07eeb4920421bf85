package sitehandler

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/log"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/opengraph"
)

var ErrInvalidOptions = errors.New("sitehandler: invalid options")

// Readiness reports whether content can be served. A nil error means ready.
type Readiness interface {
	ReadyErr() error
}

type Options struct {
	Logger log.Logger

	Generator *opengraph.Generator
	// Content is consulted to answer 404 for unknown posts, members and groups.
	Content opengraph.Repository
	// Ready gates every page behind the maintenance page. Optional.
	Ready Readiness

	// fallback FS (maintenance page, 404 page)
	FallbackFS fs.FS
	// StaticFS backs Static. Optional.
	StaticFS fs.FS

	MaintenanceFile string // default: "maintenance.html"
	Fallback404File string // default: "404.html"

	// Cache policies applied by file extension.
	HTMLCacheControl  string // default: "no-cache"
	AssetCacheControl string // default: "public, max-age=31536000, immutable"
	OtherCacheControl string // default: "public, max-age=3600"

	// TrustForwardedProto lets X-Forwarded-Proto pick the og:url scheme.
	TrustForwardedProto bool
	// Lang is the <html lang> value. default: derived from the site locale
	Lang string
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.Nop()
	}
	if o.MaintenanceFile == "" {
		o.MaintenanceFile = "maintenance.html"
	}
	if o.Fallback404File == "" {
		o.Fallback404File = "404.html"
	}
	if o.HTMLCacheControl == "" {
		o.HTMLCacheControl = "no-cache"
	}
	if o.AssetCacheControl == "" {
		o.AssetCacheControl = "public, max-age=31536000, immutable"
	}
	if o.OtherCacheControl == "" {
		o.OtherCacheControl = "public, max-age=3600"
	}
	if o.Lang == "" && o.Generator != nil {
		o.Lang = strings.ReplaceAll(o.Generator.Site().Locale, "_", "-")
	}
}

func (o *Options) validate() error {
	if o.Generator == nil {
		return fmt.Errorf("%w: Generator is nil", ErrInvalidOptions)
	}
	if o.Content == nil {
		return fmt.Errorf("%w: Content is nil", ErrInvalidOptions)
	}
	if o.FallbackFS == nil {
		return fmt.Errorf("%w: FallbackFS is nil", ErrInvalidOptions)
	}
	return nil
}
