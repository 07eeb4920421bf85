package opengraph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/log"
)

var ErrInvalidOptions = errors.New("opengraph: invalid options")

// Site holds the site-wide fields every page shares.
type Site struct {
	Name        string
	Description string
	Locale      string // default: "en_US"
	// DefaultImageURL is used when a page has no image of its own.
	DefaultImageURL string
}

// Overrides replace computed values. Each func is optional; when set it
// receives the computed value and its result replaces it.
type Overrides struct {
	// IsSingle is consulted only when the host did not flag the page as single.
	IsSingle func(ctx context.Context, r Request) bool
	PostID   func(ctx context.Context, r Request, id int64) int64
	// Title and Description receive escaped text and may return plain or
	// escaped text; the result is escaped without double-escaping entities.
	Title       func(ctx context.Context, title string) string
	Description func(ctx context.Context, description string) string
	// ImageURL receives and returns a raw URL; it is escaped on emission.
	ImageURL func(ctx context.Context, url string) string
}

// Observer receives per-render signals, typically backed by metrics.
type Observer interface {
	ObserveRender(kind Kind)
	ObserveFallback(field string)
}

type nopObserver struct{}

func (nopObserver) ObserveRender(Kind)     {}
func (nopObserver) ObserveFallback(string) {}

type Options struct {
	Site    Site
	Content Repository
	Media   Media

	Overrides Overrides

	// GroupsEnabled turns on group hub resolution.
	GroupsEnabled bool
	// Location is the zone article:published_time is rendered in. default: UTC
	Location *time.Location
	// Shortcodes stripped from bodies. default: DefaultShortcodes
	Shortcodes []string

	Observer Observer
}

func (o *Options) setDefaults() {
	if o.Site.Locale == "" {
		o.Site.Locale = "en_US"
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if len(o.Shortcodes) == 0 {
		o.Shortcodes = DefaultShortcodes
	}
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
}

func (o *Options) validate() error {
	if o.Content == nil {
		return fmt.Errorf("%w: Content is nil", ErrInvalidOptions)
	}
	if o.Media == nil {
		return fmt.Errorf("%w: Media is nil", ErrInvalidOptions)
	}
	if o.Site.DefaultImageURL == "" {
		return fmt.Errorf("%w: Site.DefaultImageURL is empty", ErrInvalidOptions)
	}
	return nil
}

// Generator resolves and emits Open Graph metadata. It is immutable after New.
type Generator struct {
	opts   Options
	filter *textFilter
}

func New(opts Options) (*Generator, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	f, err := newTextFilter(opts.Shortcodes)
	if err != nil {
		return nil, fmt.Errorf("%w: shortcodes: %v", ErrInvalidOptions, err)
	}
	opts.Shortcodes = append([]string(nil), opts.Shortcodes...)
	return &Generator{opts: opts, filter: f}, nil
}

// Site returns the site-wide fields with defaults applied.
func (g *Generator) Site() Site { return g.opts.Site }

func lookupFailed(ctx context.Context, err error, what string, id int64) {
	l := log.FromContext(ctx)
	if errors.Is(err, ErrNotFound) {
		l.Debug(ctx, "opengraph lookup miss", "object", what, "id", id)
		return
	}
	l.Warn(ctx, "opengraph lookup failed", "object", what, "id", id, "err", err)
}
