package opengraph

import (
	"context"
	"html"
)

const (
	KeyLocale        = "og:locale"
	KeySiteName      = "og:site_name"
	KeyPublishedTime = "article:published_time"
	KeyTitle         = "og:title"
	KeyURL           = "og:url"
	KeyType          = "og:type"
	KeyDescription   = "og:description"
	KeyImage         = "og:image"

	KeyItemName        = "name"
	KeyItemImage       = "image"
	KeyTwitterTitle    = "twitter:title"
	KeyTwitterImageSrc = "twitter:image:src"
	KeyTwitterCard     = "twitter:card"

	TwitterCardLargeImage = "summary_large_image"
)

// Emit merges a resolution with site-wide fields into the ordered attribute
// set rendered in the page head. Missing description, image or title fall
// back to the site description, the site default image and the site name.
func Emit(res Resolution, site Site, loc Location) *Attributes {
	a := NewAttributes()

	locale := site.Locale
	if locale == "" {
		locale = "en_US"
	}
	a.Set(Property, KeyLocale, locale)
	a.Set(Property, KeySiteName, html.EscapeString(site.Name))

	if res.Page.Kind == KindArticle {
		a.Set(Property, KeyPublishedTime, res.PublishedTime)
	}

	title := res.Title
	if title == "" {
		title = html.EscapeString(site.Name)
	}
	a.Set(Property, KeyTitle, title)
	a.Set(Itemprop, KeyItemName, title)
	a.Set(Name, KeyTwitterTitle, title)

	a.Set(Property, KeyURL, html.EscapeString(loc.URL()))

	typ := res.Type
	if typ == "" {
		typ = TypeWebsite
	}
	a.Set(Property, KeyType, typ)

	desc := res.Description
	if desc == "" {
		desc = html.EscapeString(site.Description)
	}
	a.Set(Property, KeyDescription, desc)

	img := res.ImageURL
	if img == "" {
		img = site.DefaultImageURL
	}
	img = html.EscapeString(img)
	a.Set(Property, KeyImage, img)
	a.Set(Itemprop, KeyItemImage, img)
	a.Set(Name, KeyTwitterImageSrc, img)

	a.Set(Name, KeyTwitterCard, TwitterCardLargeImage)
	return a
}

// Render resolves r and emits its attributes, reporting fallbacks to the observer.
func (g *Generator) Render(ctx context.Context, r Request) (Resolution, *Attributes) {
	res := g.Resolve(ctx, r)
	obs := g.opts.Observer
	if res.Title == "" {
		obs.ObserveFallback("title")
	}
	if res.Description == "" {
		obs.ObserveFallback("description")
	}
	if res.ImageURL == "" {
		obs.ObserveFallback("image")
	}
	return res, Emit(res, g.opts.Site, r.Location)
}
