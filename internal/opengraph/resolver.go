package opengraph

import (
	"context"
	"html"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	TypeArticle = "article"
	TypeWebsite = "website"

	publishedLayout = "2006-01-02T15:04:05-07:00"
)

var tracer = otel.Tracer("linnemanlabs/opengraph")

// Resolution is the page-specific part of the metadata. Title and
// Description are attribute-escaped; ImageURL is raw and escaped by Emit.
type Resolution struct {
	Page PageContext
	// ContentID identifies the post the metadata came from, "" when none.
	ContentID     string
	Title         string
	Description   string
	ImageURL      string
	Type          string
	PublishedTime string // articles only
}

// Resolve picks the page kind for r and derives title, description, image
// and type. The first matching kind wins: article, user profile, group hub,
// generic.
func (g *Generator) Resolve(ctx context.Context, r Request) Resolution {
	ctx, span := tracer.Start(ctx, "opengraph.resolve", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	var res Resolution
	switch {
	case g.isSingle(ctx, r):
		res = g.resolveArticle(ctx, r)
	case r.DisplayedUserID != 0:
		res = g.resolveProfile(ctx, r.DisplayedUserID)
	default:
		var ok bool
		if res, ok = g.resolveGroup(ctx, r); !ok {
			res = g.resolveGeneric()
		}
	}

	if span.IsRecording() {
		span.SetAttributes(
			attribute.String("og.kind", res.Page.Kind.String()),
			attribute.String("og.content_id", res.ContentID),
		)
	}
	g.opts.Observer.ObserveRender(res.Page.Kind)
	return res
}

func (g *Generator) isSingle(ctx context.Context, r Request) bool {
	if r.Single {
		return true
	}
	if fn := g.opts.Overrides.IsSingle; fn != nil {
		return fn(ctx, r)
	}
	return false
}

func (g *Generator) resolveArticle(ctx context.Context, r Request) Resolution {
	ov := g.opts.Overrides

	id := r.PostID
	if ov.PostID != nil {
		id = ov.PostID(ctx, r, id)
	}

	res := Resolution{
		Page:      Article(id),
		ContentID: strconv.FormatInt(id, 10),
		Type:      TypeArticle,
	}

	post, err := g.opts.Content.Post(ctx, id)
	if err != nil {
		lookupFailed(ctx, err, "post", id)
	} else {
		res.Title = html.EscapeString(post.Title)
		res.Description = g.filter.excerpt(post)
		if !post.PublishedAt.IsZero() {
			res.PublishedTime = post.PublishedAt.In(g.opts.Location).Format(publishedLayout)
		}
		if post.FeaturedImage != "" {
			u, err := g.opts.Media.ImageURL(ctx, post.FeaturedImage, ImageLarge)
			if err != nil {
				lookupFailed(ctx, err, "image", id)
			} else {
				res.ImageURL = u
			}
		}
	}

	if ov.Title != nil {
		res.Title = escapeOverride(ov.Title(ctx, res.Title))
	}
	if ov.Description != nil {
		res.Description = escapeOverride(ov.Description(ctx, res.Description))
	}
	if ov.ImageURL != nil {
		res.ImageURL = ov.ImageURL(ctx, res.ImageURL)
	}
	return res
}

// escapeOverride brings override output to escaped form. Text that is
// already escaped comes back unchanged.
func escapeOverride(s string) string {
	return html.EscapeString(html.UnescapeString(s))
}

func (g *Generator) resolveProfile(ctx context.Context, userID int64) Resolution {
	res := Resolution{
		Page: UserProfile(userID),
		Type: TypeWebsite,
	}

	var displayName string
	m, err := g.opts.Content.Member(ctx, userID)
	if err != nil {
		lookupFailed(ctx, err, "member", userID)
	} else {
		displayName = m.DisplayName
		if m.Active && m.LatestUpdate != "" {
			res.Description = g.filter.memberUpdate(m.LatestUpdate)
		}
	}
	res.Title = html.EscapeString(g.opts.Site.Name + " Member: " + displayName)

	res.ImageURL = g.avatar(ctx, AvatarUser, userID)
	return res
}

func (g *Generator) resolveGroup(ctx context.Context, r Request) (Resolution, bool) {
	if !g.opts.GroupsEnabled || r.CurrentGroupID == 0 {
		return Resolution{}, false
	}
	grp, err := g.opts.Content.Group(ctx, r.CurrentGroupID)
	if err != nil {
		lookupFailed(ctx, err, "group", r.CurrentGroupID)
		return Resolution{}, false
	}
	return Resolution{
		Page:        GroupHub(r.CurrentGroupID),
		Title:       html.EscapeString(g.opts.Site.Name) + " Hub: " + html.EscapeString(grp.Name),
		Description: g.filter.groupDescription(grp.Description),
		ImageURL:    g.avatar(ctx, AvatarGroup, r.CurrentGroupID),
		Type:        TypeWebsite,
	}, true
}

func (g *Generator) resolveGeneric() Resolution {
	return Resolution{
		Page:  Generic(),
		Title: html.EscapeString(g.opts.Site.Name),
		Type:  TypeWebsite,
	}
}

func (g *Generator) avatar(ctx context.Context, object AvatarObject, id int64) string {
	u, err := g.opts.Media.AvatarURL(ctx, object, id)
	if err != nil {
		lookupFailed(ctx, err, string(object)+" avatar", id)
		return ""
	}
	return u
}
