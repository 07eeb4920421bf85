package sitehandler

import (
	"context"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/opengraph"
)

type groupPostKey struct{}

// WithGroupPost marks ctx as rendering postID inside a group component.
func WithGroupPost(ctx context.Context, postID int64) context.Context {
	return context.WithValue(ctx, groupPostKey{}, postID)
}

// GroupPostFromContext returns the post shown inside a group component page.
func GroupPostFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(groupPostKey{}).(int64)
	return id, ok && id > 0
}

// GroupArticleOverrides promotes posts shown inside a group to articles.
// Those pages are not single post pages, so without the overrides they would
// resolve to the group hub.
func GroupArticleOverrides() opengraph.Overrides {
	return opengraph.Overrides{
		IsSingle: func(ctx context.Context, _ opengraph.Request) bool {
			_, ok := GroupPostFromContext(ctx)
			return ok
		},
		PostID: func(ctx context.Context, _ opengraph.Request, id int64) int64 {
			if gp, ok := GroupPostFromContext(ctx); ok {
				return gp
			}
			return id
		},
	}
}
