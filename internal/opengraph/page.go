package opengraph

import (
	"net/http"
	"strings"
)

// Kind is the page kind selected by the resolver.
type Kind uint8

const (
	KindGeneric Kind = iota
	KindArticle
	KindUserProfile
	KindGroupHub
)

func (k Kind) String() string {
	switch k {
	case KindArticle:
		return "article"
	case KindUserProfile:
		return "user_profile"
	case KindGroupHub:
		return "group_hub"
	default:
		return "generic"
	}
}

// PageContext is the resolved page kind plus the id of the object it is about.
// ID is zero for generic pages.
type PageContext struct {
	Kind Kind
	ID   int64
}

func Article(postID int64) PageContext     { return PageContext{Kind: KindArticle, ID: postID} }
func UserProfile(userID int64) PageContext { return PageContext{Kind: KindUserProfile, ID: userID} }
func GroupHub(groupID int64) PageContext   { return PageContext{Kind: KindGroupHub, ID: groupID} }
func Generic() PageContext                 { return PageContext{Kind: KindGeneric} }

// Location is the public address of the page being rendered.
type Location struct {
	Host       string
	RequestURI string
	TLS        bool
}

// URL returns the canonical page URL: scheme, host and request URI (path and query).
func (l Location) URL() string {
	scheme := "http"
	if l.TLS {
		scheme = "https"
	}
	uri := l.RequestURI
	if uri == "" {
		uri = "/"
	}
	return scheme + "://" + l.Host + uri
}

// LocationFromRequest builds a Location from an incoming request.
// When trustForwardedProto is set, X-Forwarded-Proto from a trusted load
// balancer decides the scheme for plain HTTP connections.
func LocationFromRequest(r *http.Request, trustForwardedProto bool) Location {
	loc := Location{
		Host:       r.Host,
		RequestURI: r.RequestURI,
		TLS:        r.TLS != nil,
	}
	// absolute-form targets carry scheme and host, keep only path and query
	if !strings.HasPrefix(loc.RequestURI, "/") && r.URL != nil {
		loc.RequestURI = r.URL.RequestURI()
	}
	if !loc.TLS && trustForwardedProto {
		proto := r.Header.Get("X-Forwarded-Proto")
		// a chain of proxies appends, the first entry is the client-facing one
		if i := strings.IndexByte(proto, ','); i >= 0 {
			proto = proto[:i]
		}
		loc.TLS = strings.EqualFold(strings.TrimSpace(proto), "https")
	}
	return loc
}

// Request carries the signals a host has about the page being rendered.
// Zero values mean "not applicable".
type Request struct {
	Location Location

	// Single is true when the page shows exactly one post.
	Single bool
	// PostID is the post being displayed, if any.
	PostID int64
	// DisplayedUserID is the member whose profile is shown, if any.
	DisplayedUserID int64
	// CurrentGroupID is the group whose hub is shown, if any.
	CurrentGroupID int64
}
