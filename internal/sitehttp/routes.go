package sitehttp

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/opengraph"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/sitehandler"
)

// Site is the page host. *sitehandler.Handler implements it.
type Site interface {
	http.Handler
	Page(build sitehandler.RequestBuilder) http.Handler
	Static() http.Handler
}

type Routes struct {
	Site Site
}

func New(site Site) *Routes {
	return &Routes{Site: site}
}

// RegisterRoutes should be passed LAST so the site handler also becomes the
// NotFound fallback.
func (rt *Routes) RegisterRoutes(r chi.Router) {
	s := rt.Site

	r.Handle("/", s.Page(home))
	r.Handle("/posts/{postID}/", s.Page(post))
	r.Handle("/members/{userID}/", s.Page(member))
	r.Handle("/members/{userID}/*", s.Page(member))
	r.Handle("/groups/{groupID}/", s.Page(group))
	r.Handle("/groups/{groupID}/posts/{postID}/", s.Page(groupPost))
	r.Handle("/static/*", http.StripPrefix("/static", s.Static()))

	// canonical page urls end in a slash
	r.Handle("/posts/{postID}", http.HandlerFunc(addSlash))
	r.Handle("/members/{userID}", http.HandlerFunc(addSlash))
	r.Handle("/groups/{groupID}", http.HandlerFunc(addSlash))
	r.Handle("/groups/{groupID}/posts/{postID}", http.HandlerFunc(addSlash))

	// NotFound rather than a wildcard route so health/control routes
	// registered by other registrars are not shadowed.
	r.NotFound(s.ServeHTTP)
	r.MethodNotAllowed(s.ServeHTTP)
}

func home(*http.Request) (sitehandler.PageRequest, error) {
	return sitehandler.PageRequest{}, nil
}

func post(r *http.Request) (sitehandler.PageRequest, error) {
	id, err := idParam(r, "postID")
	if err != nil {
		return sitehandler.PageRequest{}, err
	}
	return sitehandler.PageRequest{Request: opengraph.Request{Single: true, PostID: id}}, nil
}

func member(r *http.Request) (sitehandler.PageRequest, error) {
	id, err := idParam(r, "userID")
	if err != nil {
		return sitehandler.PageRequest{}, err
	}
	return sitehandler.PageRequest{Request: opengraph.Request{DisplayedUserID: id}}, nil
}

func group(r *http.Request) (sitehandler.PageRequest, error) {
	id, err := idParam(r, "groupID")
	if err != nil {
		return sitehandler.PageRequest{}, err
	}
	return sitehandler.PageRequest{Request: opengraph.Request{CurrentGroupID: id}}, nil
}

// groupPost is a post shown as a group component, not a single post page.
func groupPost(r *http.Request) (sitehandler.PageRequest, error) {
	pr, err := group(r)
	if err != nil {
		return pr, err
	}
	if pr.GroupPostID, err = idParam(r, "postID"); err != nil {
		return sitehandler.PageRequest{}, err
	}
	return pr, nil
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, sitehandler.ErrNoPage
	}
	return id, nil
}

func addSlash(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	target := r.URL.Path + "/"
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	// 308 keeps the method
	http.Redirect(w, r, target, http.StatusPermanentRedirect)
}
