package sitehandler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/log"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/opengraph"
)

// ErrNoPage is returned by a RequestBuilder when the URL names no page.
var ErrNoPage = errors.New("sitehandler: no such page")

// PageRequest is what a route knows about the page it serves.
type PageRequest struct {
	opengraph.Request
	// GroupPostID is the post shown inside a group component page.
	GroupPostID int64
}

// RequestBuilder extracts the page signals from an incoming request.
type RequestBuilder func(r *http.Request) (PageRequest, error)

type Handler struct {
	opts        Options
	maintenance response
	notFound    response
}

func New(opts Options) (*Handler, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	h := &Handler{opts: opts}

	var err error
	h.maintenance, err = htmlFile(opts.FallbackFS, opts.MaintenanceFile)
	if err != nil {
		return nil, fmt.Errorf("%w: maintenance page: %v", ErrInvalidOptions, err)
	}
	h.maintenance.cacheControl = "no-store"
	h.maintenance.retryAfter = "60"

	// the 404 page is optional
	h.notFound, err = htmlFile(opts.FallbackFS, opts.Fallback404File)
	if err != nil {
		h.notFound = response{contentType: "text/plain; charset=utf-8", body: []byte("404 page not found")}
	}
	h.notFound.cacheControl = "no-store"
	return h, nil
}

// ServeHTTP answers requests no route matched: maintenance while content is
// not ready, otherwise 404.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r) {
		return
	}
	if !h.ready(r.Context()) {
		h.serveMaintenance(w, r)
		return
	}
	h.serveNotFound(w, r)
}

// Page serves an HTML page whose head carries the Open Graph block for the
// request build returns.
func (h *Handler) Page(build RequestBuilder) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r) {
			return
		}
		ctx := r.Context()
		if !h.ready(ctx) {
			h.serveMaintenance(w, r)
			return
		}

		pr, err := build(r)
		if err != nil {
			h.serveNotFound(w, r)
			return
		}
		pr.Location = opengraph.LocationFromRequest(r, h.opts.TrustForwardedProto)
		if pr.GroupPostID != 0 {
			ctx = WithGroupPost(ctx, pr.GroupPostID)
		}

		if err := h.exists(ctx, pr); err != nil {
			if errors.Is(err, opengraph.ErrNotFound) {
				h.serveNotFound(w, r)
				return
			}
			log.FromContext(ctx).Error(ctx, err, "page lookup failed")
			h.serveMaintenance(w, r)
			return
		}

		res, attrs := h.opts.Generator.Render(ctx, pr.Request)

		var buf bytes.Buffer
		if err := page(h.opts.Generator, h.opts.Lang, res, attrs).Render(ctx, &buf); err != nil {
			log.FromContext(ctx).Error(ctx, err, "render page")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		response{
			contentType:  "text/html; charset=utf-8",
			cacheControl: h.opts.HTMLCacheControl,
			body:         buf.Bytes(),
		}.write(w, r, http.StatusOK)
	})
}

// Static serves files from StaticFS. Mount it behind http.StripPrefix.
func (h *Handler) Static() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r) {
			return
		}
		file, ok := resolveAsset(r.URL.Path, h.opts.StaticFS)
		if !ok {
			h.serveNotFound(w, r)
			return
		}
		if cc := cacheControlForFile(file, &h.opts); cc != "" {
			w.Header().Set("Cache-Control", cc)
		}
		http.ServeFileFS(w, r, h.opts.StaticFS, file)
	})
}

// exists checks every object the request names so unknown ids answer 404
// instead of a generic page.
func (h *Handler) exists(ctx context.Context, pr PageRequest) error {
	c := h.opts.Content
	if pr.Single && pr.PostID != 0 {
		if _, err := c.Post(ctx, pr.PostID); err != nil {
			return err
		}
	}
	if pr.GroupPostID != 0 {
		if _, err := c.Post(ctx, pr.GroupPostID); err != nil {
			return err
		}
	}
	if pr.DisplayedUserID != 0 {
		if _, err := c.Member(ctx, pr.DisplayedUserID); err != nil {
			return err
		}
	}
	if pr.CurrentGroupID != 0 {
		if _, err := c.Group(ctx, pr.CurrentGroupID); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) ready(ctx context.Context) bool {
	if h.opts.Ready == nil {
		return true
	}
	if err := h.opts.Ready.ReadyErr(); err != nil {
		log.FromContext(ctx).Debug(ctx, "content not ready", "err", err)
		return false
	}
	return true
}

// only GET and HEAD are served
func allowMethod(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", "GET, HEAD")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusMethodNotAllowed)
	return false
}

func (h *Handler) serveMaintenance(w http.ResponseWriter, r *http.Request) {
	h.maintenance.write(w, r, http.StatusServiceUnavailable)
}

func (h *Handler) serveNotFound(w http.ResponseWriter, r *http.Request) {
	h.notFound.write(w, r, http.StatusNotFound)
}
