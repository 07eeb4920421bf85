// Package contenthttp exposes read-only JSON endpoints describing the active
// content and the Open Graph tags a page would carry.
package contenthttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/content"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/log"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/opengraph"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/sitehandler"
)

// StatusProvider is implemented by content.Manager and contentdb.Store.
type StatusProvider interface {
	Status(ctx context.Context) (content.Status, error)
}

// API implements the content status and tag preview endpoints.
type API struct {
	status StatusProvider
	gen    *opengraph.Generator
	logger log.Logger
	now    func() time.Time
}

func NewAPI(status StatusProvider, gen *opengraph.Generator, logger log.Logger) *API {
	if logger == nil {
		logger = log.Nop()
	}
	return &API{status: status, gen: gen, logger: logger, now: time.Now}
}

// RegisterRoutes attaches the endpoints to the router.
func (api *API) RegisterRoutes(r chi.Router) {
	r.Get("/api/content", api.HandleStatus)
	r.Get("/api/opengraph", api.HandlePreview)
}

// StatusResponse is the /api/content body.
type StatusResponse struct {
	Content    *content.Status `json:"content,omitempty"`
	ServerTime time.Time       `json:"server_time"`
	Error      string          `json:"error,omitempty"`
}

// PreviewResponse is the /api/opengraph body.
type PreviewResponse struct {
	Kind      string `json:"kind"`
	ContentID string `json:"content_id,omitempty"`
	URL       string `json:"url"`
	Tags      []Tag  `json:"tags"`
}

// ErrorResponse is the body of a rejected request.
type ErrorResponse struct {
	Error string `json:"error"`
}

type Tag struct {
	Attr    string `json:"attr"`
	Key     string `json:"key"`
	Content string `json:"content"`
}

func (api *API) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := StatusResponse{ServerTime: api.now().UTC().Truncate(time.Second)}

	st, err := api.status.Status(ctx)
	if err != nil {
		resp.Error = "no content loaded"
		if !errors.Is(err, content.ErrNotReady) {
			api.logger.Warn(ctx, "content status failed", "err", err)
			resp.Error = "content status unavailable"
		}
		api.writeJSON(ctx, w, http.StatusServiceUnavailable, resp)
		return
	}
	st.LoadedAt = st.LoadedAt.UTC().Truncate(time.Second)
	resp.Content = &st
	api.writeJSON(ctx, w, http.StatusOK, resp)
}

// HandlePreview renders the tags for the page described by the query:
// post, member, group, and group+post for a group component post. path sets
// the request URI used for og:url.
func (api *API) HandlePreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var req opengraph.Request
	var err error
	if req.PostID, err = queryID(q.Get("post")); err != nil {
		api.badRequest(ctx, w, "invalid post")
		return
	}
	if req.DisplayedUserID, err = queryID(q.Get("member")); err != nil {
		api.badRequest(ctx, w, "invalid member")
		return
	}
	if req.CurrentGroupID, err = queryID(q.Get("group")); err != nil {
		api.badRequest(ctx, w, "invalid group")
		return
	}
	req.Single = req.PostID != 0 && req.CurrentGroupID == 0
	if req.PostID != 0 && req.CurrentGroupID != 0 {
		ctx = sitehandler.WithGroupPost(ctx, req.PostID)
		req.PostID = 0
	}

	path := q.Get("path")
	if path == "" || path[0] != '/' {
		path = "/"
	}
	req.Location = opengraph.LocationFromRequest(r, false)
	req.Location.RequestURI = path

	res, attrs := api.gen.Render(ctx, req)
	resp := PreviewResponse{
		Kind:      res.Page.Kind.String(),
		ContentID: res.ContentID,
		URL:       req.Location.URL(),
	}
	for _, a := range attrs.All() {
		resp.Tags = append(resp.Tags, Tag{Attr: a.Kind.String(), Key: a.Key, Content: a.Content})
	}
	api.logger.Debug(ctx, "served opengraph preview", "kind", resp.Kind, "content_id", resp.ContentID)
	api.writeJSON(ctx, w, http.StatusOK, resp)
}

func (api *API) badRequest(ctx context.Context, w http.ResponseWriter, msg string) {
	api.writeJSON(ctx, w, http.StatusBadRequest, ErrorResponse{Error: msg})
}

func queryID(v string) (int64, error) {
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func (api *API) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.logger.Warn(ctx, "failed to encode JSON response", "error", err)
	}
}
