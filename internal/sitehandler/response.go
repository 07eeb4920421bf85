package sitehandler

import (
	"io/fs"
	"net/http"
	"strconv"
)

// response is a fully buffered body with its headers. Fallback pages are
// read once in New and served from memory.
type response struct {
	contentType  string
	cacheControl string
	retryAfter   string
	body         []byte
}

func htmlFile(fsys fs.FS, name string) (response, error) {
	body, err := fs.ReadFile(fsys, name)
	if err != nil {
		return response{}, err
	}
	return response{contentType: "text/html; charset=utf-8", body: body}, nil
}

// write sends the response with status. HEAD gets headers only.
func (p response) write(w http.ResponseWriter, r *http.Request, status int) {
	hdr := w.Header()
	hdr.Set("Content-Type", p.contentType)
	hdr.Set("Content-Length", strconv.Itoa(len(p.body)))
	if p.cacheControl != "" {
		hdr.Set("Cache-Control", p.cacheControl)
	}
	if p.retryAfter != "" {
		hdr.Set("Retry-After", p.retryAfter)
	}
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(p.body)
	}
}
