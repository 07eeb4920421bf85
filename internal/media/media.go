// Package media builds public URLs for uploaded images and avatars.
package media

import (
	"context"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/opengraph"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/pathutil"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/xerrors"
)

// URLBuilder maps media references onto a base URL.
//
//	image  2024/03/photo.jpg, large  -> {base}/2024/03/photo-large.jpg
//	image  2024/03/photo.jpg, full   -> {base}/2024/03/photo.jpg
//	avatar user 5                    -> {base}/avatars/users/5/full.jpg
type URLBuilder struct {
	base *url.URL
}

func New(base string) (*URLBuilder, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, xerrors.Wrapf(err, "parse media base url %q", base)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, xerrors.Newf("media base url %q must be absolute http(s)", base)
	}
	if u.Host == "" {
		return nil, xerrors.Newf("media base url %q has no host", base)
	}
	return &URLBuilder{base: u}, nil
}

func (b *URLBuilder) join(p string) string {
	u := *b.base
	u.Path = path.Join("/", u.Path, p)
	u.RawPath = ""
	return u.String()
}

// ImageURL returns the URL of the size variant of ref.
func (b *URLBuilder) ImageURL(_ context.Context, ref string, size opengraph.ImageSize) (string, error) {
	ref = strings.TrimSpace(ref)
	// absolute references are already public
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}
	if ref == "" {
		return "", xerrors.New("empty media reference")
	}
	clean, ok := pathutil.CleanRef(ref)
	if !ok {
		return "", xerrors.Newf("invalid media reference %q", ref)
	}
	if size == "" || size == opengraph.ImageFull {
		return b.join(clean), nil
	}
	ext := path.Ext(clean)
	return b.join(strings.TrimSuffix(clean, ext) + "-" + string(size) + ext), nil
}

// AvatarURL returns the full-size avatar URL of a user or group.
func (b *URLBuilder) AvatarURL(_ context.Context, object opengraph.AvatarObject, id int64) (string, error) {
	switch object {
	case opengraph.AvatarUser, opengraph.AvatarGroup:
	default:
		return "", xerrors.Newf("unknown avatar object %q", object)
	}
	if id <= 0 {
		return "", xerrors.Newf("invalid %s id %d", object, id)
	}
	return b.join(path.Join("avatars", string(object)+"s", strconv.FormatInt(id, 10), "full.jpg")), nil
}
