package sitehandler

import (
	"path"
	"strings"
)

// cacheControlForFile picks the Cache-Control policy for a static file by
// extension. Images and fonts are fingerprinted by the build and never change.
func cacheControlForFile(name string, o *Options) string {
	switch ext := strings.ToLower(path.Ext(name)); ext {
	case ".html", "":
		return o.HTMLCacheControl
	case ".css", ".js", ".mjs", ".map",
		".png", ".jpg", ".jpeg", ".webp", ".gif", ".svg", ".ico",
		".woff", ".woff2":
		return o.AssetCacheControl
	default:
		return o.OtherCacheControl
	}
}
