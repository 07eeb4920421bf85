package sitehandler

import (
	"io/fs"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/pathutil"
)

// resolveAsset maps a URL path below the static prefix to a file in fsys.
// Directories, dot segments, backslashes and NUL bytes never resolve.
func resolveAsset(urlPath string, fsys fs.FS) (string, bool) {
	if fsys == nil {
		return "", false
	}
	name, ok := pathutil.CleanRef(urlPath)
	if !ok {
		return "", false
	}
	if !existsFile(fsys, name) {
		return "", false
	}
	return name, true
}

func existsFile(fsys fs.FS, name string) bool {
	if name == "" || !fs.ValidPath(name) {
		return false
	}
	info, err := fs.Stat(fsys, name)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
