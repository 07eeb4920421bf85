package webassets

import (
	"embed"
	"fmt"
	"io/fs"
)

// SeedDocument is the name of the bundled content document inside SeedFS.
const SeedDocument = "content.yaml"

// DefaultImage is the name of the fallback share image inside StaticFS.
const DefaultImage = "og-default.png"

//go:embed fallback seed static
var embedded embed.FS

func sub(dir string) fs.FS {
	s, err := fs.Sub(embedded, dir)
	if err != nil {
		panic(fmt.Errorf("webassets: %s subfs: %w", dir, err))
	}
	return s
}

// FallbackFS holds maintenance.html and 404.html.
func FallbackFS() fs.FS { return sub("fallback") }

// StaticFS holds assets served under /static/.
func StaticFS() fs.FS { return sub("static") }

// SeedFS holds the bundled content document.
func SeedFS() fs.FS { return sub("seed") }
