package opengraph

import (
	"bufio"
	"context"
	"io"

	"github.com/a-h/templ"
)

const (
	headOpen  = "<!-- Open Graph Data post_id: "
	headClose = "<!-- END Open Graph Data -->"
	noPostID  = "none set"

	namespacePrefix = ` prefix="og: http://ogp.me/ns# fb: http://ogp.me/ns/fb# article: http://ogp.me/ns/article#"`
)

// LanguageAttributes appends the Open Graph namespace prefix to the attributes
// of the <html> element.
func (g *Generator) LanguageAttributes(attr string) string {
	return attr + namespacePrefix
}

// WriteHead resolves r and writes the <meta> block for the document head.
func (g *Generator) WriteHead(ctx context.Context, w io.Writer, r Request) error {
	res, attrs := g.Render(ctx, r)
	return writeAttributes(w, res.ContentID, attrs)
}

// Head is WriteHead as a templ component.
func (g *Generator) Head(r Request) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return g.WriteHead(ctx, w, r)
	})
}

// AttributesComponent renders an already emitted attribute list, for hosts
// that need the Resolution before writing the head.
func AttributesComponent(contentID string, attrs *Attributes) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return writeAttributes(w, contentID, attrs)
	})
}

// writeAttributes renders attrs one tag per line. Contents are written as
// given, they were escaped when the attributes were built.
func writeAttributes(w io.Writer, contentID string, attrs *Attributes) error {
	if contentID == "" {
		contentID = noPostID
	}
	bw := bufio.NewWriter(w)
	_, _ = bw.WriteString(headOpen + contentID + "-->\n")
	for _, a := range attrs.list {
		_, _ = bw.WriteString(`<meta ` + a.Kind.String() + `="` + a.Key + `" content="` + a.Content + "\"/>\n")
	}
	_, _ = bw.WriteString(headClose + "\n")
	return bw.Flush()
}
