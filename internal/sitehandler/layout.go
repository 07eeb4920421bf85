package sitehandler

import (
	"context"
	"html"
	"io"

	"github.com/a-h/templ"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/opengraph"
)

// page is the document shell around the Open Graph head block. Title and
// description come from the emitted attributes and are already escaped.
func page(g *opengraph.Generator, lang string, res opengraph.Resolution, attrs *opengraph.Attributes) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		title := attrs.Content(opengraph.KeyTitle)
		desc := attrs.Content(opengraph.KeyDescription)
		langAttr := g.LanguageAttributes(`lang="` + html.EscapeString(lang) + `"`)

		if _, err := io.WriteString(w, "<!DOCTYPE html>\n<html "+langAttr+">\n<head>\n"+
			"<meta charset=\"utf-8\"/>\n"+
			"<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\"/>\n"+
			"<title>"+title+"</title>\n"); err != nil {
			return err
		}
		if err := opengraph.AttributesComponent(res.ContentID, attrs).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</head>\n<body>\n<main data-kind=\""+res.Page.Kind.String()+"\">\n"+
			"<h1>"+title+"</h1>\n"+
			"<p>"+desc+"</p>\n"+
			"</main>\n</body>\n</html>\n")
		return err
	})
}
