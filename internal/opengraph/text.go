package opengraph

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	excerptWords       = 35
	excerptMore        = "..."
	memberUpdateLength = 358
	groupExcerptLength = 225
	truncateEnding     = " […]"
)

// DefaultShortcodes are the shortcode tags stripped from post bodies when
// Options.Shortcodes is empty.
var DefaultShortcodes = []string{"caption", "gallery", "embed", "audio", "video", "playlist"}

// textFilter turns stored markup into plain text suitable for a content attribute.
type textFilter struct {
	policy     *bluemonday.Policy
	shortcodes []*regexp.Regexp
}

func newTextFilter(tags []string) (*textFilter, error) {
	f := &textFilter{policy: bluemonday.StrictPolicy()}
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		// [tag ...], [tag ...]body[/tag] and the escaped [[tag]] form.
		// RE2 has no backreferences so each tag gets its own expression.
		q := regexp.QuoteMeta(tag)
		re, err := regexp.Compile(`\[(\[?)` + q + `\b[^\]]*\](?:(?s:.*?)\[/` + q + `\])?(\]?)`)
		if err != nil {
			return nil, err
		}
		f.shortcodes = append(f.shortcodes, re)
	}
	return f, nil
}

// stripShortcodes removes registered shortcodes. A doubled bracket escapes the
// tag, [[gallery]] is kept as the literal [gallery].
func (f *textFilter) stripShortcodes(s string) string {
	if !strings.Contains(s, "[") {
		return s
	}
	for _, re := range f.shortcodes {
		s = re.ReplaceAllStringFunc(s, func(m string) string {
			sub := re.FindStringSubmatch(m)
			if sub[1] == "[" && sub[2] == "]" {
				return m[1 : len(m)-1]
			}
			return ""
		})
	}
	return s
}

// stripTags removes all markup and returns unescaped plain text.
func (f *textFilter) stripTags(s string) string {
	if s == "" {
		return ""
	}
	return html.UnescapeString(f.policy.Sanitize(s))
}

func (f *textFilter) plain(s string) string {
	return f.stripTags(f.stripShortcodes(s))
}

// excerpt builds the article description: the hand-written excerpt when there
// is one, otherwise the first 35 words of the body.
func (f *textFilter) excerpt(p Post) string {
	var text string
	if strings.TrimSpace(p.Excerpt) != "" {
		text = f.plain(p.Excerpt)
	} else {
		text = f.plain(p.Content)
		words := strings.Fields(text)
		if len(words) > excerptWords {
			words = append(words[:excerptWords:excerptWords], excerptMore)
			text = strings.Join(words, " ")
		}
	}
	return html.EscapeString(stripSlashes(text))
}

func (f *textFilter) memberUpdate(s string) string {
	s = truncate(f.stripTags(s), memberUpdateLength)
	return html.EscapeString(strings.TrimSpace(s))
}

func (f *textFilter) groupDescription(s string) string {
	s = truncate(f.plain(s), groupExcerptLength)
	return strings.TrimSpace(html.EscapeString(s))
}

// truncate shortens s to at most n runes including the ending, breaking on the
// last space when there is one.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	keep := n - utf8.RuneCountInString(truncateEnding)
	if keep <= 0 {
		return truncateEnding
	}
	cut := s
	for i := range s {
		if keep == 0 {
			cut = s[:i]
			break
		}
		keep--
	}
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " \t\r\n") + truncateEnding
}

// stripSlashes removes backslash escaping: \x becomes x and \\ becomes \.
func stripSlashes(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	escaped := false
	for _, r := range s {
		if r == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}
