package content

import (
	"bytes"
	"io/fs"
	"time"

	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/cryptoutil"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/xerrors"
)

var markdown = goldmark.New()

// ParseSeed decodes a YAML content document. Posts that carry body_markdown
// and no content get their body rendered to HTML.
func ParseSeed(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, xerrors.Wrap(err, "parse seed yaml")
	}
	for i := range doc.Posts {
		p := &doc.Posts[i]
		if p.Content != "" || p.BodyMarkdown == "" {
			continue
		}
		var buf bytes.Buffer
		if err := markdown.Convert([]byte(p.BodyMarkdown), &buf); err != nil {
			return nil, xerrors.Wrapf(err, "render markdown for post %d", p.ID)
		}
		p.Content = buf.String()
	}
	return &doc, nil
}

// LoadSeed reads and indexes the seed document name from fsys.
func LoadSeed(fsys fs.FS, name string) (*Snapshot, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, xerrors.Wrapf(err, "read seed %s", name)
	}
	doc, err := ParseSeed(data)
	if err != nil {
		return nil, err
	}
	snap, err := NewSnapshot(doc, Meta{
		Hash:       cryptoutil.SHA256Hex(data),
		Source:     SourceSeed,
		VerifiedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}
