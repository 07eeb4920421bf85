package content

import (
	"encoding/json"
	"time"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/opengraph"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/xerrors"
)

// Document is the distributable form of site content. The same shape is
// used for the JSON documents in S3 and the YAML seed.
type Document struct {
	Version string         `json:"version" yaml:"version"`
	Posts   []PostRecord   `json:"posts" yaml:"posts"`
	Members []MemberRecord `json:"members" yaml:"members"`
	Groups  []GroupRecord  `json:"groups" yaml:"groups"`
}

type PostRecord struct {
	ID      int64  `json:"id" yaml:"id"`
	Title   string `json:"title" yaml:"title"`
	Excerpt string `json:"excerpt,omitempty" yaml:"excerpt"`
	// Content is HTML. Seeds may provide BodyMarkdown instead.
	Content       string    `json:"content,omitempty" yaml:"content"`
	BodyMarkdown  string    `json:"-" yaml:"body_markdown"`
	PublishedAt   time.Time `json:"published_at" yaml:"published_at"`
	FeaturedImage string    `json:"featured_image,omitempty" yaml:"featured_image"`
}

type MemberRecord struct {
	ID           int64  `json:"id" yaml:"id"`
	DisplayName  string `json:"display_name" yaml:"display_name"`
	Active       bool   `json:"active" yaml:"active"`
	LatestUpdate string `json:"latest_update,omitempty" yaml:"latest_update"`
}

type GroupRecord struct {
	ID          int64  `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
}

func (p PostRecord) Post() opengraph.Post {
	return opengraph.Post{
		ID:            p.ID,
		Title:         p.Title,
		Excerpt:       p.Excerpt,
		Content:       p.Content,
		PublishedAt:   p.PublishedAt,
		FeaturedImage: p.FeaturedImage,
	}
}

func (m MemberRecord) Member() opengraph.Member {
	return opengraph.Member{
		ID:           m.ID,
		DisplayName:  m.DisplayName,
		Active:       m.Active,
		LatestUpdate: m.LatestUpdate,
	}
}

func (g GroupRecord) Group() opengraph.Group {
	return opengraph.Group{ID: g.ID, Name: g.Name, Description: g.Description}
}

// DecodeDocument parses a JSON content document.
func DecodeDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, xerrors.Wrap(err, "decode content document")
	}
	return &doc, nil
}
