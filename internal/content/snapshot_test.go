package content

import (
	"context"
	"strings"
	"testing"
)

func TestNewSnapshot_NilDocument(t *testing.T) {
	if _, err := NewSnapshot(nil, Meta{}); err == nil {
		t.Fatal("expected error for nil document")
	}
}

func TestNewSnapshot_VersionFromDocument(t *testing.T) {
	s := mustSnapshot(t, testDocument("doc-version"), Meta{})
	if s.Meta.Version != "doc-version" {
		t.Fatalf("Version = %q", s.Meta.Version)
	}

	s = mustSnapshot(t, testDocument("doc-version"), Meta{Version: "meta-version"})
	if s.Meta.Version != "meta-version" {
		t.Fatalf("explicit meta version overwritten: %q", s.Meta.Version)
	}
}

func TestNewSnapshot_RejectsBadIDs(t *testing.T) {
	tests := []struct {
		name string
		mut  func(d *Document)
		want string
	}{
		{"duplicate post", func(d *Document) { d.Posts = append(d.Posts, PostRecord{ID: 42, Title: "dup"}) }, "duplicate post id 42"},
		{"zero post", func(d *Document) { d.Posts = append(d.Posts, PostRecord{Title: "zero"}) }, "invalid id"},
		{"duplicate member", func(d *Document) { d.Members = append(d.Members, MemberRecord{ID: 5}) }, "duplicate member id 5"},
		{"negative member", func(d *Document) { d.Members = append(d.Members, MemberRecord{ID: -1}) }, "invalid id"},
		{"duplicate group", func(d *Document) { d.Groups = append(d.Groups, GroupRecord{ID: 9}) }, "duplicate group id 9"},
		{"zero group", func(d *Document) { d.Groups = append(d.Groups, GroupRecord{}) }, "invalid id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := testDocument("v")
			tt.mut(doc)
			_, err := NewSnapshot(doc, Meta{})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestSnapshot_Counts(t *testing.T) {
	s := mustSnapshot(t, testDocument("v"), Meta{})
	posts, members, groups := s.Counts()
	if posts != 2 || members != 1 || groups != 1 {
		t.Fatalf("Counts = %d, %d, %d", posts, members, groups)
	}
}

func TestSnapshot_RecordConversion(t *testing.T) {
	s := mustSnapshot(t, testDocument("v"), Meta{})
	ctx := context.Background()

	p, _ := s.Post(ctx, 42)
	if p.ID != 42 || p.Content != "<p>Hi</p>" || p.PublishedAt.Year() != 2024 {
		t.Fatalf("Post = %+v", p)
	}
	m, _ := s.Member(ctx, 5)
	if !m.Active || m.LatestUpdate != "hi" {
		t.Fatalf("Member = %+v", m)
	}
	g, _ := s.Group(ctx, 9)
	if g.Description != "We write Go." {
		t.Fatalf("Group = %+v", g)
	}
}

func TestDecodeDocument(t *testing.T) {
	doc, err := DecodeDocument(encodeDocument(t, testDocument("v7")))
	if err != nil {
		t.Fatalf("DecodeDocument: %v", err)
	}
	if doc.Version != "v7" || len(doc.Posts) != 2 {
		t.Fatalf("doc = %+v", doc)
	}
	if _, err := DecodeDocument([]byte("[")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
