package content

import (
	"context"
	"time"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/opengraph"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/xerrors"
)

// Snapshot is an immutable, indexed view of one Document.
type Snapshot struct {
	Meta     Meta
	LoadedAt time.Time

	posts   map[int64]opengraph.Post
	members map[int64]opengraph.Member
	groups  map[int64]opengraph.Group
}

// NewSnapshot indexes doc by id. Duplicate or zero ids are rejected.
func NewSnapshot(doc *Document, meta Meta) (*Snapshot, error) {
	if doc == nil {
		return nil, xerrors.New("snapshot: document is nil")
	}
	s := &Snapshot{
		Meta:    meta,
		posts:   make(map[int64]opengraph.Post, len(doc.Posts)),
		members: make(map[int64]opengraph.Member, len(doc.Members)),
		groups:  make(map[int64]opengraph.Group, len(doc.Groups)),
	}
	if s.Meta.Version == "" {
		s.Meta.Version = doc.Version
	}

	for _, p := range doc.Posts {
		if p.ID <= 0 {
			return nil, xerrors.Newf("snapshot: post %q has invalid id %d", p.Title, p.ID)
		}
		if _, dup := s.posts[p.ID]; dup {
			return nil, xerrors.Newf("snapshot: duplicate post id %d", p.ID)
		}
		s.posts[p.ID] = p.Post()
	}
	for _, m := range doc.Members {
		if m.ID <= 0 {
			return nil, xerrors.Newf("snapshot: member %q has invalid id %d", m.DisplayName, m.ID)
		}
		if _, dup := s.members[m.ID]; dup {
			return nil, xerrors.Newf("snapshot: duplicate member id %d", m.ID)
		}
		s.members[m.ID] = m.Member()
	}
	for _, g := range doc.Groups {
		if g.ID <= 0 {
			return nil, xerrors.Newf("snapshot: group %q has invalid id %d", g.Name, g.ID)
		}
		if _, dup := s.groups[g.ID]; dup {
			return nil, xerrors.Newf("snapshot: duplicate group id %d", g.ID)
		}
		s.groups[g.ID] = g.Group()
	}
	return s, nil
}

func (s *Snapshot) Post(_ context.Context, id int64) (opengraph.Post, error) {
	p, ok := s.posts[id]
	if !ok {
		return opengraph.Post{}, opengraph.ErrNotFound
	}
	return p, nil
}

func (s *Snapshot) Member(_ context.Context, id int64) (opengraph.Member, error) {
	m, ok := s.members[id]
	if !ok {
		return opengraph.Member{}, opengraph.ErrNotFound
	}
	return m, nil
}

func (s *Snapshot) Group(_ context.Context, id int64) (opengraph.Group, error) {
	g, ok := s.groups[id]
	if !ok {
		return opengraph.Group{}, opengraph.ErrNotFound
	}
	return g, nil
}

// Counts returns the number of posts, members and groups in the snapshot.
func (s *Snapshot) Counts() (posts, members, groups int) {
	return len(s.posts), len(s.members), len(s.groups)
}
