// Package contentdb is a SQLite-backed content repository for the Open
// Graph generator. It is the alternative to the in-memory snapshot when
// content is maintained by another process writing to the same database.
package contentdb

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/content"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/opengraph"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/xerrors"
)

const timeLayout = time.RFC3339Nano

// Store wraps a SQLite database holding posts, members and groups.
type Store struct {
	db       *sql.DB
	path     string
	openedAt time.Time
}

// Open opens (or creates) the database at path, ensures the data directory
// exists and creates the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, xerrors.Wrapf(err, "create data dir %s", dir)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, xerrors.Wrapf(err, "open sqlite %s", path)
	}
	// WAL lets readers run while an importer writes
	if _, err := db.ExecContext(ctx, `
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA foreign_keys=ON;
	`); err != nil {
		db.Close()
		return nil, xerrors.Wrap(err, "set sqlite pragmas")
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	s := &Store{db: db, path: path, openedAt: time.Now().UTC()}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable. Used as a readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ReadyErr pings with a short deadline so page handlers can gate on it.
func (s *Store) ReadyErr() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Ping(ctx); err != nil {
		return xerrors.Wrap(err, "contentdb not reachable")
	}
	return nil
}

// Status reports row counts. Version is the database path since rows change
// in place.
func (s *Store) Status(ctx context.Context) (content.Status, error) {
	p, m, g, err := s.Counts(ctx)
	if err != nil {
		return content.Status{}, err
	}
	return content.Status{
		Meta:     content.Meta{Version: filepath.Base(s.path), Source: content.SourceSQLite},
		LoadedAt: s.openedAt,
		Posts:    p,
		Members:  m,
		Groups:   g,
	}, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS posts (
    id INTEGER PRIMARY KEY,
    title TEXT NOT NULL,
    excerpt TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    published_at TEXT NOT NULL DEFAULT '',
    featured_image TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS members (
    id INTEGER PRIMARY KEY,
    display_name TEXT NOT NULL,
    active INTEGER NOT NULL DEFAULT 1,
    latest_update TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS member_groups (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT ''
);
`)
	if err != nil {
		return xerrors.Wrap(err, "create schema")
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return opengraph.ErrNotFound
	}
	return err
}

func (s *Store) Post(ctx context.Context, id int64) (opengraph.Post, error) {
	var p opengraph.Post
	var published string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, excerpt, content, published_at, featured_image FROM posts WHERE id = ?`, id,
	).Scan(&p.ID, &p.Title, &p.Excerpt, &p.Content, &published, &p.FeaturedImage)
	if err != nil {
		return opengraph.Post{}, notFound(err)
	}
	if published != "" {
		t, err := time.Parse(timeLayout, published)
		if err != nil {
			return opengraph.Post{}, xerrors.Wrapf(err, "post %d: parse published_at", id)
		}
		p.PublishedAt = t
	}
	return p, nil
}

func (s *Store) Member(ctx context.Context, id int64) (opengraph.Member, error) {
	var m opengraph.Member
	var active int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, display_name, active, latest_update FROM members WHERE id = ?`, id,
	).Scan(&m.ID, &m.DisplayName, &active, &m.LatestUpdate)
	if err != nil {
		return opengraph.Member{}, notFound(err)
	}
	m.Active = active == 1
	return m, nil
}

func (s *Store) Group(ctx context.Context, id int64) (opengraph.Group, error) {
	var g opengraph.Group
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description FROM member_groups WHERE id = ?`, id,
	).Scan(&g.ID, &g.Name, &g.Description)
	if err != nil {
		return opengraph.Group{}, notFound(err)
	}
	return g, nil
}

// Import upserts every record of doc in one transaction.
func (s *Store) Import(ctx context.Context, doc *content.Document) error {
	if doc == nil {
		return xerrors.New("import: document is nil")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return xerrors.Wrap(err, "import: begin")
	}
	defer tx.Rollback()

	for _, p := range doc.Posts {
		published := ""
		if !p.PublishedAt.IsZero() {
			published = p.PublishedAt.UTC().Format(timeLayout)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO posts (id, title, excerpt, content, published_at, featured_image)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    title = excluded.title,
    excerpt = excluded.excerpt,
    content = excluded.content,
    published_at = excluded.published_at,
    featured_image = excluded.featured_image`,
			p.ID, p.Title, p.Excerpt, p.Content, published, p.FeaturedImage); err != nil {
			return xerrors.Wrapf(err, "import post %d", p.ID)
		}
	}
	for _, m := range doc.Members {
		active := 0
		if m.Active {
			active = 1
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO members (id, display_name, active, latest_update)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    display_name = excluded.display_name,
    active = excluded.active,
    latest_update = excluded.latest_update`,
			m.ID, m.DisplayName, active, m.LatestUpdate); err != nil {
			return xerrors.Wrapf(err, "import member %d", m.ID)
		}
	}
	for _, g := range doc.Groups {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO member_groups (id, name, description)
VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    description = excluded.description`,
			g.ID, g.Name, g.Description); err != nil {
			return xerrors.Wrapf(err, "import group %d", g.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return xerrors.Wrap(err, "import: commit")
	}
	return nil
}

// Counts returns the number of posts, members and groups stored.
func (s *Store) Counts(ctx context.Context) (posts, members, groups int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM posts), (SELECT COUNT(*) FROM members), (SELECT COUNT(*) FROM member_groups)`,
	).Scan(&posts, &members, &groups)
	if err != nil {
		err = xerrors.Wrap(err, "count content")
	}
	return posts, members, groups, err
}
