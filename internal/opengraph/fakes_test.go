package opengraph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeRepo struct {
	posts   map[int64]Post
	members map[int64]Member
	groups  map[int64]Group
	err     error // returned for every lookup when set
}

func (f *fakeRepo) Post(_ context.Context, id int64) (Post, error) {
	if f.err != nil {
		return Post{}, f.err
	}
	p, ok := f.posts[id]
	if !ok {
		return Post{}, ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) Member(_ context.Context, id int64) (Member, error) {
	if f.err != nil {
		return Member{}, f.err
	}
	m, ok := f.members[id]
	if !ok {
		return Member{}, ErrNotFound
	}
	return m, nil
}

func (f *fakeRepo) Group(_ context.Context, id int64) (Group, error) {
	if f.err != nil {
		return Group{}, f.err
	}
	g, ok := f.groups[id]
	if !ok {
		return Group{}, ErrNotFound
	}
	return g, nil
}

type fakeMedia struct {
	err error
}

func (f fakeMedia) ImageURL(_ context.Context, ref string, size ImageSize) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	dot := strings.LastIndexByte(ref, '.')
	return fmt.Sprintf("https://cdn.test/%s-%s%s", ref[:dot], size, ref[dot:]), nil
}

func (f fakeMedia) AvatarURL(_ context.Context, object AvatarObject, id int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("https://cdn.test/avatars/%ss/%d/full.jpg", object, id), nil
}

type recordingObserver struct {
	mu        sync.Mutex
	renders   map[Kind]int
	fallbacks map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{renders: map[Kind]int{}, fallbacks: map[string]int{}}
}

func (o *recordingObserver) ObserveRender(k Kind) {
	o.mu.Lock()
	o.renders[k]++
	o.mu.Unlock()
}

func (o *recordingObserver) ObserveFallback(field string) {
	o.mu.Lock()
	o.fallbacks[field]++
	o.mu.Unlock()
}

var errBackend = errors.New("backend unavailable")

var published = time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("w%d", i+1)
	}
	return strings.Join(w, " ")
}

func testRepo() *fakeRepo {
	return &fakeRepo{
		posts: map[int64]Post{
			42: {
				ID:            42,
				Title:         "Hello World",
				Content:       "<p>" + words(40) + "</p>",
				PublishedAt:   published,
				FeaturedImage: "2024/03/hello.jpg",
			},
			7: {
				ID:      7,
				Title:   "Fish & Chips",
				Excerpt: "A <em>short</em> summary",
				Content: words(100),
			},
		},
		members: map[int64]Member{
			5: {ID: 5, DisplayName: "Ada", Active: true, LatestUpdate: "<b>Shipping</b> today"},
			6: {ID: 6, DisplayName: "Bob", Active: false, LatestUpdate: "hidden"},
		},
		groups: map[int64]Group{
			9: {ID: 9, Name: "Go <Gophers>", Description: "[gallery ids=\"1,2\"]We <strong>write</strong> Go."},
		},
	}
}

func testOptions() Options {
	return Options{
		Site: Site{
			Name:            "Example Site",
			Description:     "A site about examples",
			DefaultImageURL: "https://example.test/static/og-default.png",
		},
		Content:       testRepo(),
		Media:         fakeMedia{},
		GroupsEnabled: true,
	}
}

func mustNew(t *testing.T, opts Options) *Generator {
	t.Helper()
	g, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

var testLocation = Location{Host: "example.test", RequestURI: "/posts/42/?ref=feed", TLS: true}
