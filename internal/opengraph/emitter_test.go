package opengraph

import (
	"context"
	"crypto/tls"
	"net/http/httptest"
	"reflect"
	"testing"
)

// Attributes

func TestAttributes_SetKeepsPosition(t *testing.T) {
	a := NewAttributes()
	a.Set(Property, "og:title", "first")
	a.Set(Property, "og:type", "website")
	a.Set(Name, "og:title", "second")

	if a.Len() != 2 {
		t.Fatalf("Len = %d, want 2", a.Len())
	}
	if got := a.Keys(); !reflect.DeepEqual(got, []string{"og:title", "og:type"}) {
		t.Fatalf("Keys = %v", got)
	}
	at, ok := a.Get("og:title")
	if !ok || at.Content != "second" || at.Kind != Name {
		t.Fatalf("Get = %+v, %v", at, ok)
	}
}

func TestAttributes_ZeroValueUsable(t *testing.T) {
	var a Attributes
	a.Set(Itemprop, "name", "x")
	if !a.Has("name") || a.Content("name") != "x" {
		t.Fatalf("zero value Attributes not usable: %+v", a.All())
	}
	if a.Has("missing") || a.Content("missing") != "" {
		t.Fatal("missing key reported present")
	}
}

func TestAttributes_AllReturnsCopy(t *testing.T) {
	a := NewAttributes()
	a.Set(Property, "og:title", "t")
	all := a.All()
	all[0].Content = "mutated"
	if a.Content("og:title") != "t" {
		t.Fatal("All exposed internal storage")
	}
}

// Emit

var siteFixture = Site{
	Name:            "Example Site",
	Description:     "A site about examples",
	Locale:          "en_GB",
	DefaultImageURL: "https://example.test/static/og-default.png",
}

func TestEmit_ArticleOrder(t *testing.T) {
	res := Resolution{
		Page:          Article(42),
		ContentID:     "42",
		Title:         "Hello World",
		Description:   "desc",
		ImageURL:      "https://cdn.test/a-large.jpg",
		Type:          TypeArticle,
		PublishedTime: "2024-03-09T14:30:00+00:00",
	}

	a := Emit(res, siteFixture, testLocation)

	wantKeys := []string{
		KeyLocale, KeySiteName, KeyPublishedTime,
		KeyTitle, KeyItemName, KeyTwitterTitle,
		KeyURL, KeyType, KeyDescription,
		KeyImage, KeyItemImage, KeyTwitterImageSrc,
		KeyTwitterCard,
	}
	if got := a.Keys(); !reflect.DeepEqual(got, wantKeys) {
		t.Fatalf("Keys =\n%v\nwant\n%v", got, wantKeys)
	}

	want := map[string]Attribute{
		KeyLocale:          {Property, KeyLocale, "en_GB"},
		KeySiteName:        {Property, KeySiteName, "Example Site"},
		KeyPublishedTime:   {Property, KeyPublishedTime, "2024-03-09T14:30:00+00:00"},
		KeyTitle:           {Property, KeyTitle, "Hello World"},
		KeyItemName:        {Itemprop, KeyItemName, "Hello World"},
		KeyTwitterTitle:    {Name, KeyTwitterTitle, "Hello World"},
		KeyURL:             {Property, KeyURL, "https://example.test/posts/42/?ref=feed"},
		KeyType:            {Property, KeyType, "article"},
		KeyDescription:     {Property, KeyDescription, "desc"},
		KeyImage:           {Property, KeyImage, "https://cdn.test/a-large.jpg"},
		KeyItemImage:       {Itemprop, KeyItemImage, "https://cdn.test/a-large.jpg"},
		KeyTwitterImageSrc: {Name, KeyTwitterImageSrc, "https://cdn.test/a-large.jpg"},
		KeyTwitterCard:     {Name, KeyTwitterCard, "summary_large_image"},
	}
	for key, w := range want {
		got, ok := a.Get(key)
		if !ok {
			t.Errorf("missing %s", key)
			continue
		}
		if got != w {
			t.Errorf("%s = %+v, want %+v", key, got, w)
		}
	}
}

func TestEmit_PublishedTimeOnlyForArticles(t *testing.T) {
	for _, pc := range []PageContext{Generic(), UserProfile(1), GroupHub(2)} {
		a := Emit(Resolution{Page: pc, Title: "t", Type: TypeWebsite, PublishedTime: "x"}, siteFixture, testLocation)
		if a.Has(KeyPublishedTime) {
			t.Errorf("%v: unexpected %s", pc.Kind, KeyPublishedTime)
		}
		if a.Len() != 12 {
			t.Errorf("%v: Len = %d, want 12", pc.Kind, a.Len())
		}
	}
}

func TestEmit_Fallbacks(t *testing.T) {
	site := siteFixture
	site.Name = "Q&A"
	site.Description = `Say "hi"`
	site.Locale = ""

	a := Emit(Resolution{Page: Generic()}, site, Location{Host: "example.test", RequestURI: "/?a=1&b=2"})

	checks := map[string]string{
		KeyLocale:          "en_US",
		KeySiteName:        "Q&amp;A",
		KeyTitle:           "Q&amp;A",
		KeyTwitterTitle:    "Q&amp;A",
		KeyType:            "website",
		KeyDescription:     "Say &#34;hi&#34;",
		KeyImage:           "https://example.test/static/og-default.png",
		KeyTwitterImageSrc: "https://example.test/static/og-default.png",
		KeyURL:             "http://example.test/?a=1&amp;b=2",
	}
	for key, want := range checks {
		if got := a.Content(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
}

func TestEmit_RequiredKeysNonEmpty(t *testing.T) {
	g := mustNew(t, testOptions())
	ctx := context.Background()

	reqs := []Request{
		{Single: true, PostID: 42},
		{Single: true, PostID: 999},
		{DisplayedUserID: 6},
		{CurrentGroupID: 9},
		{},
	}
	for _, r := range reqs {
		r.Location = testLocation
		_, a := g.Render(ctx, r)
		for _, key := range []string{KeyTitle, KeyType, KeyURL, KeyImage, KeyDescription} {
			if a.Content(key) == "" {
				t.Errorf("%+v: %s empty", r, key)
			}
		}
	}
}

func TestRender_ObservesFallbacks(t *testing.T) {
	obs := newRecordingObserver()
	opts := testOptions()
	opts.Observer = obs
	g := mustNew(t, opts)

	g.Render(context.Background(), Request{Location: testLocation})

	if obs.fallbacks["description"] != 1 || obs.fallbacks["image"] != 1 {
		t.Fatalf("fallbacks = %v", obs.fallbacks)
	}
	if obs.fallbacks["title"] != 0 {
		t.Fatalf("title fallback recorded for generic page: %v", obs.fallbacks)
	}
}

// Location

func TestLocation_URL(t *testing.T) {
	tests := []struct {
		loc  Location
		want string
	}{
		{Location{Host: "a.test", RequestURI: "/x?y=1", TLS: true}, "https://a.test/x?y=1"},
		{Location{Host: "a.test"}, "http://a.test/"},
	}
	for _, tt := range tests {
		if got := tt.loc.URL(); got != tt.want {
			t.Errorf("URL() = %q, want %q", got, tt.want)
		}
	}
}

func TestLocationFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/posts/1/?utm=x", nil)
	r.Host = "example.test"
	loc := LocationFromRequest(r, false)
	if loc.Host != "example.test" || loc.RequestURI != "/posts/1/?utm=x" || loc.TLS {
		t.Fatalf("loc = %+v", loc)
	}

	r.Header.Set("X-Forwarded-Proto", "https, http")
	if LocationFromRequest(r, false).TLS {
		t.Fatal("forwarded proto honored without trust")
	}
	if !LocationFromRequest(r, true).TLS {
		t.Fatal("forwarded proto ignored with trust")
	}

	r.Header.Del("X-Forwarded-Proto")
	r.TLS = &tls.ConnectionState{}
	if !LocationFromRequest(r, false).TLS {
		t.Fatal("TLS connection not detected")
	}
}
