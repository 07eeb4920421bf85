package main

import (
	"context"
	"io/fs"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/cfg"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/content"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/contentdb"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/cryptoutil"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/log"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/media"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/metrics"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/opengraph"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/sitehandler"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/webassets"
)

// contentBackend is what the page host and content API need from either
// the snapshot manager or the sqlite store.
type contentBackend interface {
	opengraph.Repository
	ReadyErr() error
	Status(ctx context.Context) (content.Status, error)
}

type contentSource struct {
	contentBackend
	// info feeds the X-Content-* headers; only snapshots carry a version.
	info  httpmw.ContentInfo
	close func()
}

func openContent(ctx context.Context, L log.Logger, conf cfg.App, m *metrics.ServerMetrics) (*contentSource, error) {
	if conf.ContentSource == cfg.ContentSourceSQLite {
		store, err := openSQLite(ctx, L, conf.ContentDB, webassets.SeedFS())
		if err != nil {
			return nil, err
		}
		if p, mem, g, err := store.Counts(ctx); err == nil {
			m.SetContentCounts(p, mem, g)
		}
		m.SetContentSource(string(content.SourceSQLite))
		m.SetContentLoadedTimestamp(time.Now())
		return &contentSource{contentBackend: store, close: func() { _ = store.Close() }}, nil
	}

	mgr := content.NewManager()
	if err := runSnapshotSource(ctx, L, conf, m, mgr); err != nil {
		return nil, err
	}
	return &contentSource{contentBackend: mgr, info: mgr, close: func() {}}, nil
}

func newGenerator(conf cfg.App, repo opengraph.Repository, m *metrics.ServerMetrics) (*opengraph.Generator, error) {
	mediaURLs, err := media.New(conf.MediaBaseURL)
	if err != nil {
		return nil, err
	}
	tz, err := time.LoadLocation(conf.SiteTimezone)
	if err != nil {
		return nil, err
	}
	return opengraph.New(opengraph.Options{
		Site: opengraph.Site{
			Name:            conf.SiteName,
			Description:     conf.SiteDescription,
			Locale:          conf.SiteLocale,
			DefaultImageURL: conf.DefaultImageURL,
		},
		Content:       repo,
		Media:         mediaURLs,
		Overrides:     sitehandler.GroupArticleOverrides(),
		GroupsEnabled: conf.EnableGroups,
		Location:      tz,
		Observer:      m,
	})
}

// runSnapshotSource activates the bundled seed, then the published S3
// document, and keeps watching SSM when updates are enabled.
func runSnapshotSource(ctx context.Context, L log.Logger, conf cfg.App, m *metrics.ServerMetrics, mgr *content.Manager) error {
	observe := func(snap *content.Snapshot) {
		m.SetContentSource(string(snap.Meta.Source))
		m.SetContentDocument(snap.Meta.Hash, snap.Meta.Version)
		m.SetContentCounts(snap.Counts())
		m.SetContentLoadedTimestamp(snap.LoadedAt)
	}

	seed, seedErr := content.LoadSeed(webassets.SeedFS(), webassets.SeedDocument)
	if seedErr != nil {
		L.Warn(ctx, "no usable seed content", "err", seedErr)
	} else {
		mgr.Set(*seed)
		seed, _ = mgr.Get()
		observe(seed)
		L.Info(ctx, "loaded seed content", "content_version", seed.Meta.Version, "content_hash", seed.Meta.Hash)
	}

	if !conf.EnableContentUpdates {
		return seedErr
	}

	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return err
	}
	loader, err := content.NewLoader(ctx, content.LoaderOptions{
		Logger:    L,
		SSMParam:  conf.ContentSSMParam,
		S3Bucket:  conf.ContentS3Bucket,
		S3Prefix:  conf.ContentS3Prefix,
		S3Client:  s3.NewFromConfig(awsCfg),
		SSMClient: ssm.NewFromConfig(awsCfg),
		Verifier:  cryptoutil.NewKMSVerifier(kms.NewFromConfig(awsCfg), conf.ContentSigningKeyARN),
	})
	if err != nil {
		return err
	}

	switch err := loader.LoadIntoManager(ctx, mgr); {
	case err != nil && seedErr != nil:
		return err
	case err != nil:
		L.Error(ctx, err, "failed to load content document, serving seed")
	default:
		snap, _ := mgr.Get()
		observe(snap)
		L.Info(ctx, "loaded content document from S3",
			"content_version", snap.Meta.Version,
			"content_hash", snap.Meta.Hash,
		)
	}

	watcher := content.NewWatcher(content.WatcherOptions{
		Logger:  L,
		Loader:  loader,
		Manager: mgr,
		Metrics: m,
		OnSwap:  observe,
	})
	go func() { _ = watcher.Run(ctx) }()
	return nil
}

// openSQLite opens the content database, importing the bundled seed into
// an empty one.
func openSQLite(ctx context.Context, L log.Logger, path string, seedFS fs.FS) (*contentdb.Store, error) {
	store, err := contentdb.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := importSeed(ctx, L, store, path, seedFS); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func importSeed(ctx context.Context, L log.Logger, store *contentdb.Store, path string, seedFS fs.FS) error {
	posts, _, _, err := store.Counts(ctx)
	if err != nil || posts > 0 {
		return err
	}
	data, err := fs.ReadFile(seedFS, webassets.SeedDocument)
	if err != nil {
		L.Warn(ctx, "content database is empty and no seed is bundled", "path", path)
		return nil
	}
	doc, err := content.ParseSeed(data)
	if err != nil {
		return err
	}
	if err := store.Import(ctx, doc); err != nil {
		return err
	}
	L.Info(ctx, "imported seed content into empty database", "path", path, "posts", len(doc.Posts))
	return nil
}
