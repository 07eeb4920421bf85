package content

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/cryptoutil"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/log"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/xerrors"
)

// ErrChecksumMismatch is returned when a downloaded document does not hash
// to the digest it was requested by.
var ErrChecksumMismatch = errors.New("content: checksum mismatch")

type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type ssmAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SignatureVerifier checks a detached signature over a document.
// Implemented by cryptoutil.KMSVerifier.
type SignatureVerifier interface {
	VerifySignature(ctx context.Context, message, signature []byte) error
}

// LoaderOptions locate published documents. The SSM parameter holds the
// SHA-256 of the current document, stored at s3://{S3Bucket}/{S3Prefix}/{hash}.json
// with an optional detached signature next to it at {hash}.json.sig.
type LoaderOptions struct {
	Logger log.Logger

	SSMParam string
	S3Bucket string
	S3Prefix string

	// Verifier makes the .sig object mandatory when set.
	Verifier SignatureVerifier

	// AWSConfig builds the clients not injected below. default: LoadDefaultConfig
	AWSConfig *aws.Config
	S3Client  s3API
	SSMClient ssmAPI
}

type Loader struct {
	opts      LoaderOptions
	ssmClient ssmAPI
	s3Client  s3API
	logger    log.Logger
}

func NewLoader(ctx context.Context, opts LoaderOptions) (*Loader, error) {
	switch {
	case opts.SSMParam == "":
		return nil, xerrors.New("content loader: SSMParam is required")
	case opts.S3Bucket == "":
		return nil, xerrors.New("content loader: S3Bucket is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	l := &Loader{opts: opts, ssmClient: opts.SSMClient, s3Client: opts.S3Client, logger: opts.Logger}
	if l.ssmClient != nil && l.s3Client != nil {
		return l, nil
	}

	awsCfg, err := awsConfig(ctx, opts.AWSConfig)
	if err != nil {
		return nil, err
	}
	if l.ssmClient == nil {
		l.ssmClient = ssm.NewFromConfig(awsCfg)
	}
	if l.s3Client == nil {
		l.s3Client = s3.NewFromConfig(awsCfg)
	}
	return l, nil
}

func awsConfig(ctx context.Context, c *aws.Config) (aws.Config, error) {
	if c != nil {
		return *c, nil
	}
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, xerrors.Wrap(err, "load AWS config")
	}
	return cfg, nil
}

// FetchCurrentHash reads and normalizes the published document digest.
func (l *Loader) FetchCurrentHash(ctx context.Context) (string, error) {
	out, err := l.ssmClient.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(l.opts.SSMParam),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "get SSM parameter %s", l.opts.SSMParam)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", xerrors.Newf("SSM parameter %s has no value", l.opts.SSMParam)
	}
	hash, err := cryptoutil.ParseSHA256(*out.Parameter.Value)
	if err != nil {
		return "", xerrors.Wrapf(err, "SSM parameter %s", l.opts.SSMParam)
	}
	return hash, nil
}

func (l *Loader) s3Key(hash string) string {
	return path.Join(strings.Trim(l.opts.S3Prefix, "/"), hash+".json")
}

func (l *Loader) download(ctx context.Context, key string, limit int64) ([]byte, string, error) {
	uri := "s3://" + l.opts.S3Bucket + "/" + key
	out, err := l.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.opts.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", xerrors.Wrapf(err, "get %s", uri)
	}
	defer out.Body.Close()

	data, sum, err := readDigest(out.Body, limit)
	if err != nil {
		return nil, "", xerrors.Wrapf(err, "read %s", uri)
	}
	return data, sum, nil
}

// Load resolves the current digest through SSM and loads that document.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	hash, err := l.FetchCurrentHash(ctx)
	if err != nil {
		return nil, err
	}
	return l.LoadHash(ctx, hash)
}

// LoadHash downloads the document published under hash, checks its digest
// and signature, and indexes it.
func (l *Loader) LoadHash(ctx context.Context, hash string) (*Snapshot, error) {
	started := time.Now().UTC()
	key := l.s3Key(hash)
	l.logger.Debug(ctx, "downloading content document", "bucket", l.opts.S3Bucket, "key", key)

	data, sum, err := l.download(ctx, key, maxDocumentSize)
	if err != nil {
		return nil, err
	}
	if !cryptoutil.HashEqual(sum, hash) {
		return nil, xerrors.Wrapf(ErrChecksumMismatch, "%s: got sha256 %s", key, sum)
	}
	signed, err := l.verify(ctx, key, data)
	if err != nil {
		return nil, err
	}

	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, err
	}
	snap, err := NewSnapshot(doc, Meta{Hash: hash, Source: SourceS3, VerifiedAt: time.Now().UTC(), Signed: signed})
	if err != nil {
		return nil, err
	}
	snap.LoadedAt = started

	posts, members, groups := snap.Counts()
	l.logger.Info(ctx, "loaded content document",
		"hash", hash,
		"version", snap.Meta.Version,
		"bytes", len(data),
		"posts", posts, "members", members, "groups", groups,
		"signed", signed,
	)
	return snap, nil
}

// verify checks the detached signature when a verifier is configured.
func (l *Loader) verify(ctx context.Context, key string, data []byte) (bool, error) {
	if l.opts.Verifier == nil {
		return false, nil
	}
	sig, _, err := l.download(ctx, key+".sig", maxSignatureSize)
	if err != nil {
		return false, xerrors.Wrap(err, "fetch document signature")
	}
	if err := l.opts.Verifier.VerifySignature(ctx, data, sig); err != nil {
		return false, xerrors.Wrap(err, "verify document signature")
	}
	return true, nil
}

// LoadIntoManager loads the current document and activates it.
func (l *Loader) LoadIntoManager(ctx context.Context, mgr *Manager) error {
	snap, err := l.Load(ctx)
	if err != nil {
		return err
	}
	mgr.Set(*snap)
	return nil
}
