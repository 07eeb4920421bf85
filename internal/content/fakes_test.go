package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/cryptoutil"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/log"
)

const (
	testSSMParam = "/app/opengraph/content/hash"
	testBucket   = "test-bucket"
	testS3Prefix = "content/documents"
)

var errNoSuchKey = errors.New("NoSuchKey")

// fakeS3 serves objects from memory.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	calls   int
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) put(key string, data []byte) {
	f.mu.Lock()
	f.objects[key] = data
	f.mu.Unlock()
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errNoSuchKey
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

// fakeSSM returns a fixed parameter value or error.
type fakeSSM struct {
	mu    sync.Mutex
	value string
	err   error
}

func ssmWithValue(v string) *fakeSSM { return &fakeSSM{value: v} }

func (f *fakeSSM) set(v string, err error) {
	f.mu.Lock()
	f.value, f.err = v, err
	f.mu.Unlock()
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &ssm.GetParameterOutput{
		Parameter: &ssmtypes.Parameter{Name: in.Name, Value: aws.String(f.value)},
	}, nil
}

// fakeVerifier accepts signatures equal to want.
type fakeVerifier struct {
	want []byte
}

func (v fakeVerifier) VerifySignature(_ context.Context, _ []byte, sig []byte) error {
	if !bytes.Equal(sig, v.want) {
		return errors.New("signature mismatch")
	}
	return nil
}

func testDocument(version string) *Document {
	return &Document{
		Version: version,
		Posts: []PostRecord{
			{ID: 42, Title: "Hello World", Content: "<p>Hi</p>", PublishedAt: time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)},
			{ID: 43, Title: "Second", Excerpt: "short"},
		},
		Members: []MemberRecord{{ID: 5, DisplayName: "Ada", Active: true, LatestUpdate: "hi"}},
		Groups:  []GroupRecord{{ID: 9, Name: "Gophers", Description: "We write Go."}},
	}
}

func encodeDocument(t *testing.T, doc *Document) []byte {
	t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal document: %v", err)
	}
	return data
}

func mustSnapshot(t *testing.T, doc *Document, meta Meta) *Snapshot {
	t.Helper()
	s, err := NewSnapshot(doc, meta)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	return s
}

func newTestLoader(s3c *fakeS3, ssmc *fakeSSM, v SignatureVerifier) *Loader {
	return &Loader{
		opts: LoaderOptions{
			Logger:   log.Nop(),
			SSMParam: testSSMParam,
			S3Bucket: testBucket,
			S3Prefix: testS3Prefix,
			Verifier: v,
		},
		s3Client:  s3c,
		ssmClient: ssmc,
		logger:    log.Nop(),
	}
}

// storeDocument puts doc into s3 under its hash and returns the hash.
func storeDocument(t *testing.T, s3c *fakeS3, doc *Document) string {
	t.Helper()
	data := encodeDocument(t, doc)
	hash := cryptoutil.SHA256Hex(data)
	s3c.put(testS3Prefix+"/"+hash+".json", data)
	return hash
}
