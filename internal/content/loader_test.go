package content

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/cryptoutil"
)

// NewLoader validation

func TestNewLoader_MissingSSMParam(t *testing.T) {
	_, err := NewLoader(context.Background(), LoaderOptions{
		S3Bucket: "test-bucket",
	})
	if err == nil {
		t.Fatal("expected error for missing SSMParam")
	}
}

func TestNewLoader_MissingS3Bucket(t *testing.T) {
	_, err := NewLoader(context.Background(), LoaderOptions{
		SSMParam: "/app/content/hash",
	})
	if err == nil {
		t.Fatal("expected error for missing S3Bucket")
	}
}

func TestNewLoader_InjectedClients(t *testing.T) {
	l, err := NewLoader(context.Background(), LoaderOptions{
		SSMParam:  testSSMParam,
		S3Bucket:  testBucket,
		S3Client:  newFakeS3(),
		SSMClient: ssmWithValue("abc"),
	})
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	if l.logger == nil {
		t.Fatal("expected Nop logger default")
	}
}

// s3Key

func TestLoader_s3Key(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"content/documents", "content/documents/abc123.json"},
		{"content/documents/", "content/documents/abc123.json"},
		{"", "abc123.json"},
		{"/content//documents/", "content/documents/abc123.json"},
	}
	for _, tt := range tests {
		l := &Loader{opts: LoaderOptions{S3Prefix: tt.prefix}}
		if got := l.s3Key("abc123"); got != tt.want {
			t.Errorf("s3Key(prefix=%q) = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

// FetchCurrentHash

func TestFetchCurrentHash(t *testing.T) {
	want := strings.Repeat("ab", 32)
	l := newTestLoader(newFakeS3(), ssmWithValue("  sha256:"+strings.ToUpper(want)+"\n"), nil)
	hash, err := l.FetchCurrentHash(context.Background())
	if err != nil {
		t.Fatalf("FetchCurrentHash: %v", err)
	}
	if hash != want {
		t.Fatalf("hash = %q, want %q", hash, want)
	}
}

func TestFetchCurrentHash_NotADigest(t *testing.T) {
	l := newTestLoader(newFakeS3(), ssmWithValue("../../secrets"), nil)
	if _, err := l.FetchCurrentHash(context.Background()); err == nil {
		t.Fatal("non-digest parameter accepted")
	}
}

func TestFetchCurrentHash_Empty(t *testing.T) {
	l := newTestLoader(newFakeS3(), ssmWithValue("   "), nil)
	if _, err := l.FetchCurrentHash(context.Background()); err == nil {
		t.Fatal("expected error for empty parameter")
	}
}

func TestFetchCurrentHash_Error(t *testing.T) {
	ssmc := ssmWithValue("")
	ssmc.set("", errors.New("throttled"))
	l := newTestLoader(newFakeS3(), ssmc, nil)
	_, err := l.FetchCurrentHash(context.Background())
	if err == nil || !strings.Contains(err.Error(), "throttled") {
		t.Fatalf("err = %v, want wrapped throttled", err)
	}
}

// LoadHash

func TestLoadHash_Success(t *testing.T) {
	s3c := newFakeS3()
	hash := storeDocument(t, s3c, testDocument("v1"))
	l := newTestLoader(s3c, ssmWithValue(hash), nil)

	snap, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Meta.Hash != hash || snap.Meta.Source != SourceS3 || snap.Meta.Version != "v1" {
		t.Fatalf("Meta = %+v", snap.Meta)
	}
	if snap.Meta.Signed {
		t.Fatal("Signed should be false without a verifier")
	}
	p, err := snap.Post(context.Background(), 42)
	if err != nil || p.Title != "Hello World" {
		t.Fatalf("Post(42) = %+v, %v", p, err)
	}
	if snap.LoadedAt.IsZero() {
		t.Fatal("LoadedAt not set")
	}
}

func TestLoadHash_ChecksumMismatch(t *testing.T) {
	s3c := newFakeS3()
	wrong := "0000000000000000000000000000000000000000000000000000000000000000"
	s3c.put(testS3Prefix+"/"+wrong+".json", encodeDocument(t, testDocument("v1")))
	l := newTestLoader(s3c, ssmWithValue(wrong), nil)

	_, err := l.LoadHash(context.Background(), wrong)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("err = %v, want ErrChecksumMismatch", err)
	}
}

func TestLoadHash_MissingObject(t *testing.T) {
	l := newTestLoader(newFakeS3(), ssmWithValue("x"), nil)
	if _, err := l.LoadHash(context.Background(), "deadbeef"); !errors.Is(err, errNoSuchKey) {
		t.Fatalf("err = %v, want NoSuchKey", err)
	}
}

func TestLoadHash_InvalidJSON(t *testing.T) {
	s3c := newFakeS3()
	data := []byte("{not json")
	hash := cryptoutil.SHA256Hex(data)
	s3c.put(testS3Prefix+"/"+hash+".json", data)
	l := newTestLoader(s3c, ssmWithValue(hash), nil)

	if _, err := l.LoadHash(context.Background(), hash); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestLoadHash_Signature(t *testing.T) {
	s3c := newFakeS3()
	hash := storeDocument(t, s3c, testDocument("v1"))
	sigKey := testS3Prefix + "/" + hash + ".json.sig"

	t.Run("valid", func(t *testing.T) {
		s3c.put(sigKey, []byte("good"))
		l := newTestLoader(s3c, ssmWithValue(hash), fakeVerifier{want: []byte("good")})
		snap, err := l.LoadHash(context.Background(), hash)
		if err != nil {
			t.Fatalf("LoadHash: %v", err)
		}
		if !snap.Meta.Signed {
			t.Fatal("expected Signed")
		}
	})

	t.Run("invalid", func(t *testing.T) {
		s3c.put(sigKey, []byte("forged"))
		l := newTestLoader(s3c, ssmWithValue(hash), fakeVerifier{want: []byte("good")})
		_, err := l.LoadHash(context.Background(), hash)
		if err == nil || !strings.Contains(err.Error(), "verify document signature") {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		other := newFakeS3()
		h := storeDocument(t, other, testDocument("v2"))
		l := newTestLoader(other, ssmWithValue(h), fakeVerifier{want: []byte("good")})
		if _, err := l.LoadHash(context.Background(), h); err == nil {
			t.Fatal("expected error for missing signature")
		}
	})
}

func TestLoadIntoManager(t *testing.T) {
	s3c := newFakeS3()
	hash := storeDocument(t, s3c, testDocument("v3"))
	l := newTestLoader(s3c, ssmWithValue(hash), nil)
	mgr := NewManager()

	if err := l.LoadIntoManager(context.Background(), mgr); err != nil {
		t.Fatalf("LoadIntoManager: %v", err)
	}
	if mgr.ContentHash() != hash || mgr.ContentVersion() != "v3" {
		t.Fatalf("manager hash=%q version=%q", mgr.ContentHash(), mgr.ContentVersion())
	}
}
