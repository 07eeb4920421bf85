package cryptoutil

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/xerrors"
)

// HashEqual compares two hex digests in constant time.
func HashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// SHA256Hex is the lowercase hex SHA-256 of data.
func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ParseSHA256 normalizes a published digest: surrounding space and an
// optional "sha256:" prefix are removed and hex is lowercased. Anything that
// is not 64 hex characters is rejected, since the digest names the S3 key.
func ParseSHA256(s string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(s))
	d = strings.TrimPrefix(d, "sha256:")
	if len(d) != sha256.Size*2 {
		return "", xerrors.Newf("sha256 digest must be %d hex characters, got %d", sha256.Size*2, len(d))
	}
	if _, err := hex.DecodeString(d); err != nil {
		return "", xerrors.Wrap(err, "sha256 digest")
	}
	return d, nil
}
