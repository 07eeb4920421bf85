package content

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/xerrors"
)

const (
	maxDocumentSize  int64 = 20 << 20
	maxSignatureSize int64 = 16 << 10
)

// ErrTooLarge is returned when an object is bigger than its read limit.
var ErrTooLarge = errors.New("content: object exceeds size limit")

// readDigest reads at most limit bytes from r and returns them with their
// hex SHA-256. One byte past the limit is read to detect oversize input.
func readDigest(r io.Reader, limit int64) ([]byte, string, error) {
	h := sha256.New()
	data, err := io.ReadAll(io.TeeReader(io.LimitReader(r, limit+1), h))
	switch {
	case err != nil:
		return nil, "", err
	case int64(len(data)) > limit:
		return nil, "", xerrors.Wrapf(ErrTooLarge, "more than %d bytes", limit)
	}
	return data, hex.EncodeToString(h.Sum(nil)), nil
}
