package content

import "time"

type Source string

const (
	SourceUnknown Source = "unknown"
	SourceSeed    Source = "seed"
	SourceS3      Source = "s3"
	SourceSQLite  Source = "sqlite"
)

type Meta struct {
	Version    string    `json:"version,omitempty"`
	Hash       string    `json:"sha256,omitempty"`
	VerifiedAt time.Time `json:"verified_at,omitempty"`
	Source     Source    `json:"source,omitempty"`
	// Signed is true when the document signature was verified with KMS.
	Signed bool `json:"signed,omitempty"`
}
