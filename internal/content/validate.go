package content

import (
	"strings"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/xerrors"
)

// ValidationOptions controls which checks ValidateSnapshot performs.
// Zero value only checks that the snapshot is indexed.
type ValidationOptions struct {
	// MinPosts rejects documents with fewer than this many posts.
	// 0 disables the check.
	MinPosts int

	// RequireTitles fails validation if any post has a blank title.
	RequireTitles bool

	// RequireSigned fails validation for documents whose signature was not verified.
	RequireSigned bool
}

// DefaultValidationOptions returns the recommended production defaults.
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{
		MinPosts:      1,
		RequireTitles: true,
	}
}

// ValidateSnapshot performs sanity checks on a snapshot before it is
// swapped into the active Manager. Used by the Watcher to avoid serving
// empty or broken content.
// Returns nil if all checks pass, or an error describing the first failure.
func ValidateSnapshot(snap *Snapshot, opts ValidationOptions) error {
	if snap == nil {
		return xerrors.New("validate: snapshot is nil")
	}
	if snap.posts == nil {
		return xerrors.New("validate: snapshot is not indexed")
	}

	if opts.MinPosts > 0 && len(snap.posts) < opts.MinPosts {
		return xerrors.Newf("validate: document has %d posts, minimum is %d", len(snap.posts), opts.MinPosts)
	}

	if opts.RequireTitles {
		for id, p := range snap.posts {
			if strings.TrimSpace(p.Title) == "" {
				return xerrors.Newf("validate: post %d has an empty title", id)
			}
		}
	}

	if opts.RequireSigned && !snap.Meta.Signed {
		return xerrors.New("validate: document signature is required but was not verified")
	}

	return nil
}
