package opengraph

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by repositories when the requested object does not exist.
var ErrNotFound = errors.New("opengraph: not found")

type Post struct {
	ID    int64
	Title string
	// Excerpt is the hand-authored summary, empty when none was written.
	Excerpt string
	// Content is the post body as stored (HTML, may contain shortcodes).
	Content       string
	PublishedAt   time.Time
	FeaturedImage string // media reference, empty when the post has none
}

type Member struct {
	ID          int64
	DisplayName string
	Active      bool
	// LatestUpdate is the member's most recent public status update.
	LatestUpdate string
}

type Group struct {
	ID          int64
	Name        string
	Description string
}

type PostRepository interface {
	Post(ctx context.Context, id int64) (Post, error)
}

type MemberRepository interface {
	Member(ctx context.Context, id int64) (Member, error)
}

type GroupRepository interface {
	Group(ctx context.Context, id int64) (Group, error)
}

// Repository is the read side of the content store the generator derives metadata from.
type Repository interface {
	PostRepository
	MemberRepository
	GroupRepository
}

// ImageSize names a rendered variant of a media item.
type ImageSize string

const (
	ImageThumbnail ImageSize = "thumbnail"
	ImageMedium    ImageSize = "medium"
	ImageLarge     ImageSize = "large"
	ImageFull      ImageSize = "full"
)

// AvatarObject is the owner type of an avatar.
type AvatarObject string

const (
	AvatarUser  AvatarObject = "user"
	AvatarGroup AvatarObject = "group"
)

// Media turns media references into public URLs.
type Media interface {
	ImageURL(ctx context.Context, ref string, size ImageSize) (string, error)
	AvatarURL(ctx context.Context, object AvatarObject, id int64) (string, error)
}
