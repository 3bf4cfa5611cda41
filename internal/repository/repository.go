// Package repository defines the persistence gateway's interfaces.
//
// Two implementations exist:
//   - repository/mongo:  the production document store
//   - repository/sqlite: an embedded store for local development and tests
//
// Services depend only on these interfaces. The concrete Store is built once
// by the process entry point, pinged before any route is registered, and
// closed on shutdown. There is no package-level database handle anywhere.
//
// ERROR CONTRACT:
// Every implementation returns apperror.NotFound for missing records and
// apperror.Conflict for the collaborator cap. Anything else is an
// infrastructure failure wrapped with fmt.Errorf.
package repository

import (
	"context"

	"github.com/collabgrow/collabgrow/internal/model"
)

// ListOptions bounds list queries that are paged (activity feed, comments).
type ListOptions struct {
	Limit  int
	Offset int
}

// ProfileRepository stores account profiles.
type ProfileRepository interface {
	// CreateProfile inserts a new profile, assigning ID and timestamps.
	CreateProfile(ctx context.Context, p *model.Profile) error
	// ReplaceProfile overwrites the whole document identified by p.ID.
	// CreatedAt is preserved; UpdatedAt is set to now.
	ReplaceProfile(ctx context.Context, p *model.Profile) error
	// GetProfileByUID looks up the profile linked to an identity-provider subject.
	GetProfileByUID(ctx context.Context, uid string) (*model.Profile, error)
	// GetProfileByEmail returns the most recently updated profile with the
	// given (already normalized) email.
	GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error)
}

// PostRepository stores project posts, their reactions and comments.
//
// ATOMICITY:
// IncrementLikes and IncrementCollaborators count each (postID, uid, kind)
// once. A repeat leaves the counter alone and returns (post, false). Marking
// the uid and bumping the counter happen in one atomic storage operation;
// IncrementCollaborators only applies it while collaborators <
// maxCollaborators and returns apperror.Conflict otherwise.
type PostRepository interface {
	CreatePost(ctx context.Context, p *model.Post) error
	GetPost(ctx context.Context, id string) (*model.Post, error)
	// ListPosts returns every post, newest first.
	ListPosts(ctx context.Context) ([]model.Post, error)
	// UpdatePost overwrites the non-counter fields of an existing post.
	UpdatePost(ctx context.Context, p *model.Post) error

	IncrementLikes(ctx context.Context, postID, uid string) (*model.Post, bool, error)
	IncrementCollaborators(ctx context.Context, postID, uid string) (*model.Post, bool, error)

	// AddComment stores c and atomically increments the post's comment count.
	AddComment(ctx context.Context, c *model.Comment) (*model.Post, error)
	ListComments(ctx context.Context, postID string, opts ListOptions) ([]model.Comment, error)
}

// ActivityRepository stores activity-feed entries.
type ActivityRepository interface {
	RecordActivity(ctx context.Context, a *model.Activity) error
	// ListActivity returns entries newest first.
	ListActivity(ctx context.Context, opts ListOptions) ([]model.Activity, error)
}

// Store is the full persistence gateway: every repository plus lifecycle.
type Store interface {
	ProfileRepository
	PostRepository
	ActivityRepository

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Paging defaults shared by the implementations.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Clamp applies the default and maximum page size and a non-negative offset.
func (o ListOptions) Clamp() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
