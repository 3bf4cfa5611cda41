package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/collabgrow/collabgrow/internal/apperror"
	"github.com/collabgrow/collabgrow/internal/model"
	"github.com/collabgrow/collabgrow/internal/repository"
	"github.com/collabgrow/collabgrow/internal/validation"
)

// PostService manages project posts and their counters.
//
// OWNERSHIP:
// Anyone may read. Only a signed-in caller may create, like, comment or
// collaborate. Only the author (Post.AuthorUID) may edit the other fields.
// Counters are never taken from client input.
type PostService struct {
	posts    repository.PostRepository
	profiles repository.ProfileRepository
	activity repository.ActivityRepository
	logger   *slog.Logger
}

func NewPostService(
	posts repository.PostRepository,
	profiles repository.ProfileRepository,
	activity repository.ActivityRepository,
	logger *slog.Logger,
) *PostService {
	return &PostService{posts: posts, profiles: profiles, activity: activity, logger: logger}
}

func (s *PostService) List(ctx context.Context) ([]model.Post, error) {
	posts, err := s.posts.ListPosts(ctx)
	if err != nil {
		s.logger.Error("failed to list posts", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	return posts, nil
}

func (s *PostService) Get(ctx context.Context, id string) (*model.Post, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "post ID is required")
	}
	return s.posts.GetPost(ctx, id)
}

// normalizeDraft trims the editable fields and fills defaults.
func normalizeDraft(p *model.Post) {
	p.Title = strings.TrimSpace(p.Title)
	p.Description = strings.TrimSpace(p.Description)
	p.Category = strings.TrimSpace(p.Category)
	p.Deadline = strings.TrimSpace(p.Deadline)

	skills := make([]string, 0, len(p.Skills))
	for _, sk := range p.Skills {
		if sk = strings.TrimSpace(sk); sk != "" {
			skills = append(skills, sk)
		}
	}
	p.Skills = skills

	if p.Status == "" {
		p.Status = model.DefaultPostStatus
	}
}

// Create validates draft and stores it as a new post authored by caller.
func (s *PostService) Create(ctx context.Context, caller *Caller, draft model.Post) (*model.Post, error) {
	if caller == nil {
		return nil, apperror.Unauthorized("sign in to create a post")
	}

	normalizeDraft(&draft)
	if draft.MaxCollaborators <= 0 {
		draft.MaxCollaborators = model.DefaultMaxCollaborators
	}
	if err := validation.Struct(draft); err != nil {
		return nil, err
	}

	draft.Likes, draft.Comments, draft.Collaborators = 0, 0, 0
	draft.AuthorUID = caller.UID

	// Author details come from the stored profile when there is one.
	profile := s.profileOf(ctx, caller.UID)
	switch {
	case profile != nil:
		draft.AuthorName = profile.Name
		draft.AuthorEmail = profile.Email
	default:
		if draft.AuthorName == "" {
			draft.AuthorName = caller.Name
		}
		if draft.AuthorEmail == "" {
			draft.AuthorEmail = caller.Email
		}
	}
	draft.AuthorEmail = model.NormalizeEmail(draft.AuthorEmail)

	if err := s.posts.CreatePost(ctx, &draft); err != nil {
		s.logger.Error("failed to create post", slog.String("error", err.Error()))
		return nil, fmt.Errorf("creating post: %w", err)
	}

	s.logger.Info("post created", slog.String("id", draft.ID), slog.String("author_uid", caller.UID))
	recordActivity(ctx, s.activity, s.logger, &model.Activity{
		Type:      model.ActivityPost,
		Message:   fmt.Sprintf("%s posted %q", displayName(profile, caller), draft.Title),
		ActorUID:  caller.UID,
		ActorName: displayName(profile, caller),
		PostID:    draft.ID,
	})
	return &draft, nil
}

// Update overwrites the editable fields of post id. Only its author may.
func (s *PostService) Update(ctx context.Context, caller *Caller, id string, edit model.Post) (*model.Post, error) {
	if caller == nil {
		return nil, apperror.Unauthorized("sign in to edit a post")
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.AuthorUID == "" || current.AuthorUID != caller.UID {
		return nil, apperror.Forbidden("only the author can edit this post")
	}

	normalizeDraft(&edit)
	if edit.MaxCollaborators <= 0 {
		edit.MaxCollaborators = current.MaxCollaborators
	}
	if err := validation.Struct(edit); err != nil {
		return nil, err
	}
	if edit.MaxCollaborators < current.Collaborators {
		return nil, apperror.ValidationFailed("maxCollaborators",
			"maxCollaborators cannot be lower than the current number of collaborators")
	}

	// Server-owned fields are carried over from the stored post.
	edit.ID = current.ID
	edit.AuthorUID = current.AuthorUID
	edit.AuthorName = current.AuthorName
	edit.AuthorEmail = current.AuthorEmail
	edit.Likes = current.Likes
	edit.Comments = current.Comments
	edit.Collaborators = current.Collaborators
	edit.CreatedAt = current.CreatedAt

	if err := s.posts.UpdatePost(ctx, &edit); err != nil {
		if isDomainError(err) {
			return nil, err
		}
		s.logger.Error("failed to update post", slog.String("id", id), slog.String("error", err.Error()))
		return nil, fmt.Errorf("updating post: %w", err)
	}

	s.logger.Info("post updated", slog.String("id", id))
	return s.posts.GetPost(ctx, id)
}

// Like adds the caller's like. Liking twice is a no-op.
func (s *PostService) Like(ctx context.Context, caller *Caller, id string) (*model.Post, error) {
	if caller == nil {
		return nil, apperror.Unauthorized("sign in to like a post")
	}
	post, applied, err := s.posts.IncrementLikes(ctx, id, caller.UID)
	if err != nil {
		return nil, s.counterError("like", id, err)
	}
	if applied {
		name := displayName(s.profileOf(ctx, caller.UID), caller)
		recordActivity(ctx, s.activity, s.logger, &model.Activity{
			Type:      model.ActivityLike,
			Message:   fmt.Sprintf("%s liked %q", name, post.Title),
			ActorUID:  caller.UID,
			ActorName: name,
			PostID:    post.ID,
		})
	}
	return post, nil
}

// Collaborate claims one collaborator slot for the caller.
// A full project is a conflict; asking twice is a no-op.
func (s *PostService) Collaborate(ctx context.Context, caller *Caller, id string) (*model.Post, error) {
	if caller == nil {
		return nil, apperror.Unauthorized("sign in to collaborate")
	}
	post, applied, err := s.posts.IncrementCollaborators(ctx, id, caller.UID)
	if err != nil {
		return nil, s.counterError("collaborate", id, err)
	}
	if applied {
		name := displayName(s.profileOf(ctx, caller.UID), caller)
		recordActivity(ctx, s.activity, s.logger, &model.Activity{
			Type:      model.ActivityCollaboration,
			Message:   fmt.Sprintf("%s joined %q", name, post.Title),
			ActorUID:  caller.UID,
			ActorName: name,
			PostID:    post.ID,
		})
	}
	return post, nil
}

// Comment adds a comment by the caller and returns it.
func (s *PostService) Comment(ctx context.Context, caller *Caller, id, text string) (*model.Comment, error) {
	if caller == nil {
		return nil, apperror.Unauthorized("sign in to comment")
	}

	name := displayName(s.profileOf(ctx, caller.UID), caller)
	c := &model.Comment{
		PostID:     id,
		AuthorUID:  caller.UID,
		AuthorName: name,
		Text:       strings.TrimSpace(text),
	}
	if err := validation.Struct(c); err != nil {
		return nil, err
	}

	post, err := s.posts.AddComment(ctx, c)
	if err != nil {
		return nil, s.counterError("comment", id, err)
	}

	recordActivity(ctx, s.activity, s.logger, &model.Activity{
		Type:      model.ActivityComment,
		Message:   fmt.Sprintf("%s commented on %q", name, post.Title),
		ActorUID:  caller.UID,
		ActorName: name,
		PostID:    post.ID,
	})
	return c, nil
}

// Comments lists a post's comments, oldest first.
func (s *PostService) Comments(ctx context.Context, id string, limit, offset int) ([]model.Comment, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	comments, err := s.posts.ListComments(ctx, id, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error("failed to list comments", slog.String("post_id", id), slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	return comments, nil
}

// profileOf returns the caller's stored profile, or nil if there is none
// or the lookup fails. Only display fields are taken from it.
func (s *PostService) profileOf(ctx context.Context, uid string) *model.Profile {
	p, err := s.profiles.GetProfileByUID(ctx, uid)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("profile lookup failed", slog.String("uid", uid), slog.String("error", err.Error()))
		}
		return nil
	}
	return p
}

func (s *PostService) counterError(op, id string, err error) error {
	if isDomainError(err) {
		return err
	}
	s.logger.Error("counter update failed",
		slog.String("op", op),
		slog.String("post_id", id),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("%s post %s: %w", op, id, err)
}

// isDomainError reports whether err already carries an apperror the
// handler can map to a client status.
func isDomainError(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr)
}
