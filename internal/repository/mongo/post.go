package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/collabgrow/collabgrow/internal/apperror"
	"github.com/collabgrow/collabgrow/internal/model"
	"github.com/collabgrow/collabgrow/internal/repository"
)

// Reactor lists are stored on the post document and never decoded into
// model.Post.
const (
	likedByField          = "likedBy"
	collaboratorUIDsField = "collaboratorUids"
)

var withoutReactors = bson.M{likedByField: 0, collaboratorUIDsField: 0}

var returnAfter = options.FindOneAndUpdate().
	SetReturnDocument(options.After).
	SetProjection(withoutReactors)

func (s *Store) CreatePost(ctx context.Context, p *model.Post) error {
	p.ID = xid.New().String()
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Skills == nil {
		p.Skills = []string{}
	}

	if _, err := s.posts.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("mongo: creating post: %w", err)
	}
	return nil
}

func (s *Store) GetPost(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	err := s.posts.FindOne(ctx, bson.M{"_id": id},
		options.FindOne().SetProjection(withoutReactors),
	).Decode(&p)
	if isNoDocuments(err) {
		return nil, apperror.NotFound("post", id)
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: getting post %s: %w", id, err)
	}
	return &p, nil
}

// ListPosts returns every post, newest first.
func (s *Store) ListPosts(ctx context.Context) ([]model.Post, error) {
	cursor, err := s.posts.Find(ctx, bson.M{},
		options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
			SetProjection(withoutReactors),
	)
	if err != nil {
		return nil, fmt.Errorf("mongo: listing posts: %w", err)
	}

	posts := make([]model.Post, 0)
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("mongo: decoding posts: %w", err)
	}
	return posts, nil
}

// UpdatePost $sets the editable fields. The filter refuses a
// maxCollaborators below the stored collaborator count.
func (s *Store) UpdatePost(ctx context.Context, p *model.Post) error {
	p.UpdatedAt = time.Now().UTC()
	if p.Skills == nil {
		p.Skills = []string{}
	}

	result, err := s.posts.UpdateOne(ctx,
		bson.M{"_id": p.ID, "collaborators": bson.M{"$lte": p.MaxCollaborators}},
		bson.M{"$set": bson.M{
			"title":            p.Title,
			"description":      p.Description,
			"category":         p.Category,
			"skills":           p.Skills,
			"deadline":         p.Deadline,
			"budget":           p.Budget,
			"timeline":         p.Timeline,
			"status":           p.Status,
			"image":            p.Image,
			"maxCollaborators": p.MaxCollaborators,
			"updatedAt":        p.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("mongo: updating post %s: %w", p.ID, err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	if _, err := s.GetPost(ctx, p.ID); err != nil {
		return err
	}
	return apperror.ValidationFailed("maxCollaborators",
		"maxCollaborators cannot be lower than the current number of collaborators")
}

func (s *Store) IncrementLikes(ctx context.Context, postID, uid string) (*model.Post, bool, error) {
	return s.react(ctx, postID, uid, likedByField, "likes", bson.M{})
}

func (s *Store) IncrementCollaborators(ctx context.Context, postID, uid string) (*model.Post, bool, error) {
	return s.react(ctx, postID, uid, collaboratorUIDsField, "collaborators", bson.M{
		"$expr": bson.M{"$lt": bson.A{"$collaborators", "$maxCollaborators"}},
	})
}

// react bumps counter and adds uid to the post's reactor list in one
// update. The filter requires uid to be absent from the list, so a repeat
// matches nothing. When nothing matches, a second read tells a repeat
// (post, false) apart from a missing post or a reached cap.
func (s *Store) react(ctx context.Context, postID, uid, reactors, counter string, filter bson.M) (*model.Post, bool, error) {
	filter["_id"] = postID
	filter[reactors] = bson.M{"$ne": uid}

	var updated model.Post
	err := s.posts.FindOneAndUpdate(ctx, filter,
		bson.M{
			"$inc":      bson.M{counter: 1},
			"$addToSet": bson.M{reactors: uid},
		},
		returnAfter,
	).Decode(&updated)
	if err == nil {
		return &updated, true, nil
	}
	if !isNoDocuments(err) {
		return nil, false, fmt.Errorf("mongo: incrementing %s: %w", counter, err)
	}

	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return nil, false, err
	}
	n, err := s.posts.CountDocuments(ctx, bson.M{"_id": postID, reactors: uid})
	if err != nil {
		return nil, false, fmt.Errorf("mongo: checking %s reactors: %w", counter, err)
	}
	if n > 0 {
		return post, false, nil
	}
	return nil, false, apperror.Conflict("this project has no open collaborator slots")
}

// AddComment bumps the counter first, so a missing post is detected before
// anything is written, then stores the comment. A failed insert gives the
// increment back.
func (s *Store) AddComment(ctx context.Context, c *model.Comment) (*model.Post, error) {
	c.ID = xid.New().String()
	c.CreatedAt = time.Now().UTC()

	var post model.Post
	err := s.posts.FindOneAndUpdate(ctx,
		bson.M{"_id": c.PostID},
		bson.M{"$inc": bson.M{"comments": 1}},
		returnAfter,
	).Decode(&post)
	if isNoDocuments(err) {
		return nil, apperror.NotFound("post", c.PostID)
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: incrementing comment counter: %w", err)
	}

	if _, err := s.comments.InsertOne(ctx, c); err != nil {
		if _, undoErr := s.posts.UpdateOne(ctx, bson.M{"_id": c.PostID}, bson.M{"$inc": bson.M{"comments": -1}}); undoErr != nil {
			s.logger.Error("failed to roll back comment counter",
				slog.String("post_id", c.PostID),
				slog.String("error", undoErr.Error()),
			)
		}
		return nil, fmt.Errorf("mongo: creating comment: %w", err)
	}
	return &post, nil
}

// ListComments returns a post's comments, oldest first.
func (s *Store) ListComments(ctx context.Context, postID string, opts repository.ListOptions) ([]model.Comment, error) {
	cursor, err := s.comments.Find(ctx, bson.M{"postId": postID},
		pageOptions(opts, bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("mongo: listing comments: %w", err)
	}

	comments := make([]model.Comment, 0)
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, fmt.Errorf("mongo: decoding comments: %w", err)
	}
	return comments, nil
}
