// Package mongo implements repository.Store on MongoDB.
//
// COLLECTIONS:
//
//	profile    one document per account
//	posts      project posts with server-owned counters
//	comments   post comments
//	activity   recent-activity feed entries
//
// ATOMIC COUNTERS:
// Every counter change is a single FindOneAndUpdate with $inc. The uids
// that already liked or joined a post live on the post itself (likedBy,
// collaboratorUids), so the dedupe check and the increment are one
// single-document write and no crash can leave them out of step. The
// collaborator cap is part of the filter ($expr collaborators <
// maxCollaborators), so two callers racing for the last slot cannot both
// match.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/collabgrow/collabgrow/internal/repository"
)

// Collection names.
const (
	profileCollection  = "profile"
	postsCollection    = "posts"
	commentsCollection = "comments"
	activityCollection = "activity"
)

// Store holds one client and the collections it serves.
type Store struct {
	client *mongo.Client
	logger *slog.Logger

	profiles *mongo.Collection
	posts    *mongo.Collection
	comments *mongo.Collection
	activity *mongo.Collection
}

var _ repository.Store = (*Store)(nil)

// Open connects to uri, pings the primary and ensures indexes exist.
// Any failure closes the client; the caller receives no half-open store.
func Open(ctx context.Context, uri, database string, logger *slog.Logger) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: pinging: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:   client,
		logger:   logger,
		profiles: db.Collection(profileCollection),
		posts:    db.Collection(postsCollection),
		comments: db.Collection(commentsCollection),
		activity: db.Collection(activityCollection),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info("connected to MongoDB", slog.String("database", database))
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll   *mongo.Collection
		models []mongo.IndexModel
	}{
		{s.profiles, []mongo.IndexModel{
			{
				Keys: bson.D{{Key: "uid", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"uid": bson.M{"$gt": ""}}),
			},
			{Keys: bson.D{{Key: "email", Value: 1}, {Key: "updatedAt", Value: -1}}},
		}},
		{s.posts, []mongo.IndexModel{
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		}},
		{s.comments, []mongo.IndexModel{
			{Keys: bson.D{{Key: "postId", Value: 1}, {Key: "createdAt", Value: 1}}},
		}},
		{s.activity, []mongo.IndexModel{
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		}},
	}

	for _, ix := range indexes {
		if _, err := ix.coll.Indexes().CreateMany(ctx, ix.models); err != nil {
			return fmt.Errorf("mongo: creating indexes on %s: %w", ix.coll.Name(), err)
		}
	}
	return nil
}

// Ping verifies the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo: ping: %w", err)
	}
	return nil
}

// Close disconnects the client, waiting for in-flight operations until ctx ends.
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("mongo: disconnecting: %w", err)
	}
	return nil
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// pageOptions converts ListOptions into find options with the given sort.
func pageOptions(opts repository.ListOptions, sort bson.D) *options.FindOptions {
	opts = opts.Clamp()
	return options.Find().
		SetSort(sort).
		SetSkip(int64(opts.Offset)).
		SetLimit(int64(opts.Limit))
}
