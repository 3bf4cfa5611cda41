package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/collabgrow/collabgrow/internal/model"
	"github.com/collabgrow/collabgrow/internal/repository"
)

func (s *Store) RecordActivity(ctx context.Context, a *model.Activity) error {
	a.ID = xid.New().String()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if _, err := s.activity.InsertOne(ctx, a); err != nil {
		return fmt.Errorf("mongo: recording activity: %w", err)
	}
	return nil
}

func (s *Store) ListActivity(ctx context.Context, opts repository.ListOptions) ([]model.Activity, error) {
	cursor, err := s.activity.Find(ctx, bson.M{},
		pageOptions(opts, bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("mongo: listing activity: %w", err)
	}

	entries := make([]model.Activity, 0)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("mongo: decoding activity: %w", err)
	}
	return entries, nil
}
