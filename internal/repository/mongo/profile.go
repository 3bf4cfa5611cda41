package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/collabgrow/collabgrow/internal/apperror"
	"github.com/collabgrow/collabgrow/internal/model"
)

func (s *Store) CreateProfile(ctx context.Context, p *model.Profile) error {
	if p.ID == "" {
		p.ID = xid.New().String()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	if _, err := s.profiles.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict("a profile is already linked to this account")
		}
		return fmt.Errorf("mongo: creating profile: %w", err)
	}
	return nil
}

// ReplaceProfile swaps the whole stored document for p, keeping createdAt.
func (s *Store) ReplaceProfile(ctx context.Context, p *model.Profile) error {
	var existing struct {
		CreatedAt time.Time `bson:"createdAt"`
	}
	err := s.profiles.FindOne(ctx, bson.M{"_id": p.ID},
		options.FindOne().SetProjection(bson.M{"createdAt": 1}),
	).Decode(&existing)
	if isNoDocuments(err) {
		return apperror.NotFound("profile", p.ID)
	}
	if err != nil {
		return fmt.Errorf("mongo: loading profile %s: %w", p.ID, err)
	}

	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	result, err := s.profiles.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict("a profile is already linked to this account")
		}
		return fmt.Errorf("mongo: replacing profile %s: %w", p.ID, err)
	}
	if result.MatchedCount == 0 {
		return apperror.NotFound("profile", p.ID)
	}
	return nil
}

func (s *Store) GetProfileByUID(ctx context.Context, uid string) (*model.Profile, error) {
	if uid == "" {
		return nil, apperror.NotFound("profile", uid)
	}
	var p model.Profile
	err := s.profiles.FindOne(ctx, bson.M{"uid": uid}).Decode(&p)
	if isNoDocuments(err) {
		return nil, apperror.NotFound("profile", uid)
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: getting profile by uid: %w", err)
	}
	return &p, nil
}

// GetProfileByEmail returns the most recently updated profile for email.
func (s *Store) GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error) {
	var p model.Profile
	err := s.profiles.FindOne(ctx, bson.M{"email": email},
		options.FindOne().SetSort(bson.D{{Key: "updatedAt", Value: -1}}),
	).Decode(&p)
	if isNoDocuments(err) {
		return nil, apperror.NotFound("profile", email)
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: getting profile by email: %w", err)
	}
	return &p, nil
}
