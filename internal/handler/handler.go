// Package handler is the HTTP layer: it parses requests, calls a service
// and writes the JSON response. It never talks to the store directly.
//
// Each handler depends on a small interface rather than a concrete
// service, so tests drive it with fakes and httptest.
package handler

import (
	"context"

	"github.com/collabgrow/collabgrow/internal/model"
	"github.com/collabgrow/collabgrow/internal/service"
)

// ProfileService is the subset of service.ProfileService the handlers use.
type ProfileService interface {
	Submit(ctx context.Context, caller *service.Caller, p model.Profile) (*model.Profile, bool, error)
	GetByEmail(ctx context.Context, email string) (*model.Profile, error)
	GetByUID(ctx context.Context, uid string) (*model.Profile, error)
}

// PostService is the subset of service.PostService the handlers use.
type PostService interface {
	List(ctx context.Context) ([]model.Post, error)
	Get(ctx context.Context, id string) (*model.Post, error)
	Create(ctx context.Context, caller *service.Caller, draft model.Post) (*model.Post, error)
	Update(ctx context.Context, caller *service.Caller, id string, edit model.Post) (*model.Post, error)
	Like(ctx context.Context, caller *service.Caller, id string) (*model.Post, error)
	Collaborate(ctx context.Context, caller *service.Caller, id string) (*model.Post, error)
	Comment(ctx context.Context, caller *service.Caller, id, text string) (*model.Comment, error)
	Comments(ctx context.Context, id string, limit, offset int) ([]model.Comment, error)
}

type JoinRequestService interface {
	Relay(ctx context.Context, caller *service.Caller, req model.JoinRequest) error
}

type ActivityService interface {
	Recent(ctx context.Context, limit, offset int) ([]model.Activity, error)
}

var (
	_ ProfileService     = (*service.ProfileService)(nil)
	_ PostService        = (*service.PostService)(nil)
	_ JoinRequestService = (*service.JoinRequestService)(nil)
	_ ActivityService    = (*service.ActivityService)(nil)
)
