package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/stretchr/testify/mock"

	"github.com/collabgrow/collabgrow/internal/auth"
	"github.com/collabgrow/collabgrow/internal/model"
	"github.com/collabgrow/collabgrow/internal/service"
)

type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) Submit(ctx context.Context, caller *service.Caller, p model.Profile) (*model.Profile, bool, error) {
	args := m.Called(ctx, caller, p)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*model.Profile), args.Bool(1), args.Error(2)
}

func (m *MockProfileService) GetByEmail(ctx context.Context, email string) (*model.Profile, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Profile), args.Error(1)
}

func (m *MockProfileService) GetByUID(ctx context.Context, uid string) (*model.Profile, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Profile), args.Error(1)
}

type MockPostService struct {
	mock.Mock
}

func (m *MockPostService) List(ctx context.Context) ([]model.Post, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Post), args.Error(1)
}

func (m *MockPostService) Get(ctx context.Context, id string) (*model.Post, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Post), args.Error(1)
}

func (m *MockPostService) Create(ctx context.Context, caller *service.Caller, draft model.Post) (*model.Post, error) {
	args := m.Called(ctx, caller, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Post), args.Error(1)
}

func (m *MockPostService) Update(ctx context.Context, caller *service.Caller, id string, edit model.Post) (*model.Post, error) {
	args := m.Called(ctx, caller, id, edit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Post), args.Error(1)
}

func (m *MockPostService) Like(ctx context.Context, caller *service.Caller, id string) (*model.Post, error) {
	args := m.Called(ctx, caller, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Post), args.Error(1)
}

func (m *MockPostService) Collaborate(ctx context.Context, caller *service.Caller, id string) (*model.Post, error) {
	args := m.Called(ctx, caller, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Post), args.Error(1)
}

func (m *MockPostService) Comment(ctx context.Context, caller *service.Caller, id, text string) (*model.Comment, error) {
	args := m.Called(ctx, caller, id, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Comment), args.Error(1)
}

func (m *MockPostService) Comments(ctx context.Context, id string, limit, offset int) ([]model.Comment, error) {
	args := m.Called(ctx, id, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Comment), args.Error(1)
}

type MockJoinRequestService struct {
	mock.Mock
}

func (m *MockJoinRequestService) Relay(ctx context.Context, caller *service.Caller, req model.JoinRequest) error {
	args := m.Called(ctx, caller, req)
	return args.Error(0)
}

type MockActivityService struct {
	mock.Mock
}

func (m *MockActivityService) Recent(ctx context.Context, limit, offset int) ([]model.Activity, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Activity), args.Error(1)
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// signedIn attaches a verified identity as auth.RequireAuth would.
func signedIn(r *http.Request, uid string) *http.Request {
	return r.WithContext(auth.WithIdentity(r.Context(), auth.Identity{UID: uid, Email: uid + "@example.com"}))
}

func body(s string) io.Reader {
	return strings.NewReader(s)
}
