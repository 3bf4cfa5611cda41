package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/collabgrow/collabgrow/internal/apperror"
	"github.com/collabgrow/collabgrow/internal/mail"
	"github.com/collabgrow/collabgrow/internal/model"
	"github.com/collabgrow/collabgrow/internal/repository"
)

// =========================================================================
// IN-MEMORY STORE
// =========================================================================
//
// memStore implements the three repository interfaces with maps. It follows
// the same error contract as the real stores (NotFound, Conflict) so the
// services can be tested without a database. failWith forces every call
// to return the given error.

type reactionKey struct {
	post, uid string
	kind      model.ReactionKind
}

type memStore struct {
	mu        sync.Mutex
	nextID    int
	profiles  map[string]model.Profile
	posts     map[string]model.Post
	reactions map[reactionKey]bool
	comments  []model.Comment
	activity  []model.Activity
	failWith  error
	actFail   error
}

func newMemStore() *memStore {
	return &memStore{
		profiles:  make(map[string]model.Profile),
		posts:     make(map[string]model.Post),
		reactions: make(map[reactionKey]bool),
	}
}

func (m *memStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *memStore) CreateProfile(_ context.Context, p *model.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if p.UID != "" {
		for _, existing := range m.profiles {
			if existing.UID == p.UID {
				return apperror.Conflict("a profile is already linked to this account")
			}
		}
	}
	if p.ID == "" {
		p.ID = m.id("profile")
	}
	m.profiles[p.ID] = *p
	return nil
}

func (m *memStore) ReplaceProfile(_ context.Context, p *model.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.profiles[p.ID]; !ok {
		return apperror.NotFound("profile", p.ID)
	}
	m.profiles[p.ID] = *p
	return nil
}

func (m *memStore) GetProfileByUID(_ context.Context, uid string) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, p := range m.profiles {
		if uid != "" && p.UID == uid {
			cp := p
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("profile", uid)
}

func (m *memStore) GetProfileByEmail(_ context.Context, email string) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, p := range m.profiles {
		if p.Email == email {
			cp := p
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("profile", email)
}

func (m *memStore) CreatePost(_ context.Context, p *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	p.ID = m.id("post")
	m.posts[p.ID] = *p
	return nil
}

func (m *memStore) GetPost(_ context.Context, id string) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	p, ok := m.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", id)
	}
	return &p, nil
}

func (m *memStore) ListPosts(_ context.Context) ([]model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := make([]model.Post, 0, len(m.posts))
	for _, p := range m.posts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) UpdatePost(_ context.Context, p *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.posts[p.ID]; !ok {
		return apperror.NotFound("post", p.ID)
	}
	m.posts[p.ID] = *p
	return nil
}

func (m *memStore) IncrementLikes(_ context.Context, postID, uid string) (*model.Post, bool, error) {
	return m.react(postID, uid, model.ReactionLike, func(p *model.Post) error {
		p.Likes++
		return nil
	})
}

func (m *memStore) IncrementCollaborators(_ context.Context, postID, uid string) (*model.Post, bool, error) {
	return m.react(postID, uid, model.ReactionCollaborate, func(p *model.Post) error {
		if p.IsFull() {
			return apperror.Conflict("this project has no open collaborator slots")
		}
		p.Collaborators++
		return nil
	})
}

func (m *memStore) react(postID, uid string, kind model.ReactionKind, apply func(*model.Post) error) (*model.Post, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, false, m.failWith
	}
	p, ok := m.posts[postID]
	if !ok {
		return nil, false, apperror.NotFound("post", postID)
	}
	key := reactionKey{postID, uid, kind}
	if m.reactions[key] {
		return &p, false, nil
	}
	if err := apply(&p); err != nil {
		return nil, false, err
	}
	m.reactions[key] = true
	m.posts[postID] = p
	return &p, true, nil
}

func (m *memStore) AddComment(_ context.Context, c *model.Comment) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	p, ok := m.posts[c.PostID]
	if !ok {
		return nil, apperror.NotFound("post", c.PostID)
	}
	c.ID = m.id("comment")
	m.comments = append(m.comments, *c)
	p.Comments++
	m.posts[c.PostID] = p
	return &p, nil
}

func (m *memStore) ListComments(_ context.Context, postID string, _ repository.ListOptions) ([]model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Comment, 0)
	for _, c := range m.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) RecordActivity(_ context.Context, a *model.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.actFail != nil {
		return m.actFail
	}
	a.ID = m.id("activity")
	m.activity = append(m.activity, *a)
	return nil
}

func (m *memStore) ListActivity(_ context.Context, opts repository.ListOptions) ([]model.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := make([]model.Activity, 0, len(m.activity))
	for i := len(m.activity) - 1; i >= 0; i-- {
		out = append(out, m.activity[i])
	}
	if opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memStore) activityTypes() []model.ActivityType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ActivityType, 0, len(m.activity))
	for _, a := range m.activity {
		out = append(out, a.Type)
	}
	return out
}

var (
	_ repository.ProfileRepository  = (*memStore)(nil)
	_ repository.PostRepository     = (*memStore)(nil)
	_ repository.ActivityRepository = (*memStore)(nil)
)

// =========================================================================
// MOCK MAILER
// =========================================================================

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, msg mail.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

var _ mail.Mailer = (*MockMailer)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
