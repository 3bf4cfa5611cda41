package client

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/collabgrow/collabgrow/internal/apperror"
	"github.com/collabgrow/collabgrow/internal/model"
	"github.com/collabgrow/collabgrow/internal/validation"
)

var (
	errNotSignedIn = apperror.Unauthorized("Please sign in first")
	errProjectFull = apperror.Conflict("This project has no open collaborator slots")
)

// FilterOptions narrows the cached collection. Zero values match everything.
type FilterOptions struct {
	// Query matches title, description, category or any skill, ignoring case.
	Query string
	// Category must equal the post's category. "All" matches everything.
	Category string
	// Skills must all be present on the post, ignoring case.
	Skills []string
}

// Projects caches the project collection.
//
// ROUND TRIPS:
// Every mutation goes to the server and the cached copy is replaced with
// the server's answer. Nothing is counted locally, so two clients never
// disagree about likes or open collaborator slots for longer than one
// refresh.
type Projects struct {
	api     *API
	session *Session
	logger  *slog.Logger

	mu     sync.RWMutex
	posts  []model.Post
	loaded bool
}

func NewProjects(api *API, session *Session, logger *slog.Logger) *Projects {
	return &Projects{api: api, session: session, logger: logger}
}

// Load fetches the collection once. Later calls are no-ops; use Refresh.
func (p *Projects) Load(ctx context.Context) Outcome {
	p.mu.RLock()
	loaded := p.loaded
	p.mu.RUnlock()
	if loaded {
		return success
	}
	return p.Refresh(ctx)
}

// Refresh re-fetches the whole collection.
func (p *Projects) Refresh(ctx context.Context) Outcome {
	posts, err := p.api.ListPosts(ctx)
	if err != nil {
		p.logger.Warn("failed to load projects", slog.String("error", err.Error()))
		return OutcomeOf(err)
	}

	p.mu.Lock()
	p.posts, p.loaded = posts, true
	p.mu.Unlock()
	return success
}

// All returns a copy of the cached collection, newest first.
func (p *Projects) All() []model.Post {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]model.Post(nil), p.posts...)
}

// Find returns the cached post with id.
func (p *Projects) Find(id string) (model.Post, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, post := range p.posts {
		if post.ID == id {
			return post, true
		}
	}
	return model.Post{}, false
}

// Filter returns the cached posts matching opts, in collection order.
func (p *Projects) Filter(opts FilterOptions) []model.Post {
	query := strings.ToLower(strings.TrimSpace(opts.Query))
	category := strings.TrimSpace(opts.Category)
	if strings.EqualFold(category, "All") {
		category = ""
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]model.Post, 0, len(p.posts))
	for _, post := range p.posts {
		if category != "" && !strings.EqualFold(post.Category, category) {
			continue
		}
		if !hasAllSkills(post.Skills, opts.Skills) {
			continue
		}
		if query != "" && !matchesQuery(post, query) {
			continue
		}
		out = append(out, post)
	}
	return out
}

func matchesQuery(post model.Post, query string) bool {
	if strings.Contains(strings.ToLower(post.Title), query) ||
		strings.Contains(strings.ToLower(post.Description), query) ||
		strings.Contains(strings.ToLower(post.Category), query) {
		return true
	}
	for _, sk := range post.Skills {
		if strings.Contains(strings.ToLower(sk), query) {
			return true
		}
	}
	return false
}

func hasAllSkills(have, want []string) bool {
	for _, w := range want {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		found := false
		for _, h := range have {
			if strings.EqualFold(h, w) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Create validates draft locally, stores it, then refreshes the collection.
// It returns the new post's id on success.
func (p *Projects) Create(ctx context.Context, draft model.Post) (string, Outcome) {
	if p.session.token() == "" {
		return "", OutcomeOf(errNotSignedIn)
	}

	draft.Title = strings.TrimSpace(draft.Title)
	draft.Description = strings.TrimSpace(draft.Description)
	skills := make([]string, 0, len(draft.Skills))
	for _, sk := range draft.Skills {
		if sk = strings.TrimSpace(sk); sk != "" {
			skills = append(skills, sk)
		}
	}
	draft.Skills = skills
	if draft.MaxCollaborators <= 0 {
		draft.MaxCollaborators = model.DefaultMaxCollaborators
	}
	if err := validation.Struct(draft); err != nil {
		return "", OutcomeOf(err)
	}

	var id string
	err := p.session.authorized(ctx, func(token string) (err error) {
		id, err = p.api.CreatePost(ctx, token, draft)
		return err
	})
	if err != nil {
		return "", OutcomeOf(err)
	}
	if out := p.Refresh(ctx); !out.OK {
		p.logger.Warn("post created but refresh failed", slog.String("id", id))
	}
	return id, success
}

// Like records the signed-in user's like.
func (p *Projects) Like(ctx context.Context, id string) Outcome {
	return p.mutate(ctx, func(token string) (*model.Post, error) {
		return p.api.LikePost(ctx, token, id)
	})
}

// RequestCollaboration claims a collaborator slot on post id. A post the
// cache already shows as full is refused without a round trip.
func (p *Projects) RequestCollaboration(ctx context.Context, id string) Outcome {
	if post, ok := p.Find(id); ok && post.IsFull() {
		return OutcomeOf(errProjectFull)
	}
	return p.mutate(ctx, func(token string) (*model.Post, error) {
		return p.api.CollaboratePost(ctx, token, id)
	})
}

// Comment adds a comment, then re-reads the post for its new count.
func (p *Projects) Comment(ctx context.Context, id, text string) Outcome {
	if err := validation.Struct(model.Comment{Text: strings.TrimSpace(text)}); err != nil {
		return OutcomeOf(err)
	}
	return p.mutate(ctx, func(token string) (*model.Post, error) {
		if _, err := p.api.CommentPost(ctx, token, id, text); err != nil {
			return nil, err
		}
		return p.api.GetPost(ctx, id)
	})
}

// RequestToJoin emails post's author on behalf of the signed-in user.
func (p *Projects) RequestToJoin(ctx context.Context, post model.Post) Outcome {
	snap := p.session.Snapshot()
	if snap.State != StateAuthenticated || snap.Profile == nil {
		return OutcomeOf(errNotSignedIn)
	}

	name := snap.Profile.Name
	if name == "" {
		name = snap.Profile.Email
	}
	req := model.JoinRequest{
		ProjectTitle: post.Title,
		AuthorEmail:  post.AuthorEmail,
		JoinerName:   name,
		JoinerEmail:  snap.Profile.Email,
	}
	if err := validation.Struct(req); err != nil {
		return OutcomeOf(err)
	}
	return OutcomeOf(p.session.authorized(ctx, func(token string) error {
		return p.api.SendJoinRequest(ctx, token, req)
	}))
}

// mutate runs call with the session token and swaps the server's copy of
// the post into the cache.
func (p *Projects) mutate(ctx context.Context, call func(token string) (*model.Post, error)) Outcome {
	var post *model.Post
	err := p.session.authorized(ctx, func(token string) (err error) {
		post, err = call(token)
		return err
	})
	if err != nil {
		return OutcomeOf(err)
	}
	p.replace(*post)
	return success
}

func (p *Projects) replace(post model.Post) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.posts {
		if p.posts[i].ID == post.ID {
			p.posts[i] = post
			return
		}
	}
	p.posts = append([]model.Post{post}, p.posts...)
}
