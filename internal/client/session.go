package client

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/collabgrow/collabgrow/internal/model"
	"github.com/collabgrow/collabgrow/internal/validation"
)

// State is where a Session is in resolving its user.
//
//	unknown ──Restore──▶ resolving ──▶ authenticated
//	                         │
//	                         └──────▶ anonymous ──SignIn──▶ resolving
//
// SignOut, or a 401 that a token refresh cannot cure, moves authenticated
// to anonymous. No state is terminal.
type State string

const (
	StateUnknown       State = "unknown"
	StateResolving     State = "resolving"
	StateAuthenticated State = "authenticated"
	StateAnonymous     State = "anonymous"
)

// Snapshot is a consistent copy of the session for rendering.
type Snapshot struct {
	State   State
	UID     string
	Email   string
	Profile *model.Profile
	// Last is the outcome of the most recent operation.
	Last Outcome
}

// Session holds the signed-in user and their profile.
type Session struct {
	api    *API
	idp    IdentityProvider
	store  SessionStore
	retry  RetryPolicy
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	marker  *SessionMarker
	profile *model.Profile
	last    Outcome
	subs    map[int]func(Snapshot)
	nextSub int
}

type SessionOption func(*Session)

// WithRetryPolicy overrides DefaultRetryPolicy for profile resolution.
func WithRetryPolicy(p RetryPolicy) SessionOption {
	return func(s *Session) { s.retry = p }
}

func NewSession(api *API, idp IdentityProvider, store SessionStore, logger *slog.Logger, opts ...SessionOption) *Session {
	s := &Session{
		api:    api,
		idp:    idp,
		store:  store,
		retry:  DefaultRetryPolicy,
		logger: logger,
		state:  StateUnknown,
		subs:   make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{State: s.state, Last: s.last}
	if s.marker != nil {
		snap.UID = s.marker.UID
		snap.Email = s.marker.Email
	}
	if s.profile != nil {
		p := *s.profile
		snap.Profile = &p
	}
	return snap
}

// Subscribe calls fn after every state change until the returned func is
// called. fn runs on the goroutine that made the change, outside any lock.
func (s *Session) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// update applies change under the lock, then notifies subscribers.
func (s *Session) update(change func()) Snapshot {
	s.mu.Lock()
	change()
	snap := s.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return snap
}

// token returns the current ID token, or "" when not authenticated.
func (s *Session) token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticated || s.marker == nil {
		return ""
	}
	return s.marker.IDToken
}

// Restore resumes a persisted session, if there is one.
func (s *Session) Restore(ctx context.Context) Outcome {
	marker, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("failed to load session marker", slog.String("error", err.Error()))
	}
	if marker == nil {
		s.update(func() {
			s.state, s.marker, s.profile, s.last = StateAnonymous, nil, nil, success
		})
		return success
	}
	return s.resolve(ctx, *marker)
}

// resolve fetches /me for marker under the retry policy and lands in
// authenticated or anonymous. A rejected ID token is renewed once with the
// refresh token; any other failure clears the persisted marker.
func (s *Session) resolve(ctx context.Context, marker SessionMarker) Outcome {
	s.update(func() {
		m := marker
		s.state, s.marker, s.profile = StateResolving, &m, nil
	})

	profile, err := s.fetchMe(ctx, marker.IDToken)
	if isUnauthorized(err) && marker.RefreshToken != "" {
		if marker, err = s.renew(ctx, marker); err == nil {
			profile, err = s.fetchMe(ctx, marker.IDToken)
		}
	}
	if err != nil {
		return s.dropSession(ctx, err)
	}

	s.update(func() {
		m := marker
		s.state, s.marker, s.profile, s.last = StateAuthenticated, &m, profile, success
	})
	return success
}

func (s *Session) fetchMe(ctx context.Context, token string) (*model.Profile, error) {
	var profile *model.Profile
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		p, err := s.api.Me(ctx, token)
		if err != nil {
			return err
		}
		profile = p
		return nil
	})
	return profile, err
}

// renew trades marker's refresh token for a new ID token and persists the
// result. The provider may rotate the refresh token as well.
func (s *Session) renew(ctx context.Context, marker SessionMarker) (SessionMarker, error) {
	creds, err := s.idp.Refresh(ctx, marker.RefreshToken)
	if err != nil {
		return marker, err
	}
	if creds.UID != "" && creds.UID != marker.UID {
		return marker, ErrSessionExpired
	}

	marker.IDToken = creds.IDToken
	if creds.RefreshToken != "" {
		marker.RefreshToken = creds.RefreshToken
	}
	if err := s.store.Save(ctx, marker); err != nil {
		s.logger.Warn("failed to persist session marker", slog.String("error", err.Error()))
	}
	s.logger.Info("session token refreshed", slog.String("uid", marker.UID))
	return marker, nil
}

// authorized runs call with the current ID token. When the server rejects
// it, the token is renewed once and call runs again. A session whose token
// cannot be renewed ends here.
func (s *Session) authorized(ctx context.Context, call func(token string) error) error {
	s.mu.Lock()
	if s.state != StateAuthenticated || s.marker == nil {
		s.mu.Unlock()
		return errNotSignedIn
	}
	marker := *s.marker
	s.mu.Unlock()

	err := call(marker.IDToken)
	if isUnauthorized(err) && marker.RefreshToken != "" {
		var renewed SessionMarker
		if renewed, err = s.renew(ctx, marker); err == nil {
			s.update(func() {
				if s.marker != nil && s.marker.UID == renewed.UID {
					s.marker = &renewed
				}
			})
			err = call(renewed.IDToken)
		}
	}
	if isUnauthorized(err) || errors.Is(err, ErrSessionExpired) {
		s.dropSession(ctx, err)
	}
	return err
}

// dropSession clears the marker and moves to anonymous because of err.
func (s *Session) dropSession(ctx context.Context, err error) Outcome {
	s.logger.Info("session ended", slog.String("error", err.Error()))
	if clearErr := s.store.Clear(ctx); clearErr != nil {
		s.logger.Warn("failed to clear session marker", slog.String("error", clearErr.Error()))
	}
	out := OutcomeOf(err)
	s.update(func() {
		s.state, s.marker, s.profile, s.last = StateAnonymous, nil, nil, out
	})
	return out
}

func (s *Session) fail(err error) Outcome {
	out := OutcomeOf(err)
	s.update(func() { s.last = out })
	return out
}

// SignIn authenticates with the identity provider and resolves the profile.
func (s *Session) SignIn(ctx context.Context, email, password string) Outcome {
	email = model.NormalizeEmail(email)
	if err := validation.Email("email", email); err != nil {
		return s.fail(err)
	}
	s.update(func() { s.state = StateResolving })

	creds, err := s.idp.SignIn(ctx, email, password)
	if err != nil {
		out := OutcomeOf(err)
		s.update(func() {
			s.state, s.marker, s.profile, s.last = StateAnonymous, nil, nil, out
		})
		return out
	}

	marker := markerOf(creds)
	if err := s.store.Save(ctx, marker); err != nil {
		s.logger.Warn("failed to persist session marker", slog.String("error", err.Error()))
	}
	return s.resolve(ctx, marker)
}

// SignUp registers a new account, stores its first profile and resolves it.
// profile.Email defaults to the sign-up email.
func (s *Session) SignUp(ctx context.Context, email, password string, profile model.Profile) Outcome {
	email = model.NormalizeEmail(email)
	if err := validation.Email("email", email); err != nil {
		return s.fail(err)
	}
	s.update(func() { s.state = StateResolving })

	creds, err := s.idp.SignUp(ctx, email, password)
	if err != nil {
		out := OutcomeOf(err)
		s.update(func() {
			s.state, s.marker, s.profile, s.last = StateAnonymous, nil, nil, out
		})
		return out
	}

	marker := markerOf(creds)
	if err := s.store.Save(ctx, marker); err != nil {
		s.logger.Warn("failed to persist session marker", slog.String("error", err.Error()))
	}

	if profile.Email == "" {
		profile.Email = creds.Email
	}
	if _, err := s.api.SubmitProfile(ctx, creds.IDToken, profile); err != nil {
		return s.dropSession(ctx, err)
	}
	return s.resolve(ctx, marker)
}

// SignOut ends the session locally and at the provider.
func (s *Session) SignOut(ctx context.Context) Outcome {
	s.mu.Lock()
	var creds Credentials
	if s.marker != nil {
		creds = Credentials{UID: s.marker.UID, Email: s.marker.Email, IDToken: s.marker.IDToken, RefreshToken: s.marker.RefreshToken}
	}
	s.mu.Unlock()

	if err := s.idp.SignOut(ctx, creds); err != nil {
		s.logger.Warn("identity provider sign-out failed", slog.String("error", err.Error()))
	}
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Warn("failed to clear session marker", slog.String("error", err.Error()))
	}
	s.update(func() {
		s.state, s.marker, s.profile, s.last = StateAnonymous, nil, nil, success
	})
	return success
}

// UpdateProfile applies mutate to a copy of the profile, submits the whole
// document, then re-reads it from the server. The cached profile only ever
// changes to what the server returned.
func (s *Session) UpdateProfile(ctx context.Context, mutate func(p *model.Profile)) Outcome {
	s.mu.Lock()
	if s.state != StateAuthenticated || s.marker == nil || s.profile == nil {
		s.mu.Unlock()
		return s.fail(errNotSignedIn)
	}
	draft := cloneProfile(*s.profile)
	s.mu.Unlock()

	mutate(&draft)

	var fresh *model.Profile
	err := s.authorized(ctx, func(token string) error {
		if _, err := s.api.SubmitProfile(ctx, token, draft); err != nil {
			return err
		}
		p, err := s.api.Me(ctx, token)
		fresh = p
		return err
	})
	if err != nil {
		return s.fail(err)
	}

	s.update(func() { s.profile, s.last = fresh, success })
	return success
}

// isUnauthorized reports whether the server rejected the bearer token.
func isUnauthorized(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized
}

func markerOf(c Credentials) SessionMarker {
	return SessionMarker{UID: c.UID, Email: c.Email, IDToken: c.IDToken, RefreshToken: c.RefreshToken}
}

// cloneProfile copies p deeply enough that mutating slices of the copy
// leaves the cached profile untouched.
func cloneProfile(p model.Profile) model.Profile {
	p.Skills = append([]string(nil), p.Skills...)
	p.WorkExperience = append([]model.WorkExperience(nil), p.WorkExperience...)
	p.Projects = append([]model.PortfolioItem(nil), p.Projects...)
	p.Certifications = append([]model.Certification(nil), p.Certifications...)
	p.Achievements = append([]model.Achievement(nil), p.Achievements...)
	p.Hobbies = append([]string(nil), p.Hobbies...)
	p.Languages = append([]string(nil), p.Languages...)
	return p
}
