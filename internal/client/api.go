// Package client is the Go data layer for CollabGrow front ends.
//
// It holds the two state containers a UI renders from:
//
//	Session  → who is signed in, and their profile
//	Projects → the cached project collection and its mutations
//
// Both talk to the server through API (plain REST over net/http) and
// report every user-facing result as an Outcome instead of raising
// alert-style errors. Both are safe for concurrent use.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/collabgrow/collabgrow/internal/model"
)

// StatusError is a non-2xx response from the API. Type and Message come
// from the server's {"error","message"} body when it has one.
type StatusError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d %s: %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsTransient reports whether err is worth retrying: network failures,
// timeouts, 429 and 5xx. 4xx answers and caller cancellation are not.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// API is a thin REST client for the CollabGrow server.
type API struct {
	baseURL string
	http    *http.Client
}

// NewAPI returns a client for the server at baseURL (e.g.
// "http://localhost:5000"). A nil httpClient gets a 15 s timeout.
func NewAPI(baseURL string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &API{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type createdResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// do sends one request. in (if non-nil) is sent as JSON; out (if non-nil)
// receives the decoded 2xx body. token, when set, is sent as a bearer token.
func (a *API) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("api: encoding request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("api: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var payload struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload) == nil {
			statusErr.Type = payload.Error
			statusErr.Message = payload.Message
		}
		return statusErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decoding %s %s: %w", method, path, err)
	}
	return nil
}

// Me fetches the profile linked to token.
func (a *API) Me(ctx context.Context, token string) (*model.Profile, error) {
	var p model.Profile
	if err := a.do(ctx, http.MethodGet, "/me", token, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SubmitProfile writes the whole profile document and returns its id.
// token may be empty for an anonymous submission.
func (a *API) SubmitProfile(ctx context.Context, token string, p model.Profile) (string, error) {
	var resp createdResponse
	if err := a.do(ctx, http.MethodPost, "/submit", token, p, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (a *API) ProfileByEmail(ctx context.Context, email string) (*model.Profile, error) {
	var p model.Profile
	if err := a.do(ctx, http.MethodGet, "/profile/"+url.PathEscape(email), "", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (a *API) ListPosts(ctx context.Context) ([]model.Post, error) {
	posts := []model.Post{}
	if err := a.do(ctx, http.MethodGet, "/api/posts", "", nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (a *API) GetPost(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	if err := a.do(ctx, http.MethodGet, "/api/posts/"+url.PathEscape(id), "", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePost stores draft and returns the new post's id.
func (a *API) CreatePost(ctx context.Context, token string, draft model.Post) (string, error) {
	var resp createdResponse
	if err := a.do(ctx, http.MethodPost, "/api/posts", token, draft, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (a *API) UpdatePost(ctx context.Context, token, id string, edit model.Post) (*model.Post, error) {
	var p model.Post
	if err := a.do(ctx, http.MethodPut, "/api/posts/"+url.PathEscape(id), token, edit, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (a *API) LikePost(ctx context.Context, token, id string) (*model.Post, error) {
	var p model.Post
	if err := a.do(ctx, http.MethodPost, "/api/posts/"+url.PathEscape(id)+"/like", token, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (a *API) CollaboratePost(ctx context.Context, token, id string) (*model.Post, error) {
	var p model.Post
	if err := a.do(ctx, http.MethodPost, "/api/posts/"+url.PathEscape(id)+"/collaborators", token, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (a *API) CommentPost(ctx context.Context, token, id, text string) (*model.Comment, error) {
	var c model.Comment
	in := map[string]string{"text": text}
	if err := a.do(ctx, http.MethodPost, "/api/posts/"+url.PathEscape(id)+"/comments", token, in, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (a *API) Comments(ctx context.Context, id string) ([]model.Comment, error) {
	comments := []model.Comment{}
	if err := a.do(ctx, http.MethodGet, "/api/posts/"+url.PathEscape(id)+"/comments", "", nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// SendJoinRequest asks the server to email req to the project's author.
func (a *API) SendJoinRequest(ctx context.Context, token string, req model.JoinRequest) error {
	return a.do(ctx, http.MethodPost, "/api/join-request", token, req, nil)
}

// Activity returns the newest feed entries. limit <= 0 uses the server default.
func (a *API) Activity(ctx context.Context, limit int) ([]model.Activity, error) {
	path := "/api/activity"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	entries := []model.Activity{}
	if err := a.do(ctx, http.MethodGet, path, "", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
