package handler

import (
	"log/slog"
	"net/http"

	"github.com/collabgrow/collabgrow/internal/model"
)

// PostHandler serves the project post endpoints under /api/posts.
type PostHandler struct {
	posts  PostService
	logger *slog.Logger
}

func NewPostHandler(posts PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: posts, logger: logger}
}

// HandleList returns every post, newest first. Filtering happens client-side.
//
// HTTP: GET /api/posts
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleGet returns one post.
//
// HTTP: GET /api/posts/{id}
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.posts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleCreate stores a new post authored by the caller.
//
// HTTP: POST /api/posts
// RESPONSE: 201 {"success":true,"id":"..."}
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var draft model.Post
	if err := decodeObject(w, r, &draft); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.posts.Create(r.Context(), callerFrom(r), draft)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{Success: true, ID: p.ID})
}

// HandleUpdate overwrites the editable fields of a post.
//
// HTTP: PUT /api/posts/{id}
func (h *PostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var edit model.Post
	if err := decodeObject(w, r, &edit); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.posts.Update(r.Context(), callerFrom(r), r.PathValue("id"), edit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleLike records the caller's like and returns the updated post.
//
// HTTP: POST /api/posts/{id}/like
func (h *PostHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	p, err := h.posts.Like(r.Context(), callerFrom(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleCollaborate claims a collaborator slot for the caller.
//
// HTTP: POST /api/posts/{id}/collaborators
func (h *PostHandler) HandleCollaborate(w http.ResponseWriter, r *http.Request) {
	p, err := h.posts.Collaborate(r.Context(), callerFrom(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type commentRequest struct {
	Text string `json:"text"`
}

// HandleComment adds a comment to a post.
//
// HTTP: POST /api/posts/{id}/comments
// REQUEST BODY: {"text": "..."}
func (h *PostHandler) HandleComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeObject(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	c, err := h.posts.Comment(r.Context(), callerFrom(r), r.PathValue("id"), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HandleListComments returns a post's comments, oldest first.
//
// HTTP: GET /api/posts/{id}/comments?limit=n&offset=m
func (h *PostHandler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.posts.Comments(r.Context(), r.PathValue("id"), queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}
