package handler

import (
	"log/slog"
	"net/http"

	"github.com/collabgrow/collabgrow/internal/apperror"
	"github.com/collabgrow/collabgrow/internal/model"
)

// ProfileHandler serves the account profile endpoints.
type ProfileHandler struct {
	profiles ProfileService
	logger   *slog.Logger
}

func NewProfileHandler(profiles ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

// HandleSubmit creates or overwrites a profile.
//
// HTTP: POST /submit
// RESPONSE: 201 {"success":true,"id":"..."} on create, 200 on overwrite.
func (h *ProfileHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var p model.Profile
	if err := decodeObject(w, r, &p); err != nil {
		writeError(w, err)
		return
	}

	saved, created, err := h.profiles.Submit(r.Context(), callerFrom(r), p)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, CreatedResponse{Success: true, ID: saved.ID})
}

// HandleGetByEmail returns the profile for the email in the path.
//
// HTTP: GET /profile/{email}
func (h *ProfileHandler) HandleGetByEmail(w http.ResponseWriter, r *http.Request) {
	email, err := pathParam(r, "email")
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := h.profiles.GetByEmail(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleMe returns the profile linked to the verified token.
//
// HTTP: GET /me
// Mounted behind auth.RequireAuth, so a missing token never reaches here.
func (h *ProfileHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r)
	if caller == nil {
		writeError(w, apperror.Unauthorized("sign in required"))
		return
	}

	p, err := h.profiles.GetByUID(r.Context(), caller.UID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
