package handler

import (
	"log/slog"
	"net/http"

	"github.com/collabgrow/collabgrow/internal/model"
)

type JoinRequestHandler struct {
	requests JoinRequestService
	logger   *slog.Logger
}

func NewJoinRequestHandler(requests JoinRequestService, logger *slog.Logger) *JoinRequestHandler {
	return &JoinRequestHandler{requests: requests, logger: logger}
}

// HandleRelay emails a join request to the project's author.
//
// HTTP: POST /api/join-request
// REQUEST BODY: {"projectTitle","authorEmail","joinerName","joinerEmail"}
func (h *JoinRequestHandler) HandleRelay(w http.ResponseWriter, r *http.Request) {
	var req model.JoinRequest
	if err := decodeObject(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.requests.Relay(r.Context(), callerFrom(r), req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Join request sent to the project author"})
}
