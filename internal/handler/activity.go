package handler

import (
	"log/slog"
	"net/http"
)

type ActivityHandler struct {
	activity ActivityService
	logger   *slog.Logger
}

func NewActivityHandler(activity ActivityService, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{activity: activity, logger: logger}
}

// HandleRecent returns the newest feed entries.
//
// HTTP: GET /api/activity?limit=n
func (h *ActivityHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	entries, err := h.activity.Recent(r.Context(), queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
