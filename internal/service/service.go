// Package service contains the business rules of the API.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces ownership, orchestrates
//	Repository (data layer)  → reads/writes the document store
//
// Services accept plain Go values and a *Caller, never *http.Request, and
// return apperror values that the handler maps to status codes. Every
// dependency is an interface passed to the constructor; no service creates
// its own store or mailer.
package service

import (
	"context"
	"log/slog"

	"github.com/collabgrow/collabgrow/internal/model"
	"github.com/collabgrow/collabgrow/internal/repository"
)

// Caller is the verified identity behind a request. A nil *Caller means
// the request is anonymous.
type Caller struct {
	UID   string
	Email string
	// EmailVerified is true when the identity provider has confirmed that
	// the caller controls Email.
	EmailVerified bool
	Name          string
}

// displayName picks the best label for an actor in the activity feed.
func displayName(profile *model.Profile, caller *Caller) string {
	switch {
	case profile != nil && profile.Name != "":
		return profile.Name
	case caller != nil && caller.Name != "":
		return caller.Name
	case caller != nil && caller.Email != "":
		return caller.Email
	}
	return "Someone"
}

// recordActivity writes a feed entry. Failures are logged and swallowed:
// the feed is a side channel and never fails the operation that caused it.
func recordActivity(ctx context.Context, repo repository.ActivityRepository, logger *slog.Logger, a *model.Activity) {
	if err := repo.RecordActivity(ctx, a); err != nil {
		logger.Warn("failed to record activity",
			slog.String("type", string(a.Type)),
			slog.String("post_id", a.PostID),
			slog.String("error", err.Error()),
		)
	}
}
