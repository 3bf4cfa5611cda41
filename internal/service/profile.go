package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/collabgrow/collabgrow/internal/apperror"
	"github.com/collabgrow/collabgrow/internal/model"
	"github.com/collabgrow/collabgrow/internal/repository"
	"github.com/collabgrow/collabgrow/internal/validation"
)

// ProfileService manages account profiles.
type ProfileService struct {
	repo   repository.ProfileRepository
	logger *slog.Logger
}

func NewProfileService(repo repository.ProfileRepository, logger *slog.Logger) *ProfileService {
	return &ProfileService{repo: repo, logger: logger}
}

// Submit creates or overwrites the caller's profile with p (an upsert).
//
// KEYING RULES:
//   - Signed-in caller: keyed by the verified uid. The uid in the body is
//     ignored. When the token carries an email, the profile email must be
//     that email. An email already used by another account's profile is a
//     conflict.
//   - Claiming: if no profile carries the uid yet, an anonymous profile
//     (empty uid) with the same email is claimed, but only when the token
//     email is verified and equals it. Otherwise it is a conflict.
//   - Anonymous caller: keyed by email. An existing profile that is
//     already linked to a uid cannot be overwritten anonymously.
//
// Either way the whole document is replaced; nothing from the previous
// version is merged in except its id and createdAt.
func (s *ProfileService) Submit(ctx context.Context, caller *Caller, p model.Profile) (*model.Profile, bool, error) {
	p.ID = ""
	p.Email = model.NormalizeEmail(p.Email)

	if caller != nil {
		p.UID = caller.UID
		switch account := model.NormalizeEmail(caller.Email); {
		case account == "":
		case p.Email == "":
			p.Email = account
		case p.Email != account:
			return nil, false, apperror.Forbidden("the profile email must match the email of your account")
		}
	} else {
		p.UID = ""
		if p.Email == "" {
			return nil, false, apperror.ValidationFailed("email", "email is required when not signed in")
		}
	}

	if err := validation.Struct(p); err != nil {
		return nil, false, err
	}

	var (
		existing *model.Profile
		err      error
	)
	if caller != nil {
		existing, err = s.findLinked(ctx, caller, p.Email)
	} else {
		existing, err = s.findAnonymous(ctx, p.Email)
	}
	if err != nil {
		return nil, false, err
	}

	if existing == nil {
		if err := s.repo.CreateProfile(ctx, &p); err != nil {
			if errors.Is(err, apperror.ErrConflict) {
				return nil, false, err
			}
			s.logger.Error("failed to create profile", slog.String("error", err.Error()))
			return nil, false, fmt.Errorf("creating profile: %w", err)
		}
		s.logger.Info("profile created", slog.String("id", p.ID), slog.Bool("linked", p.UID != ""))
		return &p, true, nil
	}

	p.ID = existing.ID
	if err := s.repo.ReplaceProfile(ctx, &p); err != nil {
		if errors.Is(err, apperror.ErrConflict) || errors.Is(err, apperror.ErrNotFound) {
			return nil, false, err
		}
		s.logger.Error("failed to replace profile", slog.String("id", p.ID), slog.String("error", err.Error()))
		return nil, false, fmt.Errorf("replacing profile: %w", err)
	}
	s.logger.Info("profile saved",
		slog.String("id", p.ID),
		slog.Bool("claimed", caller != nil && existing.UID == ""),
	)
	return &p, false, nil
}

// findLinked resolves which stored profile a signed-in submission
// overwrites. It returns (nil, nil) when the submission creates a new one.
func (s *ProfileService) findLinked(ctx context.Context, caller *Caller, email string) (*model.Profile, error) {
	mine, err := s.repo.GetProfileByUID(ctx, caller.UID)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		mine = nil
	case err != nil:
		return nil, fmt.Errorf("looking up profile by uid: %w", err)
	}
	if email == "" {
		return mine, nil
	}

	holder, err := s.lookupEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	verified := caller.EmailVerified && model.NormalizeEmail(caller.Email) == email

	switch {
	case holder == nil, mine != nil && holder.ID == mine.ID:
		return mine, nil
	case holder.UID != "":
		return nil, apperror.Conflict("this email is already used by another account")
	case !verified:
		return nil, apperror.Conflict("a profile with this email already exists; verify your email address to claim it")
	case mine != nil:
		// The linked profile takes over the email; the stale anonymous copy
		// stays behind and is shadowed on lookup.
		return mine, nil
	}
	return holder, nil
}

// findAnonymous resolves which stored profile an anonymous submission
// overwrites. Linked profiles are off limits.
func (s *ProfileService) findAnonymous(ctx context.Context, email string) (*model.Profile, error) {
	existing, err := s.lookupEmail(ctx, email)
	if err != nil || existing == nil {
		return nil, err
	}
	if existing.UID != "" {
		return nil, apperror.Forbidden("this profile belongs to a signed-in account; sign in to update it")
	}
	return existing, nil
}

func (s *ProfileService) lookupEmail(ctx context.Context, email string) (*model.Profile, error) {
	p, err := s.repo.GetProfileByEmail(ctx, email)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up profile by email: %w", err)
	}
	return p, nil
}

// GetByEmail returns the profile for email, compared case-insensitively.
func (s *ProfileService) GetByEmail(ctx context.Context, email string) (*model.Profile, error) {
	email = model.NormalizeEmail(email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	return s.repo.GetProfileByEmail(ctx, email)
}

// GetByUID returns the profile linked to uid.
func (s *ProfileService) GetByUID(ctx context.Context, uid string) (*model.Profile, error) {
	if uid == "" {
		return nil, apperror.Unauthorized("sign in required")
	}
	return s.repo.GetProfileByUID(ctx, uid)
}
