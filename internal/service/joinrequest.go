package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/collabgrow/collabgrow/internal/mail"
	"github.com/collabgrow/collabgrow/internal/model"
	"github.com/collabgrow/collabgrow/internal/repository"
	"github.com/collabgrow/collabgrow/internal/validation"
)

// JoinRequestService relays "I'd like to join your project" requests to
// the project author by email. Requests are never stored.
type JoinRequestService struct {
	mailer   mail.Mailer
	activity repository.ActivityRepository
	logger   *slog.Logger
}

func NewJoinRequestService(mailer mail.Mailer, activity repository.ActivityRepository, logger *slog.Logger) *JoinRequestService {
	return &JoinRequestService{mailer: mailer, activity: activity, logger: logger}
}

// Relay validates req and makes exactly one delivery attempt to
// req.AuthorEmail. A relay failure is returned as-is (a 500 to the client);
// there is no retry and no silent success.
func (s *JoinRequestService) Relay(ctx context.Context, caller *Caller, req model.JoinRequest) error {
	req.ProjectTitle = strings.TrimSpace(req.ProjectTitle)
	req.JoinerName = strings.TrimSpace(req.JoinerName)
	req.AuthorEmail = model.NormalizeEmail(req.AuthorEmail)
	req.JoinerEmail = model.NormalizeEmail(req.JoinerEmail)

	if err := validation.Struct(req); err != nil {
		return err
	}

	if err := s.mailer.Send(ctx, mail.JoinRequestMessage(req)); err != nil {
		s.logger.Error("failed to relay join request",
			slog.String("project", req.ProjectTitle),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("relaying join request: %w", err)
	}

	s.logger.Info("join request relayed", slog.String("project", req.ProjectTitle))

	var actorUID string
	if caller != nil {
		actorUID = caller.UID
	}
	recordActivity(ctx, s.activity, s.logger, &model.Activity{
		Type:      model.ActivityCollaboration,
		Message:   fmt.Sprintf("%s asked to join %q", req.JoinerName, req.ProjectTitle),
		ActorUID:  actorUID,
		ActorName: req.JoinerName,
	})
	return nil
}
