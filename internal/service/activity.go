package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/collabgrow/collabgrow/internal/model"
	"github.com/collabgrow/collabgrow/internal/repository"
)

// ActivityService reads the recent-activity feed. Entries are written by
// the other services as a side effect of their operations.
type ActivityService struct {
	repo   repository.ActivityRepository
	logger *slog.Logger
}

func NewActivityService(repo repository.ActivityRepository, logger *slog.Logger) *ActivityService {
	return &ActivityService{repo: repo, logger: logger}
}

// Recent returns the newest entries. limit is clamped to 1..100 (default 20).
func (s *ActivityService) Recent(ctx context.Context, limit, offset int) ([]model.Activity, error) {
	entries, err := s.repo.ListActivity(ctx, repository.ListOptions{Limit: limit, Offset: offset}.Clamp())
	if err != nil {
		s.logger.Error("failed to list activity", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing activity: %w", err)
	}
	return entries, nil
}
