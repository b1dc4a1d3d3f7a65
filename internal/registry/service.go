package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/access-management/internal/core/events"
)

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Service rebuilds the cached package index from storage on demand.
type Service struct {
	storage Storage
	repo    Repository
	events  EventPublisher
	logger  *slog.Logger
}

func NewService(storage Storage, repo Repository, publisher EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		storage: storage,
		repo:    repo,
		events:  publisher,
		logger:  logger,
	}
}

// ReloadIndex replaces the whole cache with what storage currently holds.
// The swap is transactional so readers never see a partially rebuilt index.
func (s *Service) ReloadIndex(ctx context.Context) (int, error) {
	packages, err := s.storage.ListPackages(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list storage: %w", err)
	}

	if err := s.repo.ReplaceAll(ctx, packages); err != nil {
		return 0, fmt.Errorf("failed to replace package index: %w", err)
	}

	s.logger.Info("package index rebuilt", "packages", len(packages))
	if s.events != nil {
		if err := s.events.Publish(ctx, events.NewIndexRebuiltEvent(len(packages))); err != nil {
			s.logger.Warn("failed to publish rebuild event", "error", err)
		}
	}

	return len(packages), nil
}
